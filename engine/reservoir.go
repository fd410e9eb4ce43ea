package engine

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Reservoir maintains a fixed-capacity uniform random sample of an unbounded
// observation stream (Algorithm R). After n >= k observations each of the n
// values has inclusion probability k/n. The random source is owned by the
// reservoir so runs never share generator state.
type Reservoir struct {
	k       int
	samples []float64
	n       int64
	rng     *rand.Rand
}

func NewReservoir(k int, seed uint64) *Reservoir {
	if k < 1 {
		k = 1
	}

	return &Reservoir{
		k:   k,
		rng: rand.New(rand.NewPCG(seed, seed)),
	}
}

// Add offers one observation to the reservoir.
func (r *Reservoir) Add(x float64) {
	r.n++

	if len(r.samples) < r.k {
		r.samples = append(r.samples, x)
		return
	}

	j := r.rng.Int64N(r.n) + 1
	if j <= int64(r.k) {
		r.samples[j-1] = x
	}
}

// Len reports how many samples are currently held.
func (r *Reservoir) Len() int {
	return len(r.samples)
}

// Count reports how many observations were ever offered.
func (r *Reservoir) Count() int64 {
	return r.n
}

// Samples returns a copy of the current sample set in insertion order.
func (r *Reservoir) Samples() []float64 {
	out := make([]float64, len(r.samples))
	copy(out, r.samples)

	return out
}

// Percentiles returns nearest-rank estimates over the sorted current sample
// for each requested rank. A nil value means no data. The estimate is the
// value at index round(p/100*(len-1)), clamped to the sample bounds; this is
// monitoring-grade, not an exact order statistic over the full stream.
func (r *Reservoir) Percentiles(ps ...int) map[int]*float64 {
	out := make(map[int]*float64, len(ps))

	if len(r.samples) == 0 {
		for _, p := range ps {
			out[p] = nil
		}

		return out
	}

	arr := r.Samples()
	sort.Float64s(arr)

	for _, p := range ps {
		idx := int(math.Round(float64(p) / 100 * float64(len(arr)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx > len(arr)-1 {
			idx = len(arr) - 1
		}

		v := arr[idx]
		out[p] = &v
	}

	return out
}
