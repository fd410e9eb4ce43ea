package engine

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates connection outcomes, byte counts and probe latencies
// for one run. It is shared by reference across every client of a cohort;
// counters are atomic and the reservoir sits behind a single lock so a
// summary is never torn.
type Metrics struct {
	connectionsOK     atomic.Int64
	connectionsFailed atomic.Int64
	bytesSent         atomic.Int64
	bytesRecv         atomic.Int64
	requestsSent      atomic.Int64
	responsesObserved atomic.Int64

	mu        sync.Mutex
	latencies *Reservoir
}

func NewMetrics(reservoirK int, seed uint64) *Metrics {
	return &Metrics{
		latencies: NewReservoir(reservoirK, seed),
	}
}

func (m *Metrics) ConnOK() {
	m.connectionsOK.Add(1)
}

func (m *Metrics) ConnFailed() {
	m.connectionsFailed.Add(1)
}

func (m *Metrics) AddBytesSent(n int) {
	m.bytesSent.Add(int64(n))
}

func (m *Metrics) AddBytesRecv(n int) {
	m.bytesRecv.Add(int64(n))
}

func (m *Metrics) ProbeSent() {
	m.requestsSent.Add(1)
}

// ObserveTTFB records one resolved probe: the elapsed time from probe send
// to first subsequent byte arrival.
func (m *Metrics) ObserveTTFB(d time.Duration) {
	m.responsesObserved.Add(1)

	m.mu.Lock()
	m.latencies.Add(d.Seconds())
	m.mu.Unlock()
}

// Counters is a consistent-enough snapshot of the raw counters for live
// progress and metrics export.
type Counters struct {
	ConnectionsOK     int64
	ConnectionsFailed int64
	BytesSent         int64
	BytesRecv         int64
	RequestsSent      int64
	ResponsesObserved int64
}

func (m *Metrics) Counters() Counters {
	return Counters{
		ConnectionsOK:     m.connectionsOK.Load(),
		ConnectionsFailed: m.connectionsFailed.Load(),
		BytesSent:         m.bytesSent.Load(),
		BytesRecv:         m.bytesRecv.Load(),
		RequestsSent:      m.requestsSent.Load(),
		ResponsesObserved: m.responsesObserved.Load(),
	}
}

// LivePercentiles computes percentiles over the reservoir mid-run. Sorting
// happens under the lock, so callers should keep the polling interval coarse.
func (m *Metrics) LivePercentiles(ps ...int) map[int]*float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.latencies.Percentiles(ps...)
}

// RunSummary is an immutable snapshot of one run, taken at run end.
// Percentile fields are nil when no latency was observed.
type RunSummary struct {
	ConnectionsOK     int64    `json:"connections_ok"`
	ConnectionsFailed int64    `json:"connections_failed"`
	RequestsSent      int64    `json:"requests_sent"`
	ResponsesObserved int64    `json:"responses_observed"`
	TTFBMsP50         *float64 `json:"ttfb_ms_p50"`
	TTFBMsP90         *float64 `json:"ttfb_ms_p90"`
	TTFBMsP95         *float64 `json:"ttfb_ms_p95"`
	TTFBMsP99         *float64 `json:"ttfb_ms_p99"`
	BytesSent         int64    `json:"bytes_sent"`
	BytesRecv         int64    `json:"bytes_recv"`
	DurationS         float64  `json:"duration_s"`
}

// Summary copies the counters and converts the latency percentiles to
// milliseconds, rounded to two decimals.
func (m *Metrics) Summary(duration time.Duration) RunSummary {
	m.mu.Lock()
	ps := m.latencies.Percentiles(50, 90, 95, 99)
	m.mu.Unlock()

	return RunSummary{
		ConnectionsOK:     m.connectionsOK.Load(),
		ConnectionsFailed: m.connectionsFailed.Load(),
		RequestsSent:      m.requestsSent.Load(),
		ResponsesObserved: m.responsesObserved.Load(),
		TTFBMsP50:         secondsToMs(ps[50]),
		TTFBMsP90:         secondsToMs(ps[90]),
		TTFBMsP95:         secondsToMs(ps[95]),
		TTFBMsP99:         secondsToMs(ps[99]),
		BytesSent:         m.bytesSent.Load(),
		BytesRecv:         m.bytesRecv.Load(),
		DurationS:         round2(duration.Seconds()),
	}
}

func secondsToMs(sec *float64) *float64 {
	if sec == nil {
		return nil
	}

	v := round2(*sec * 1000)

	return &v
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
