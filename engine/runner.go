package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner builds and executes one cohort of simulated clients against a
// target address for a fixed wall-clock duration.
type Runner struct {
	cfg      *Config
	dial     Dialer
	log      *zap.Logger
	exporter *Exporter
}

func NewRunner(cfg *Config, dial Dialer, log *zap.Logger, exporter *Exporter) *Runner {
	return &Runner{
		cfg:      cfg,
		dial:     dial,
		log:      log,
		exporter: exporter,
	}
}

// Run fans out cohortSize clients sharing one Metrics instance and one pair
// of start/stop signals, lets them run for the configured duration, and
// returns the aggregated summary over the measured wall time. Cancelling ctx
// ends the run early; that is not an error. Per-client failures are counted,
// never propagated.
func (r *Runner) Run(ctx context.Context, addr string, cohortSize int) RunSummary {
	metrics := NewMetrics(r.cfg.ReservoirK, r.cfg.Seed)
	startC := make(chan struct{})
	stopC := make(chan struct{})

	if r.exporter != nil {
		r.exporter.Track(metrics)
	}

	clients := make([]*SimClient, cohortSize)
	for i := range cohortSize {
		clients[i] = NewSimClient(i, addr, r.cfg.Rate, r.cfg.StrictPending, metrics, r.dial, startC, stopC, r.log)
	}

	// Connect everyone concurrently; failures are already counted and drop
	// out of the cohort here.
	connected := make([]*SimClient, cohortSize)

	var g errgroup.Group
	for i, c := range clients {
		g.Go(func() error {
			if c.Connect(ctx) {
				connected[i] = c
			}

			return nil
		})
	}
	_ = g.Wait()

	live := make([]*SimClient, 0, cohortSize)
	for _, c := range connected {
		if c != nil {
			live = append(live, c)
		}
	}

	var lg errgroup.Group
	for _, c := range live {
		lg.Go(func() error {
			c.Login()

			return nil
		})
	}
	_ = lg.Wait()

	r.log.Debug("cohort connected",
		zap.Int("size", cohortSize),
		zap.Int("live", len(live)))

	var wg sync.WaitGroup
	for _, c := range live {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run()
		}()
	}

	var progressDone chan struct{}
	if r.cfg.ProgressEvery > 0 {
		progressDone = make(chan struct{})
		go r.progressLoop(metrics, stopC, progressDone)
	}

	testStart := time.Now()
	close(startC)

	select {
	case <-time.After(r.cfg.Duration):
	case <-ctx.Done():
	}

	close(stopC)

	// Best-effort teardown: a client stuck inside a blocking read delays
	// this until its connection close unblocks it.
	wg.Wait()

	if progressDone != nil {
		<-progressDone
	}

	return metrics.Summary(time.Since(testStart))
}
