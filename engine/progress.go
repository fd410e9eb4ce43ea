package engine

import (
	"fmt"
	"time"
)

// progressLoop prints a periodic status line while a run is active. It stops
// when the run's stop signal fires and closes done on exit.
func (r *Runner) progressLoop(metrics *Metrics, stopC <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	startedAt := time.Now()

	ticker := time.NewTicker(r.cfg.ProgressEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stopC:
			return
		case <-ticker.C:
			r.printProgress(metrics, time.Since(startedAt))
		}
	}
}

func (r *Runner) printProgress(metrics *Metrics, elapsed time.Duration) {
	c := metrics.Counters()
	ps := metrics.LivePercentiles(50, 95)

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(c.RequestsSent) / elapsed.Seconds()
	}

	remain := r.cfg.Duration - elapsed
	if remain < 0 {
		remain = 0
	}

	line := fmt.Sprintf("[eta: %s] conn ok/fail: %s/%s, req: %s, resp: %s, p50: %s, p95: %s, send rps: %.1f",
		humanETA(remain),
		humanCount(c.ConnectionsOK), humanCount(c.ConnectionsFailed),
		humanCount(c.RequestsSent), humanCount(c.ResponsesObserved),
		fmtPercentile(ps[50]), fmtPercentile(ps[95]), rps)

	if IsTTY() {
		termW, _ := TermSize()
		if displayWidth(line) > termW {
			line = truncateToCells(line, termW)
		}
		line = StyleCyan.S(padToCellsRight(line, termW))
	}

	fmt.Println(line)
}

func fmtPercentile(sec *float64) string {
	if sec == nil {
		return "n/a"
	}
	return humanMs(*sec * 1000)
}
