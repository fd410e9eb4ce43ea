package engine

import (
	"context"

	"go.uber.org/zap"
)

// SweepResult is one attempted step of a sweep.
type SweepResult struct {
	Clients int        `json:"clients"`
	FailPct float64    `json:"fail_pct"`
	Pass    bool       `json:"pass"`
	Summary RunSummary `json:"summary"`
}

// SweepOutcome is the full ordered result list plus the largest cohort size
// that still met the criteria.
type SweepOutcome struct {
	Results []SweepResult `json:"results"`
	Peak    int           `json:"peak_stable_clients"`
}

// RunInvoker executes one cohort run. *Runner satisfies it.
type RunInvoker interface {
	Run(ctx context.Context, addr string, cohortSize int) RunSummary
}

// Sweeper repeats single runs at increasing cohort sizes until a step fails
// its thresholds. Degradation is assumed monotonic: the first failing step
// ends the search.
type Sweeper struct {
	cfg    *Config
	runner RunInvoker
	log    *zap.Logger

	// onStep is invoked after every attempted step; nil disables reporting.
	onStep func(SweepResult)
}

func NewSweeper(cfg *Config, runner *Runner, log *zap.Logger) *Sweeper {
	s := &Sweeper{
		cfg:    cfg,
		runner: runner,
		log:    log,
	}

	if !cfg.JSONOutput {
		s.onStep = PrintSweepStep
	}

	return s
}

// Sweep walks cohort sizes start, start+step, ... up to and including stop.
// A step passes when its connection failure percentage stays within
// MaxFailPct and, if a p50 criterion is set, its p50 TTFB stays within
// MaxP50Ms (no observations count as zero). The peak starts at the first
// size, so a sweep whose very first step fails still reports it.
func (s *Sweeper) Sweep(ctx context.Context, addr string) SweepOutcome {
	out := SweepOutcome{Peak: s.cfg.SweepStart}

	for n := s.cfg.SweepStart; n <= s.cfg.SweepStop; n += s.cfg.SweepStep {
		summary := s.runner.Run(ctx, addr, n)

		attempts := summary.ConnectionsOK + summary.ConnectionsFailed
		if attempts < 1 {
			attempts = 1
		}
		failPct := 100 * float64(summary.ConnectionsFailed) / float64(attempts)

		p50 := 0.0
		if summary.TTFBMsP50 != nil {
			p50 = *summary.TTFBMsP50
		}

		pass := failPct <= s.cfg.MaxFailPct &&
			(s.cfg.MaxP50Ms < 0 || p50 <= s.cfg.MaxP50Ms)

		res := SweepResult{
			Clients: n,
			FailPct: failPct,
			Pass:    pass,
			Summary: summary,
		}
		out.Results = append(out.Results, res)

		if s.onStep != nil {
			s.onStep(res)
		}

		s.log.Debug("sweep step",
			zap.Int("clients", n),
			zap.Float64("fail_pct", failPct),
			zap.Float64("p50_ms", p50),
			zap.Bool("pass", pass))

		if !pass {
			break
		}

		out.Peak = n

		if ctx.Err() != nil {
			break
		}
	}

	return out
}
