package engine

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// App dispatches a configured invocation to a single run or a sweep and
// renders the result.
type App struct {
	Config *Config

	runner   *Runner
	sweeper  *Sweeper
	exporter *Exporter
	log      *zap.Logger
}

func NewApp(cfg *Config, runner *Runner, sweeper *Sweeper, exporter *Exporter, log *zap.Logger) *App {
	return &App{
		Config:   cfg,
		runner:   runner,
		sweeper:  sweeper,
		exporter: exporter,
		log:      log,
	}
}

// Run executes the harness. Cancelling ctx ends the current run early and,
// in sweep mode, stops the sweep after that run; neither is an error.
func (a *App) Run(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	if a.exporter != nil {
		a.exporter.Start()
		defer a.exporter.Stop()
	}

	addr := a.Config.Target()

	if a.Config.Sweep {
		outcome := a.sweeper.Sweep(ctx, addr)

		if a.Config.JSONOutput {
			return WriteJSON(os.Stdout, outcome)
		}

		PrintSweepOutcome(outcome)

		return nil
	}

	summary := a.runner.Run(ctx, addr, a.Config.Clients)

	if a.Config.JSONOutput {
		return WriteJSON(os.Stdout, summary)
	}

	PrintRunSummary(summary)

	return nil
}
