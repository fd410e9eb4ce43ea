package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/raghavg332/chatload/engine"
)

func main() {
	cfg := engine.DefaultConfig()

	setupFlags(cfg)

	pflag.Parse()

	useColor := true
	if strings.ToLower(cfg.ColorMode) == "never" || os.Getenv("NO_COLOR") != "" {
		useColor = false
	}
	if strings.ToLower(cfg.ColorMode) == "auto" && !engine.IsTTY() {
		useColor = false
	}

	engine.InitColorStyles(useColor)

	fx.New(
		fx.Provide(func() *engine.Config { return cfg }),
		fx.WithLogger(func() fxevent.Logger {
			if cfg.Debug {
				return &fxevent.ConsoleLogger{W: os.Stderr}
			}
			return fxevent.NopLogger
		}),
		engine.Module,
		fx.Invoke(runApp),
	).Run()
}

func setupFlags(cfg *engine.Config) {
	pflag.StringVar(&cfg.Host, "host", cfg.Host, "Target host")
	pflag.IntVar(&cfg.Port, "port", cfg.Port, "Target port")
	pflag.IntVar(&cfg.Clients, "clients", cfg.Clients, "Cohort size for a single run")
	pflag.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Probes per second per client (0 = idle clients)")
	pflag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (e.g. 30s, 2m)")
	pflag.IntVar(&cfg.ReservoirK, "reservoir", cfg.ReservoirK, "Latency reservoir capacity")
	pflag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Reservoir sampling seed")
	pflag.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Dial timeout per connection")
	pflag.BoolVar(&cfg.StrictPending, "strict-pending", cfg.StrictPending, "Queue outstanding probes FIFO instead of overwriting the pending one")

	pflag.BoolVar(&cfg.Sweep, "sweep", cfg.Sweep, "Enable sweep mode")
	pflag.IntVar(&cfg.SweepStart, "sweep-start", cfg.SweepStart, "First cohort size of the sweep")
	pflag.IntVar(&cfg.SweepStep, "sweep-step", cfg.SweepStep, "Cohort size increment per step")
	pflag.IntVar(&cfg.SweepStop, "sweep-stop", cfg.SweepStop, "Last cohort size of the sweep (inclusive)")
	pflag.Float64Var(&cfg.MaxFailPct, "max-fail-pct", cfg.MaxFailPct, "Stop the sweep when connection failure % exceeds this")
	pflag.Float64Var(&cfg.MaxP50Ms, "max-p50-ms", cfg.MaxP50Ms, "Stop the sweep when p50 TTFB (ms) exceeds this (negative = no limit)")

	pflag.DurationVar(&cfg.ProgressEvery, "progress-interval", cfg.ProgressEvery, "Progress report interval during a run (0 = off)")
	pflag.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "Serve Prometheus metrics on this address (empty = off)")
	pflag.BoolVar(&cfg.JSONOutput, "json", cfg.JSONOutput, "Emit results as JSON instead of the text report")
	pflag.StringVar(&cfg.ColorMode, "color", cfg.ColorMode, "Color output: auto|always|never")

	pflag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug output (including FX logs)")
}

func runApp(lifecycle fx.Lifecycle, app *engine.App, shutdown fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)

				if err := app.Run(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}

				_ = shutdown.Shutdown()
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
			case <-stopCtx.Done():
			}

			return nil
		},
	})
}
