package engine

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the fx module for the load harness engine.
var Module = fx.Module("engine",
	fx.Provide(
		NewLogger,
		NewDialerFromConfig,
		NewExporterFromConfig,
		NewRunner,
		NewSweeper,
		NewApp,
	),
)

// NewLogger provides the harness logger. Per-client failures are counted,
// not reported, so anything below debug stays silent.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}

	return zap.NewNop(), nil
}

// NewDialerFromConfig provides the production TCP dialer.
func NewDialerFromConfig(cfg *Config) Dialer {
	return NetDialer(cfg.ConnectTimeout)
}

// NewExporterFromConfig provides the optional Prometheus exporter; nil when
// no listen address is configured.
func NewExporterFromConfig(cfg *Config, log *zap.Logger) *Exporter {
	if cfg.MetricsListen == "" {
		return nil
	}

	return NewExporter(cfg.MetricsListen, log)
}
