package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestApp(cfg *Config, dial Dialer) *App {
	log := zap.NewNop()
	runner := NewRunner(cfg, dial, log, nil)
	sweeper := NewSweeper(cfg, runner, log)

	return NewApp(cfg, runner, sweeper, nil, log)
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0

	app := newTestApp(cfg, refusingDialer())

	assert.Error(t, app.Run(context.Background()))
}

func TestAppSingleRunAgainstDeadTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 3
	cfg.Duration = 100 * time.Millisecond
	cfg.JSONOutput = true

	app := newTestApp(cfg, refusingDialer())

	assert.NoError(t, app.Run(context.Background()))
}

func TestAppSweepAgainstDeadTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sweep = true
	cfg.SweepStart = 2
	cfg.SweepStep = 2
	cfg.SweepStop = 6
	cfg.Duration = 100 * time.Millisecond
	cfg.JSONOutput = true

	app := newTestApp(cfg, refusingDialer())

	// Every connection refused: the first step fails and ends the sweep.
	assert.NoError(t, app.Run(context.Background()))
}
