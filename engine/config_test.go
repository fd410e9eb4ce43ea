package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "10.0.0.7"
	cfg.Port = 9000

	assert.Equal(t, "10.0.0.7:9000", cfg.Target())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"zero duration", func(c *Config) { c.Duration = 0 }, true},
		{"zero reservoir", func(c *Config) { c.ReservoirK = 0 }, true},
		{"zero clients", func(c *Config) { c.Clients = 0 }, true},
		{"sweep ignores clients", func(c *Config) {
			c.Sweep = true
			c.Clients = 0
		}, false},
		{"sweep bad step", func(c *Config) {
			c.Sweep = true
			c.SweepStep = 0
		}, true},
		{"sweep stop below start", func(c *Config) {
			c.Sweep = true
			c.SweepStart = 100
			c.SweepStop = 50
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
