package engine

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all parameters for the load harness.
type Config struct {
	Host           string
	Port           int
	Clients        int
	Rate           float64 // probes per second per client, 0 = idle
	Duration       time.Duration
	ReservoirK     int
	Seed           uint64
	ConnectTimeout time.Duration
	StrictPending  bool

	Sweep      bool
	SweepStart int
	SweepStep  int
	SweepStop  int
	MaxFailPct float64
	MaxP50Ms   float64 // negative = no p50 criterion

	ProgressEvery time.Duration
	MetricsListen string
	JSONOutput    bool
	ColorMode     string

	Debug bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           8081,
		Clients:        100,
		Rate:           0.5,
		Duration:       30 * time.Second,
		ReservoirK:     200000,
		Seed:           42,
		ConnectTimeout: 5 * time.Second,
		SweepStart:     50,
		SweepStep:      50,
		SweepStop:      500,
		MaxFailPct:     0,
		MaxP50Ms:       -1,
		ColorMode:      "auto",
	}
}

// Target returns the host:port dial address.
func (c *Config) Target() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects parameter combinations no run can execute.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if c.ReservoirK < 1 {
		return fmt.Errorf("reservoir capacity must be at least 1, got %d", c.ReservoirK)
	}
	if c.Sweep {
		if c.SweepStart < 1 {
			return fmt.Errorf("sweep-start must be at least 1, got %d", c.SweepStart)
		}
		if c.SweepStep < 1 {
			return fmt.Errorf("sweep-step must be at least 1, got %d", c.SweepStep)
		}
		if c.SweepStop < c.SweepStart {
			return fmt.Errorf("sweep-stop %d below sweep-start %d", c.SweepStop, c.SweepStart)
		}
	} else if c.Clients < 1 {
		return fmt.Errorf("clients must be at least 1, got %d", c.Clients)
	}
	return nil
}
