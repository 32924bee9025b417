// Package config holds the tunables for the hoard cache.
package config

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Loader produces the bytes for a key that is not cached. It is the
// cache's only view of the outside world; the bytes it returns are
// stored and served back verbatim, never parsed.
type Loader func(ctx context.Context, key string) ([]byte, error)

// DefaultMaxSize is the capacity used when none is configured (128 MiB).
const DefaultMaxSize uint64 = 128 * 1024 * 1024

// assumedEntrySize is the flat per-entry estimate used to derive the
// soft entry-count hint from the byte capacity. The byte bound stays
// authoritative; the hint only feeds the proactive-reclaim check.
const assumedEntrySize uint64 = 1024

// Config is the configuration for a Cache.
type Config struct {
	MaxSize uint64 // capacity ceiling in bytes

	CleanupThreshold float64       // utilization fraction that triggers proactive reclamation
	CleanupTarget    float64       // utilization fraction reclamation frees down to
	MinIdleTime      time.Duration // base idle window before an entry is eviction-eligible
	MaxAge           time.Duration // absolute lifetime bound enforced by the expiry sweep
	CleanupInterval  time.Duration // throttle between expiry sweeps; <= 0 disables the janitor

	Resilience  ResilienceConfig  // loader slow-path retry and circuit breaker settings
	BloomFilter BloomFilterConfig // negative-lookup filter settings

	Loader Loader
	Logger *zap.Logger
}

// ResilienceConfig configures retries and the circuit breaker around
// the caller-supplied loader.
type ResilienceConfig struct {
	Breaker     gobreaker.Settings
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
}

// BloomFilterConfig configures the inserted-key filter used to skip
// map lookups for keys that were never cached.
type BloomFilterConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// New returns a Config with production defaults.
func New() *Config {
	return &Config{
		MaxSize: DefaultMaxSize,

		CleanupThreshold: 0.8,
		CleanupTarget:    0.6,
		MinIdleTime:      5 * time.Minute,
		MaxAge:           time.Hour,
		CleanupInterval:  time.Minute,

		Resilience: ResilienceConfig{
			Breaker:     gobreaker.Settings{Name: "hoard-loader"},
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Factor:      2.0,
			Jitter:      0.2,
		},
		BloomFilter: BloomFilterConfig{
			ExpectedItems:     100000,
			FalsePositiveRate: 0.01,
		},
	}
}

// MaxEntries derives the soft entry-count hint from MaxSize.
func (c *Config) MaxEntries() int {
	n := c.MaxSize / assumedEntrySize
	if n < 1 {
		n = 1
	}
	return int(n)
}
