// Package hoard provides a bounded, priority-aware in-memory cache for
// decoded asset blobs. Entries carry a priority that scales how long
// they stay protected from eviction while idle; under size pressure the
// cache reclaims from the least-recently-used end, and an optional
// loader turns misses into resilient, deduplicated fetches.
package hoard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/hoard/config"
	"goflare.io/hoard/internal/cache"
	"goflare.io/hoard/internal/retrier"
	"goflare.io/hoard/models"
)

// Loader produces the bytes for a key that is not cached.
type Loader = config.Loader

// Option configures a Cache during construction.
type Option func(*config.Config) error

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config.Config) error {
		cfg.Logger = logger
		return nil
	}
}

// WithMaxSize sets the capacity ceiling in bytes.
func WithMaxSize(maxSize uint64) Option {
	return func(cfg *config.Config) error {
		if maxSize == 0 {
			return fmt.Errorf("max size must be positive")
		}
		cfg.MaxSize = maxSize
		return nil
	}
}

// WithCleanupThresholds sets the utilization fraction that triggers
// proactive reclamation and the fraction reclamation frees down to.
func WithCleanupThresholds(threshold, target float64) Option {
	return func(cfg *config.Config) error {
		if target <= 0 || target > threshold || threshold > 1 {
			return fmt.Errorf("invalid cleanup thresholds: target %.2f, threshold %.2f", target, threshold)
		}
		cfg.CleanupThreshold = threshold
		cfg.CleanupTarget = target
		return nil
	}
}

// WithRetentionWindows sets the base idle window that protects entries
// from eviction and the absolute age bound enforced by the expiry sweep.
func WithRetentionWindows(minIdle, maxAge time.Duration) Option {
	return func(cfg *config.Config) error {
		if minIdle <= 0 || maxAge <= 0 {
			return fmt.Errorf("retention windows must be positive")
		}
		cfg.MinIdleTime = minIdle
		cfg.MaxAge = maxAge
		return nil
	}
}

// WithCleanupInterval sets the throttle between expiry sweeps and the
// cadence of the background janitor. A non-positive interval disables
// the janitor; sweeps then run only when callers invoke them.
func WithCleanupInterval(interval time.Duration) Option {
	return func(cfg *config.Config) error {
		cfg.CleanupInterval = interval
		return nil
	}
}

// WithResilience overrides the retry and circuit breaker settings for
// the loader slow path.
func WithResilience(rc config.ResilienceConfig) Option {
	return func(cfg *config.Config) error {
		cfg.Resilience = rc
		return nil
	}
}

// WithLoader sets the loader used by GetOrLoad.
func WithLoader(loader Loader) Option {
	return func(cfg *config.Config) error {
		if loader == nil {
			return fmt.Errorf("loader must not be nil")
		}
		cfg.Loader = loader
		return nil
	}
}

// Cache is the facade over the core store. All methods are safe for
// concurrent use.
type Cache struct {
	store  *cache.Store
	cfg    *config.Config
	logger *zap.Logger
	tracer trace.Tracer

	loader  Loader
	sf      singleflight.Group
	breaker *gobreaker.CircuitBreaker
	retrier *retrier.Retrier

	filterMu sync.Mutex
	filter   *bloom.BloomFilter

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Cache. The context bounds the lifetime of the
// background janitor; Close stops it explicitly.
func New(ctx context.Context, opts ...Option) (*Cache, error) {
	cfg := config.New()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize default logger: %w", err)
		}
		cfg.Logger = logger
	}

	r, err := retrier.New(
		cfg.Resilience.MaxAttempts,
		cfg.Resilience.BaseDelay,
		cfg.Resilience.MaxDelay,
		cfg.Resilience.Factor,
		cfg.Resilience.Jitter,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	c := &Cache{
		store:   cache.NewStore(cfg, cfg.Logger),
		cfg:     cfg,
		logger:  cfg.Logger,
		tracer:  otel.Tracer("hoard"),
		loader:  cfg.Loader,
		breaker: gobreaker.NewCircuitBreaker(cfg.Resilience.Breaker),
		retrier: r,
		filter: bloom.NewWithEstimates(
			cfg.BloomFilter.ExpectedItems,
			cfg.BloomFilter.FalsePositiveRate,
		),
	}

	if cfg.CleanupInterval > 0 {
		jctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.wg.Add(1)
		go c.janitor(jctx)
	}

	return c, nil
}

// Insert caches data under key with normal priority.
func (c *Cache) Insert(ctx context.Context, key string, data []byte) {
	c.InsertWithPriority(ctx, key, data, models.PriorityNormal)
}

// InsertWithPriority caches data under key. Making room for the blob
// may evict other entries; the inserted key itself is never evicted.
func (c *Cache) InsertWithPriority(ctx context.Context, key string, data []byte, priority models.Priority, tags ...string) {
	_, span := c.tracer.Start(ctx, "Cache.Insert", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	c.store.Insert(key, data, priority, tags...)
	c.filterAdd(key)
}

// Get returns a copy of the cached bytes for key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	_, span := c.tracer.Start(ctx, "Cache.Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	return c.store.Get(key)
}

// Remove deletes the entry under key and returns its bytes.
func (c *Cache) Remove(ctx context.Context, key string) ([]byte, bool) {
	_, span := c.tracer.Start(ctx, "Cache.Remove", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	return c.store.Remove(key)
}

// Contains reports whether key is cached, without refreshing recency.
func (c *Cache) Contains(key string) bool {
	return c.store.Contains(key)
}

// Clear drops every entry and resets the inserted-key filter.
func (c *Cache) Clear(ctx context.Context) {
	_, span := c.tracer.Start(ctx, "Cache.Clear")
	defer span.End()

	c.store.Clear()

	c.filterMu.Lock()
	c.filter = bloom.NewWithEstimates(
		c.cfg.BloomFilter.ExpectedItems,
		c.cfg.BloomFilter.FalsePositiveRate,
	)
	c.filterMu.Unlock()
}

// Warmup preloads a batch of assets.
func (c *Cache) Warmup(ctx context.Context, assets []models.WarmupAsset) {
	_, span := c.tracer.Start(ctx, "Cache.Warmup", trace.WithAttributes(attribute.Int("assets", len(assets))))
	defer span.End()

	c.store.Warmup(assets)
	for _, a := range assets {
		c.filterAdd(a.Key)
	}
}

// CleanupExpired runs the throttled expiry sweep and returns the number
// of entries removed.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	_, span := c.tracer.Start(ctx, "Cache.CleanupExpired")
	defer span.End()

	removed := c.store.CleanupExpired()
	span.SetAttributes(attribute.Int("removed", removed))
	return removed
}

// SetMemoryPressure records an external memory-scarcity signal in
// [0,1] and may reclaim space in response.
func (c *Cache) SetMemoryPressure(ctx context.Context, pressure float64) {
	_, span := c.tracer.Start(ctx, "Cache.SetMemoryPressure",
		trace.WithAttributes(attribute.Float64("pressure", pressure)))
	defer span.End()

	c.store.SetMemoryPressure(pressure)
}

// Optimize re-ranks the recency order by access frequency so hot
// entries sit furthest from eviction.
func (c *Cache) Optimize(ctx context.Context) {
	_, span := c.tracer.Start(ctx, "Cache.Optimize")
	defer span.End()

	c.store.Optimize()
}

// MemoryUsage returns the total cached bytes.
func (c *Cache) MemoryUsage() uint64 {
	return c.store.MemoryUsage()
}

// Utilization returns cached bytes over configured capacity.
func (c *Cache) Utilization() float64 {
	return c.store.Utilization()
}

// Stats returns a telemetry snapshot.
func (c *Cache) Stats() models.Stats {
	return c.store.Stats()
}

// ExportReport renders a human-readable usage report.
func (c *Cache) ExportReport() (string, error) {
	return c.store.ExportReport()
}

// Close stops the background janitor. It is safe to call multiple
// times and never fails; the signature returns error for symmetry with
// other closers.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
		c.logger.Info("cache closed")
	})
	return nil
}

func (c *Cache) janitor(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.store.CleanupExpired()
		}
	}
}

func (c *Cache) filterAdd(key string) {
	c.filterMu.Lock()
	c.filter.AddString(key)
	c.filterMu.Unlock()
}

func (c *Cache) filterTest(key string) bool {
	c.filterMu.Lock()
	ok := c.filter.TestString(key)
	c.filterMu.Unlock()
	return ok
}
