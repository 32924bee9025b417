package hoard

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/hoard/models"
)

// GetOrLoad returns the cached bytes for key, invoking the configured
// loader on a miss and caching what it produces under the given
// priority. Concurrent loads for the same key are coalesced so the
// loader runs once; the loader call itself is retried with backoff
// behind a circuit breaker. The inserted-key filter short-circuits the
// cache lookup for keys that were never inserted.
func (c *Cache) GetOrLoad(ctx context.Context, key string, priority models.Priority) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.GetOrLoad", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if c.filterTest(key) {
		if data, ok := c.store.Get(key); ok {
			return data, nil
		}
	}

	if c.loader == nil {
		return nil, ErrNoLoader
	}

	v, err, shared := c.sf.Do(key, func() (any, error) {
		// Another caller may have finished loading while we queued.
		if data, ok := c.store.Get(key); ok {
			return data, nil
		}

		var data []byte
		_, err := c.breaker.Execute(func() (any, error) {
			return nil, c.retrier.Run(ctx, func() error {
				loaded, err := c.loader(ctx, key)
				if err != nil {
					return err
				}
				data = loaded
				return nil
			})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load key %s: %w", key, err)
		}

		c.store.Insert(key, data, priority)
		c.filterAdd(key)
		return data, nil
	})
	if err != nil {
		c.logger.Warn("loader failed", zap.Error(err), zap.String("key", key))
		return nil, err
	}

	data := v.([]byte)
	if shared {
		// Coalesced callers share the loader's slice; hand each its own.
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return data, nil
}
