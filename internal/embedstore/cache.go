package embedstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fairface-insight/fairaudit/internal/cache"
	"github.com/fairface-insight/fairaudit/internal/config"
	"github.com/fairface-insight/fairaudit/internal/metrics"
)

// ErrResetUnsupported is returned by Cache.Reset when the store cannot be
// cleared.
var ErrResetUnsupported = errors.New("embedding store does not support reset")

// ComputeFunc produces the embedding for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (*Embedding, error)

// Cache is the process-wide get-or-compute layer in front of a Store.
// Concurrent lookups of the same key share one computation. Failed
// computations are not cached.
type Cache struct {
	store   Store
	flight  singleflight.Group
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache wraps store.
func NewCache(store Store, opts ...CacheOption) *Cache {
	c := &Cache{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the stored embedding for key, calling compute only
// when no entry exists. hit reports whether the value came from the store.
// Store errors degrade to a miss and are logged; only compute errors are
// returned.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (e *Embedding, hit bool, err error) {
	cached, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding store read failed",
			zap.String("image", key.Path),
			zap.Bool("preprocessed", key.Preprocessed),
			zap.Error(err))
	} else if cached != nil {
		if c.metrics != nil {
			c.metrics.EmbedCacheHits.Inc()
		}
		return cached, true, nil
	}

	v, err, shared := c.flight.Do(key.String(), func() (interface{}, error) {
		if c.metrics != nil {
			c.metrics.EmbedCacheMisses.Inc()
		}
		computed, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if computed == nil {
			return nil, fmt.Errorf("compute returned no embedding for %s", key.Path)
		}
		if err := c.store.Set(ctx, key, computed); err != nil {
			c.logger.Warn("embedding store write failed",
				zap.String("image", key.Path),
				zap.Error(err))
		}
		return computed, nil
	})
	if shared && c.metrics != nil {
		c.metrics.EmbedCacheShared.Inc()
	}
	if err != nil {
		return nil, false, err
	}
	return v.(*Embedding), false, nil
}

// Reset drops every cached embedding.
func (c *Cache) Reset(ctx context.Context) error {
	r, ok := c.store.(Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	return r.Reset(ctx)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Tiered serves reads from a bounded in-process front before falling back
// to a shared back store. Back-store hits are promoted into the front.
type Tiered struct {
	front *MemoryStore
	back  Store
}

// NewTiered layers front over back.
func NewTiered(front *MemoryStore, back Store) *Tiered {
	return &Tiered{front: front, back: back}
}

func (t *Tiered) Get(ctx context.Context, key Key) (*Embedding, error) {
	if e, _ := t.front.Get(ctx, key); e != nil {
		return e, nil
	}
	e, err := t.back.Get(ctx, key)
	if err != nil || e == nil {
		return nil, err
	}
	_ = t.front.Set(ctx, key, e)
	return e, nil
}

func (t *Tiered) Set(ctx context.Context, key Key, e *Embedding) error {
	_ = t.front.Set(ctx, key, e)
	return t.back.Set(ctx, key, e)
}

func (t *Tiered) Reset(ctx context.Context) error {
	_ = t.front.Reset(ctx)
	if r, ok := t.back.(Resetter); ok {
		return r.Reset(ctx)
	}
	return nil
}

func (t *Tiered) Close() error {
	return errors.Join(t.front.Close(), t.back.Close())
}

// Open builds the store selected by cfg.CacheBackend. Shared backends are
// fronted by an in-process LRU of cfg.CacheSize entries. Capacity evictions
// from that LRU are counted on m when it is non-nil.
func Open(cfg *config.Config, m *metrics.Metrics) (Store, error) {
	var opts []cache.Option[Key, *Embedding]
	if m != nil {
		opts = append(opts, cache.WithEvictHook(func(Key, *Embedding) { m.EmbedCacheEvicts.Inc() }))
	}
	front, err := NewMemoryStore(cfg.CacheSize, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	switch cfg.CacheBackend {
	case "memory":
		return front, nil
	case "redis":
		back, err := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewTiered(front, back), nil
	case "postgres":
		back, err := NewPostgresStore(cfg.PostgresConn)
		if err != nil {
			return nil, err
		}
		return NewTiered(front, back), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
