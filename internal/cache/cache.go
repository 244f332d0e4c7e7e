package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"flakecast/internal/forecast"
	"flakecast/pkg/errors"
)

// Key identifies one forecast. It is the request tuple itself.
type Key = forecast.Request

// ComputeFunc produces the result for a key on a miss.
type ComputeFunc func(ctx context.Context) (*forecast.Result, error)

// ResultCache memoizes forecast results in process. With a zero TTL entries
// never expire and there is no eviction; Invalidate and Purge are the only
// ways to drop them.
type ResultCache struct {
	mu     sync.RWMutex
	items  map[Key]*entry
	ttl    time.Duration
	group  singleflight.Group
	stats  Stats
	logger *zap.Logger
	now    func() time.Time
}

type entry struct {
	result    *forecast.Result
	createdAt time.Time
}

// Stats tracks cache effectiveness.
type Stats struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Computes  atomic.Int64
	Shared    atomic.Int64
	Evictions atomic.Int64
}

// Snapshot is a copy of Stats for display.
type Snapshot struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Computes  int64 `json:"computes"`
	Shared    int64 `json:"shared"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Option customizes a ResultCache
type Option func(*ResultCache)

// WithTTL expires entries older than ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) { c.ttl = ttl }
}

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *ResultCache) { c.logger = l }
}

// New creates an empty cache
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		items:  make(map[Key]*entry),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a cached result without computing.
func (c *ResultCache) Get(key Key) (*forecast.Result, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur == e {
			delete(c.items, key)
			c.stats.Evictions.Add(1)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// GetOrCompute returns the cached result for key or runs compute once. Callers
// that arrive while a computation for the same key is in flight wait for it
// instead of issuing their own warehouse query. Errors are not cached.
//
// The computation is detached from the cancellation of whichever caller
// started it; compute is expected to apply its own deadline. A caller whose
// ctx ends stops waiting without affecting the others.
func (c *ResultCache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (*forecast.Result, error) {
	if res, ok := c.Get(key); ok {
		c.stats.Hits.Add(1)
		c.logger.Debug("forecast cache hit", zap.Stringer("key", key))
		return res, nil
	}
	c.stats.Misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(key), func() (interface{}, error) {
		// A caller that finished just before us may have filled the entry.
		if res, ok := c.Get(key); ok {
			return res, nil
		}

		c.stats.Computes.Add(1)
		res, err := compute(detached)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.items[key] = &entry{result: res, createdAt: c.now()}
		c.mu.Unlock()
		return res, nil
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("stopped waiting for forecast", zap.Stringer("key", key), zap.Error(ctx.Err()))
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeQueryCanceled, "The forecast was canceled").
			WithSeverity(errors.SeverityInfo).
			AsRecoverable()
	case r := <-ch:
		if r.Shared {
			c.stats.Shared.Add(1)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		c.logger.Debug("forecast cache fill", zap.Stringer("key", key), zap.Bool("shared", r.Shared))
		return r.Val.(*forecast.Result), nil
	}
}

// Invalidate drops one key.
func (c *ResultCache) Invalidate(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Purge drops every entry and returns how many there were.
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[Key]*entry)
	return n
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Snapshot {
	return Snapshot{
		Hits:      c.stats.Hits.Load(),
		Misses:    c.stats.Misses.Load(),
		Computes:  c.stats.Computes.Load(),
		Shared:    c.stats.Shared.Load(),
		Evictions: c.stats.Evictions.Load(),
		Entries:   c.Len(),
	}
}

func (c *ResultCache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) >= c.ttl
}

func flightKey(k Key) string {
	return fmt.Sprintf("%d/%d/%d", k.Store, k.Item, k.Horizon)
}
