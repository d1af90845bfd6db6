package cache

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/codyseavey/cardprice/internal/metrics"
)

// Durations used by the service.
const (
	CardResultDuration = 4 * time.Hour
	CurrencyDuration   = 1 * time.Hour
)

// FetchFunc produces a fresh value on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// ResultCache memoizes values of one shape for a fixed duration. Entries
// older than the duration are ignored on read but left in the store until
// overwritten or swept.
type ResultCache[T any] struct {
	namespace string
	duration  time.Duration
	store     Store
	now       func() time.Time
}

// New creates a cache for namespace backed by store.
func New[T any](store Store, namespace string, duration time.Duration) *ResultCache[T] {
	return &ResultCache[T]{
		namespace: namespace,
		duration:  duration,
		store:     store,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *ResultCache[T]) WithClock(now func() time.Time) *ResultCache[T] {
	c.now = now
	return c
}

// Namespace returns the namespace this cache writes under.
func (c *ResultCache[T]) Namespace() string {
	return c.namespace
}

// Key joins the query shape into a namespaced cache key. Parts are lowercased
// and trimmed so equivalent queries share a slot.
func (c *ResultCache[T]) Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return c.namespace + ":" + strings.Join(normalized, "|")
}

// Get returns the value stored under key if it is younger than the duration.
func (c *ResultCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("Result cache %s: read %q failed: %v", c.namespace, key, err)
		metrics.CacheMisses.WithLabelValues(c.namespace).Inc()
		return zero, false
	}
	if !ok || c.now().Sub(e.StoredAt) >= c.duration {
		metrics.CacheMisses.WithLabelValues(c.namespace).Inc()
		return zero, false
	}

	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		log.Printf("Result cache %s: corrupt entry %q: %v", c.namespace, key, err)
		metrics.CacheMisses.WithLabelValues(c.namespace).Inc()
		return zero, false
	}
	metrics.CacheHits.WithLabelValues(c.namespace).Inc()
	return v, true
}

// Set stores v under key with the current time.
func (c *ResultCache[T]) Set(ctx context.Context, key string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.namespace, key, Entry{Payload: payload, StoredAt: c.now()})
}

// Delete removes key so the next read is a miss.
func (c *ResultCache[T]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// GetOrFetch returns the cached value for key or calls fetch. The fetched
// value is stored only when shouldCache is nil or returns true. refresh
// deletes any existing entry before fetching.
func (c *ResultCache[T]) GetOrFetch(ctx context.Context, key string, refresh bool, fetch FetchFunc[T], shouldCache func(T) bool) (T, bool, error) {
	if refresh {
		if err := c.Delete(ctx, key); err != nil {
			log.Printf("Result cache %s: delete %q failed: %v", c.namespace, key, err)
		}
	} else if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, false, err
	}

	if shouldCache != nil && !shouldCache(v) {
		metrics.CacheSkippedWrites.WithLabelValues(c.namespace).Inc()
		return v, false, nil
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Printf("Result cache %s: write %q failed: %v", c.namespace, key, err)
	}
	return v, false, nil
}

// Sweep removes entries older than the duration from the store.
func (c *ResultCache[T]) Sweep(ctx context.Context) (int, error) {
	n, err := c.store.Sweep(ctx, c.namespace, c.now().Add(-c.duration))
	if n > 0 {
		metrics.CacheSweptEntries.Add(float64(n))
	}
	return n, err
}
