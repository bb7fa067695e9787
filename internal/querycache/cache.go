// Package querycache is a request-keyed cache for remote resources. It serves
// the latest known value per key, revalidates stale entries in the background,
// and guarantees at most one in-flight fetch per key: concurrent callers for
// the same key attach to the pending fetch instead of issuing their own.
package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/observability"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Fetcher produces the value for a key with exactly one network call.
type Fetcher func(ctx context.Context) (any, error)

// Result is the caller-facing view of an entry after a Get.
type Result struct {
	Data      any
	IsLoading bool
	Err       error
	Stale     bool
}

// inflight is one pending fetch that any number of callers may wait on.
// value and err are set before done is closed.
type inflight struct {
	done  chan struct{}
	value any
	err   error
}

type entry struct {
	value       any
	hasValue    bool
	status      Status
	fetchedAt   time.Time
	lastErr     error
	invalidated bool
	observers   int
	fetch       *inflight
	expireAfter time.Duration
}

// sweepInterval is how many Get calls pass between lazy eviction sweeps.
const sweepInterval = 64

// Cache is the process-wide remote data cache. Entries are mutated only
// through the fetch protocol; durable storage is never touched.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	logger   *zap.Logger
	now      func() time.Time
	getCalls int
}

// New returns an empty Cache. The logger may be nil.
func New(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Resource returns the resource kind of a key (the segment before the first
// colon), used as the metric label.
func Resource(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Get returns the current view for key. Fresh values are returned as-is.
// Stale-but-servable values are returned immediately while one background
// refresh runs. Absent or expired entries block on a fetch (deduplicated with
// any concurrent Get for the same key) unless opts.Enabled is false.
func (c *Cache) Get(ctx context.Context, key string, fetcher Fetcher, opts Options) Result {
	opts = opts.withDefaults()
	res := Resource(key)

	c.mu.Lock()
	c.getCalls++
	if c.getCalls%sweepInterval == 0 {
		c.sweepLocked()
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{status: StatusIdle}
		c.entries[key] = e
	}
	e.expireAfter = opts.ExpireAfter
	age := c.now().Sub(e.fetchedAt)

	// Fresh hit: no fetch.
	if e.hasValue && !e.invalidated && age < opts.StaleAfter {
		v := e.value
		c.mu.Unlock()
		observability.CacheHitsTotal.WithLabelValues(res).Inc()
		return Result{Data: v}
	}

	// Stale but still servable: answer from cache, revalidate once.
	if e.hasValue && age < opts.ExpireAfter {
		v, lastErr := e.value, e.lastErr
		loading := e.fetch != nil
		if !loading && opts.Enabled {
			c.startFetchLocked(ctx, key, e, fetcher, opts)
			observability.CacheRefreshTotal.WithLabelValues(res).Inc()
			loading = true
		}
		c.mu.Unlock()
		observability.CacheStaleServesTotal.WithLabelValues(res).Inc()
		return Result{Data: v, IsLoading: loading, Err: lastErr, Stale: true}
	}

	// Miss: absent or expired.
	if !opts.Enabled {
		r := Result{Err: e.lastErr}
		if e.hasValue {
			r.Data = e.value
			r.Stale = true
		}
		c.mu.Unlock()
		return r
	}

	f := e.fetch
	joined := f != nil
	if !joined {
		f = c.startFetchLocked(ctx, key, e, fetcher, opts)
	}
	c.mu.Unlock()

	observability.CacheMissesTotal.WithLabelValues(res).Inc()
	if joined {
		observability.CacheDedupJoinsTotal.WithLabelValues(res).Inc()
	}

	select {
	case <-f.done:
	case <-ctx.Done():
		// The fetch keeps running and will populate the cache for later
		// observers of the same key.
		return Result{IsLoading: true, Err: ctx.Err()}
	}
	if f.err != nil {
		return Result{Data: c.lastValue(key), Err: f.err}
	}
	return Result{Data: f.value}
}

// lastValue returns the cached value for key if one is present.
func (c *Cache) lastValue(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.hasValue {
		return e.value
	}
	return nil
}

// startFetchLocked registers an in-flight fetch for e and launches it.
// Caller holds c.mu.
func (c *Cache) startFetchLocked(ctx context.Context, key string, e *entry, fetcher Fetcher, opts Options) *inflight {
	f := &inflight{done: make(chan struct{})}
	e.fetch = f
	e.status = StatusLoading
	// Detach from the caller: a torn-down requester must not cancel a fetch
	// that other observers of the key can still use.
	go c.run(context.WithoutCancel(ctx), key, f, fetcher, opts)
	return f
}

// run executes the fetch with fixed-delay retries and applies the outcome.
func (c *Cache) run(ctx context.Context, key string, f *inflight, fetcher Fetcher, opts Options) {
	var value any
	var err error
	for attempt := 0; ; attempt++ {
		value, err = fetcher(ctx)
		if err == nil || attempt >= opts.MaxRetries {
			break
		}
		observability.FetchRetriesTotal.WithLabelValues(Resource(key)).Inc()
		c.logger.Debug("fetch retry scheduled",
			zap.String("key", key), zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(opts.RetryDelay)
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.fetch == f {
		e.fetch = nil
		if err == nil {
			e.value = value
			e.hasValue = true
			e.fetchedAt = c.now()
			e.lastErr = nil
			e.invalidated = false
			e.status = StatusSuccess
		} else {
			e.lastErr = err
			e.status = StatusError
		}
	}
	c.mu.Unlock()

	f.value = value
	f.err = err
	close(f.done)
}

// Invalidate marks every entry whose key starts with prefix as stale. The
// entries keep serving their cached values; the next Get triggers a refresh.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) && e.hasValue {
			e.invalidated = true
			n++
		}
	}
	c.logger.Debug("cache invalidated", zap.String("prefix", prefix), zap.Int("entries", n))
	return n
}

// Mutate applies updater to the cached value for key without a network round
// trip. An absent entry is created from updater(nil). The entry's freshness
// clock is not reset, so a stale entry still revalidates on its next Get.
func (c *Cache) Mutate(key string, updater func(any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{fetchedAt: c.now()}
		c.entries[key] = e
	}
	e.value = updater(e.value)
	e.hasValue = true
	e.status = StatusSuccess
	e.lastErr = nil
}

// Observe registers an active observer for key, pinning the entry against
// eviction. Pair with Release.
func (c *Cache) Observe(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{status: StatusIdle}
		c.entries[key] = e
	}
	e.observers++
}

// Release drops one observer registration for key.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.observers > 0 {
		e.observers--
	}
}

// Sweep drops unobserved entries past their expiry. Also runs lazily every
// sweepInterval Get calls. Dropping is a memory-management convenience; the
// next Get for a dropped key behaves as a fresh miss.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
}

func (c *Cache) sweepLocked() {
	now := c.now()
	for key, e := range c.entries {
		if e.observers > 0 || e.fetch != nil || e.expireAfter <= 0 {
			continue
		}
		if !e.hasValue && e.status == StatusIdle {
			continue
		}
		if now.Sub(e.fetchedAt) > e.expireAfter {
			delete(c.entries, key)
			observability.CacheEvictionsTotal.Inc()
		}
	}
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
