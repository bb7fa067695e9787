package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testOptions keeps retries out of the way unless a test wants them.
var testOptions = Options{
	StaleAfter:  5 * time.Minute,
	ExpireAfter: 10 * time.Minute,
	MaxRetries:  -1,
	RetryDelay:  time.Millisecond,
	Enabled:     true,
}

// setNow swaps the cache clock. Only call between Gets, never while a fetch
// is in flight.
func setNow(c *Cache, t time.Time) {
	c.mu.Lock()
	c.now = func() time.Time { return t }
	c.mu.Unlock()
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCache_Get_ConcurrentDedup(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32

	fetcher := func(ctx context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond) // Simulate API call
		return "seattle-data", nil
	}

	// Launch 10 concurrent Gets for the same key
	var wg sync.WaitGroup
	results := make([]Result, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = c.Get(context.Background(), "weather:current:city:seattle", fetcher, testOptions)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res.Err != nil {
			t.Errorf("Get %d error = %v, want nil", i, res.Err)
		}
		if res.Data != "seattle-data" {
			t.Errorf("Get %d data = %v, want seattle-data", i, res.Data)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher call count = %d, want 1 (dedup failed)", got)
	}
}

func TestCache_Get_FreshHit_NoFetch(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 42, nil
	}

	first := c.Get(context.Background(), "weather:current:city:hanoi", fetcher, testOptions)
	if first.Err != nil {
		t.Fatalf("Get() error = %v", first.Err)
	}

	second := c.Get(context.Background(), "weather:current:city:hanoi", fetcher, testOptions)
	if second.Data != 42 {
		t.Errorf("Get() data = %v, want 42", second.Data)
	}
	if second.Stale || second.IsLoading {
		t.Errorf("Get() stale = %v loading = %v, want fresh hit", second.Stale, second.IsLoading)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher call count = %d, want 1 (fresh hit must not fetch)", got)
	}
}

func TestCache_Get_StaleServe_SingleBackgroundRefresh(t *testing.T) {
	c := New(nil)
	base := time.Now()
	setNow(c, base)

	var calls atomic.Int32
	release := make(chan struct{})
	fetcher := func(ctx context.Context) (any, error) {
		if calls.Add(1) > 1 {
			<-release // Hold the refresh open so repeated stale Gets can observe it
			return "new", nil
		}
		return "old", nil
	}

	const key = "weather:current:city:cantho"
	if res := c.Get(context.Background(), key, fetcher, testOptions); res.Err != nil {
		t.Fatalf("Get() error = %v", res.Err)
	}

	// Past StaleAfter but before ExpireAfter.
	setNow(c, base.Add(6*time.Minute))

	for i := 0; i < 5; i++ {
		res := c.Get(context.Background(), key, fetcher, testOptions)
		if res.Data != "old" {
			t.Errorf("stale Get %d data = %v, want old", i, res.Data)
		}
		if !res.Stale {
			t.Errorf("stale Get %d stale = false, want true", i)
		}
		if !res.IsLoading {
			t.Errorf("stale Get %d isLoading = false, want true", i)
		}
	}
	// The refresh runs on its own goroutine; wait for it to start before
	// checking that only one was ever launched.
	waitFor(t, func() bool { return calls.Load() == 2 }, "background refresh never started")
	if got := calls.Load(); got != 2 {
		t.Errorf("fetcher call count = %d, want 2 (exactly one background refresh)", got)
	}

	close(release)
	waitFor(t, func() bool {
		res := c.Get(context.Background(), key, fetcher, testOptions)
		return res.Data == "new" && !res.Stale
	}, "refreshed value never became visible")
}

func TestCache_Get_ExpiredBlocksOnFetch(t *testing.T) {
	c := New(nil)
	base := time.Now()
	setNow(c, base)

	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		return int(n), nil
	}

	const key = "forecast:city:hue"
	c.Get(context.Background(), key, fetcher, testOptions)

	setNow(c, base.Add(11*time.Minute)) // past ExpireAfter

	res := c.Get(context.Background(), key, fetcher, testOptions)
	if res.Err != nil {
		t.Fatalf("Get() error = %v", res.Err)
	}
	if res.Data != 2 {
		t.Errorf("Get() data = %v, want 2 (expired entry must refetch)", res.Data)
	}
	if res.Stale {
		t.Error("Get() stale = true, want false after blocking refetch")
	}
}

func TestCache_Get_ErrorKeepsLastValue(t *testing.T) {
	c := New(nil)
	base := time.Now()
	setNow(c, base)

	wantErr := errors.New("api failure")
	var fail atomic.Bool
	fetcher := func(ctx context.Context) (any, error) {
		if fail.Load() {
			return nil, wantErr
		}
		return "good", nil
	}

	const key = "weather:current:city:dalat"
	c.Get(context.Background(), key, fetcher, testOptions)

	fail.Store(true)
	setNow(c, base.Add(11*time.Minute)) // past ExpireAfter

	res := c.Get(context.Background(), key, fetcher, testOptions)
	if !errors.Is(res.Err, wantErr) {
		t.Errorf("Get() error = %v, want %v", res.Err, wantErr)
	}
	if res.Data != "good" {
		t.Errorf("Get() data = %v, want last resolved value on error", res.Data)
	}
}

func TestCache_Get_RetriesThenSucceeds(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	opts := testOptions
	opts.MaxRetries = 2
	res := c.Get(context.Background(), "analysis:rice-market", fetcher, opts)
	if res.Err != nil {
		t.Fatalf("Get() error = %v, want nil after retries", res.Err)
	}
	if res.Data != "ok" {
		t.Errorf("Get() data = %v, want ok", res.Data)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("fetcher call count = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestCache_Get_ExhaustedRetriesReturnError(t *testing.T) {
	c := New(nil)
	wantErr := errors.New("down")
	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, wantErr
	}

	opts := testOptions
	opts.MaxRetries = 2
	res := c.Get(context.Background(), "videos:climate", fetcher, opts)
	if !errors.Is(res.Err, wantErr) {
		t.Errorf("Get() error = %v, want %v", res.Err, wantErr)
	}
	if res.Data != nil {
		t.Errorf("Get() data = %v, want nil (no value ever resolved)", res.Data)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("fetcher call count = %d, want 3", got)
	}
}

func TestCache_Get_CanceledCallerDoesNotCancelFetch(t *testing.T) {
	c := New(nil)
	fetcher := func(ctx context.Context) (any, error) {
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			t.Error("fetch context canceled; fetch must be detached from the caller")
		}
		return "late", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	const key = "weather:current:city:vinh"
	res := c.Get(ctx, key, fetcher, testOptions)
	if !res.IsLoading {
		t.Error("Get() isLoading = false, want true for abandoned wait")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Get() error = %v, want context.DeadlineExceeded", res.Err)
	}

	// The detached fetch still lands for later observers.
	waitFor(t, func() bool {
		res := c.Get(context.Background(), key, fetcher, testOptions)
		return res.Data == "late"
	}, "detached fetch never populated the cache")
}

func TestCache_Invalidate_ServesStaleAndRefreshes(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		return int(n), nil
	}

	const key = "weather:current:city:hanoi"
	c.Get(context.Background(), key, fetcher, testOptions)

	if n := c.Invalidate("weather:current:"); n != 1 {
		t.Fatalf("Invalidate() = %d, want 1", n)
	}

	res := c.Get(context.Background(), key, fetcher, testOptions)
	if res.Data != 1 {
		t.Errorf("Get() data = %v, want 1 (invalidated entry still serves cached value)", res.Data)
	}
	if !res.Stale {
		t.Error("Get() stale = false, want true after invalidation")
	}

	waitFor(t, func() bool {
		res := c.Get(context.Background(), key, fetcher, testOptions)
		return res.Data == 2 && !res.Stale
	}, "invalidated entry never revalidated")
}

func TestCache_Mutate_NoFetchAndNoFreshnessReset(t *testing.T) {
	c := New(nil)
	base := time.Now()
	setNow(c, base)

	var calls atomic.Int32
	fetcher := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		return int(n) * 10, nil
	}

	const key = "weather:current:city:hcmc"
	c.Get(context.Background(), key, fetcher, testOptions)

	c.Mutate(key, func(v any) any { return v.(int) + 1 })

	res := c.Get(context.Background(), key, fetcher, testOptions)
	if res.Data != 11 {
		t.Errorf("Get() data = %v, want 11 after mutate", res.Data)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher call count = %d, want 1 (mutate must not fetch)", got)
	}

	// Mutate does not reset the freshness clock: once stale, the entry still
	// revalidates.
	setNow(c, base.Add(6*time.Minute))
	res = c.Get(context.Background(), key, fetcher, testOptions)
	if !res.Stale {
		t.Error("Get() stale = false, want true (mutate must not extend freshness)")
	}
}

func TestCache_Sweep_RespectsObservers(t *testing.T) {
	c := New(nil)
	base := time.Now()
	setNow(c, base)

	fetcher := func(ctx context.Context) (any, error) { return "v", nil }
	c.Get(context.Background(), "videos:climate", fetcher, testOptions)
	c.Get(context.Background(), "videos:rice:gia lua:10", fetcher, testOptions)
	c.Observe("videos:climate")

	setNow(c, base.Add(11*time.Minute)) // past ExpireAfter for both
	c.Sweep()

	if got := c.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1 (observed entry must survive the sweep)", got)
	}

	c.Release("videos:climate")
	c.Sweep()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0 after release", got)
	}
}

func TestCache_Get_Disabled(t *testing.T) {
	c := New(nil)
	fetcher := func(ctx context.Context) (any, error) {
		t.Error("fetcher called with Enabled=false")
		return nil, nil
	}

	opts := testOptions
	opts.Enabled = false
	res := c.Get(context.Background(), "analysis:rice-market", fetcher, opts)
	if res.Data != nil || res.Err != nil {
		t.Errorf("Get() = %+v, want empty result for disabled miss", res)
	}
}

func TestResource(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"weather:current:city:hanoi", "weather"},
		{"forecast:coords:10.0452,105.7469", "forecast"},
		{"videos:climate", "videos"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Resource(tt.key); got != tt.want {
			t.Errorf("Resource(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
