package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrFetchJoinsInFlightCall(t *testing.T) {
	c, err := New[string, int]("", func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return 42, nil
	}

	results := make(chan int, 2)
	go func() {
		v, err := c.GetOrFetch(context.Background(), "k", fetch)
		if err != nil {
			t.Errorf("first GetOrFetch: %v", err)
		}
		results <- v
	}()

	<-started
	go func() {
		v, err := c.GetOrFetch(context.Background(), "k", fetch)
		if err != nil {
			t.Errorf("second GetOrFetch: %v", err)
		}
		results <- v
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		if v := <-results; v != 42 {
			t.Fatalf("expected joined result 42, got %d", v)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one underlying fetch, got %d", got)
	}
}

func TestGetOrFetchCompletesInBackgroundAfterCallerCancels(t *testing.T) {
	c, err := New[string, int]("", func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fetchDone := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		time.Sleep(30 * time.Millisecond)
		close(fetchDone)
		return 7, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err = c.GetOrFetch(ctx, "k", fetch)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the cancelled caller to see DeadlineExceeded, got %v", err)
	}

	<-fetchDone
	time.Sleep(5 * time.Millisecond)

	v, ok := c.Get("k")
	if !ok || v != 7 {
		t.Fatalf("expected the background fetch to populate the cache despite caller cancellation, got %d ok=%v", v, ok)
	}
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c, err := New[string, int]("", func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	boom := errors.New("boom")
	_, err = c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatalf("a failed fetch must not populate the cache")
	}

	v, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 9, nil
	})
	if err != nil || v != 9 {
		t.Fatalf("expected a retry after a failed fetch to succeed, got %d, %v", v, err)
	}
}

type negatable struct {
	Value    int
	Negative bool
}

func (n negatable) CacheNegative() bool { return n.Negative }

func TestNegativeEntryExpiresAfterTTL(t *testing.T) {
	c, err := New[string, negatable]("", func(k string) string { return k },
		WithNegativeTTL[string, negatable](5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var calls int32
	fetch := func(ctx context.Context) (negatable, error) {
		atomic.AddInt32(&calls, 1)
		return negatable{Negative: true}, nil
	}

	if _, err := c.GetOrFetch(context.Background(), "k", fetch); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected fresh negative entry to be a hit")
	}

	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired negative entry to be a miss")
	}

	if _, err := c.GetOrFetch(context.Background(), "k", fetch); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected the negative entry to expire and re-fetch, got %d calls", got)
	}
}

func TestPersistenceSurvivesNewCache(t *testing.T) {
	dir := t.TempDir()

	c1, err := New[string, string](dir, func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c1.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "value", nil
	}); err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	c2, err := New[string, string](dir, func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, ok := c2.Get("k")
	if !ok || v != "value" {
		t.Fatalf("expected a fresh Cache instance to load the persisted entry from disk, got %q ok=%v", v, ok)
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := New[string, string](dir, func(k string) string { return k })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "value", nil
	}); err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}

	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected invalidated key to be a miss")
	}
}
