package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newFrozenLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	l := New(nil)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_DeniesAfterMaxWithinWindow(t *testing.T) {
	l, _ := newFrozenLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		if !l.Allow("ip:1.2.3.4", 5, time.Second) {
			t.Fatalf("call %d unexpectedly denied", i+1)
		}
	}
	if l.Allow("ip:1.2.3.4", 5, time.Second) {
		t.Fatal("sixth call within window should be denied")
	}
}

func TestAllow_ResetsAfterWindowElapses(t *testing.T) {
	l, now := newFrozenLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		l.Allow("k", 5, time.Second)
	}
	if l.Allow("k", 5, time.Second) {
		t.Fatal("expected denial at limit")
	}

	*now = now.Add(1100 * time.Millisecond)
	if !l.Allow("k", 5, time.Second) {
		t.Fatal("expected allow after window elapsed")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newFrozenLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		l.Allow("a", 5, time.Minute)
	}
	if l.Allow("a", 5, time.Minute) {
		t.Fatal("key a should be limited")
	}
	if !l.Allow("b", 5, time.Minute) {
		t.Fatal("key b should be unaffected")
	}
}

func TestAllow_ConcurrentAttemptsCountExactly(t *testing.T) {
	l := New(nil)

	const attempts = 100
	const max = 50

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared", max, time.Minute) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != max {
		t.Fatalf("allowed %d of %d concurrent attempts, want exactly %d", got, attempts, max)
	}
}

func TestMemoryStore_SweepDropsExpiredOnly(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(2000, 0)

	store.Set("expired", Entry{Count: 3, ResetAt: now.Add(-time.Second)})
	store.Set("live", Entry{Count: 1, ResetAt: now.Add(time.Minute)})

	store.Sweep(now)

	if _, ok := store.Get("expired"); ok {
		t.Fatal("expired entry should be swept")
	}
	if _, ok := store.Get("live"); !ok {
		t.Fatal("live entry should survive the sweep")
	}
}
