package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry tracks attempts against a key within the current window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds limiter state. The default in-memory store is process-local,
// which is acceptable only for low-value endpoints like signup; a shared
// backend can implement this interface without changing Limiter call sites.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, entry Entry)
	// Increment records one attempt atomically, starting a fresh window
	// when none is active, and returns the resulting entry. Splitting this
	// into Get and Set would let concurrent attempts collapse into one.
	Increment(key string, now time.Time, window time.Duration) Entry
	Sweep(now time.Time)
}

// MemoryStore is a mutex-guarded map store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *MemoryStore) Set(key string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

func (s *MemoryStore) Increment(key string, now time.Time, window time.Duration) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || entry.ResetAt.Before(now) {
		entry = Entry{Count: 1, ResetAt: now.Add(window)}
	} else {
		entry.Count++
	}
	s.entries[key] = entry
	return entry
}

// Sweep drops entries whose window has expired, bounding memory.
func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if entry.ResetAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// Limiter is a sliding-window counter over an injected Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// New builds a Limiter. A nil store gets a fresh in-memory one.
func New(store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, now: time.Now}
}

// Allow reports whether the caller identified by key may proceed, admitting
// at most maxAttempts per window. The first call after a window expires
// starts a new one.
func (l *Limiter) Allow(key string, maxAttempts int, window time.Duration) bool {
	entry := l.store.Increment(key, l.now(), window)
	return entry.Count <= maxAttempts
}

// StartSweeper runs Store.Sweep on the given interval until ctx is done.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.store.Sweep(now)
			}
		}
	}()
}
