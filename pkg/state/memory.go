package state

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. Snapshots are lost on
// restart, which only costs clients their unsubmitted draft.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	closed  bool
	stop    chan struct{}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStore creates a store that sweeps expired entries every minute.
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(time.Minute, time.Now)
}

func newMemoryStore(sweep time.Duration, now func() time.Time) *MemoryStore {
	ms := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
		stop:    make(chan struct{}),
	}
	if sweep > 0 {
		go ms.sweepLoop(sweep)
	}
	return ms
}

// Get returns a copy of the value, or ErrKeyNotFound once it expired.
func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}
	e, ok := ms.entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if e.expired(ms.now()) {
		delete(ms.entries, key)
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(e.value), nil
}

// Set stores a copy of value. A ttl of zero or less never expires.
func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}
	e := memoryEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = ms.now().Add(ttl)
	}
	ms.entries[key] = e
	return nil
}

// Delete removes key; a missing key is not an error.
func (ms *MemoryStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}
	delete(ms.entries, key)
	return nil
}

// Ping reports ErrStoreClosed after Close.
func (ms *MemoryStore) Ping(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close stops the sweeper. Calling it twice is harmless.
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.closed {
		ms.closed = true
		close(ms.stop)
	}
	return nil
}

// Len returns the number of unexpired entries.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	n := 0
	for _, e := range ms.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (ms *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.sweep()
		case <-ms.stop:
			return
		}
	}
}

// sweep drops expired entries so abandoned sessions do not accumulate.
func (ms *MemoryStore) sweep() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for key, e := range ms.entries {
		if e.expired(now) {
			delete(ms.entries, key)
		}
	}
}
