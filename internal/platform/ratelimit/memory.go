package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation useful for testing and
// local development.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
}

type memoryWindow struct {
	count int
	reset time.Time
}

// NewMemoryStore constructs an empty memory-backed rate limit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]memoryWindow)}
}

// Increment implements the Store interface.
func (s *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	now = now.UTC()
	if window <= 0 {
		window = DefaultWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(key)
	entry, ok := s.windows[id]
	if !ok || !now.Before(entry.reset) {
		s.windows[id] = memoryWindow{count: 1, reset: now.Add(window)}
		s.pruneExpiredLocked(now)
		return 1, nil
	}

	entry.count++
	s.windows[id] = entry
	return entry.count, nil
}

func (s *MemoryStore) pruneExpiredLocked(now time.Time) {
	for id, entry := range s.windows {
		if !now.Before(entry.reset) {
			delete(s.windows, id)
		}
	}
}
