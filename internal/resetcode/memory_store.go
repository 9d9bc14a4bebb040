package resetcode

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store for tests and single-instance setups
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = memoryEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[email]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.codes, email)
		return ErrCodeInvalid
	}
	if entry.code != code {
		return ErrCodeInvalid
	}
	delete(s.codes, email)
	return nil
}
