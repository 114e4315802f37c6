// Package idempotency replays the stored response of a write request when a
// client retries it with the same Idempotency-Key header.
package idempotency

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const DefaultTTL = 24 * time.Hour

// PendingTTL bounds how long a claim survives a request that never finishes.
const PendingTTL = 5 * time.Minute

// Entry is a captured response.
type Entry struct {
	Method     string      `json:"method"`
	Path       string      `json:"path"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
	// Pending marks a key claimed by a request that has not finished.
	Pending bool `json:"pending,omitempty"`
}

// Store persists entries. Get reports found=false for missing or expired keys.
// Reserve atomically claims an unused key and reports false when the key is
// already pending or completed. Release drops a pending claim and leaves a
// completed entry alone.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is used when no Redis URL is configured. Entries do not survive
// a restart and are not shared across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	cp := cloneEntry(e.entry)
	return &cp, true, nil
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && !now.After(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = memoryEntry{
		entry:     Entry{Pending: true, CreatedAt: now},
		expiresAt: now.Add(PendingTTL),
	}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.entry.Pending {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	cp := cloneEntry(*entry)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.entries[key] = memoryEntry{entry: cp, expiresAt: cp.CreatedAt.Add(s.ttl)}
	return nil
}

func cloneEntry(e Entry) Entry {
	if e.Headers != nil {
		e.Headers = e.Headers.Clone()
	}
	body := make([]byte, len(e.Body))
	copy(body, e.Body)
	e.Body = body
	return e
}
