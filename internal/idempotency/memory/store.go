package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/idempotency"
)

type entry struct {
	response idempotency.StoredResponse
	savedAt  time.Time
}

// Store retains idempotency responses for replaying duplicate requests.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a new in-memory idempotency store. A non-positive ttl
// keeps entries forever.
func NewStore(ttl time.Duration) *Store {
	return &Store{items: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the stored response for a given key if present and not expired.
func (s *Store) Get(_ context.Context, key string) (*idempotency.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	if !ok || s.expired(value) {
		return nil, nil
	}
	resp := value.response
	resp.Body = append([]byte(nil), value.response.Body...)
	return &resp, nil
}

// Reserve claims the key unless a live reservation or response holds it.
func (s *Store) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && !s.expired(existing) {
		return false, nil
	}
	s.items[key] = entry{savedAt: s.now()}
	return true, nil
}

// Save stores the response unless a live completed one already exists.
func (s *Store) Save(_ context.Context, key string, response idempotency.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && !existing.response.InFlight() && !s.expired(existing) {
		return nil
	}
	response.Body = append([]byte(nil), response.Body...)
	s.items[key] = entry{response: response, savedAt: s.now()}
	return nil
}

// Release drops a reservation. Completed responses are kept.
func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[key]; ok && existing.response.InFlight() {
		delete(s.items, key)
	}
	return nil
}

func (s *Store) expired(e entry) bool {
	age := s.now().Sub(e.savedAt)
	if e.response.InFlight() {
		return age > idempotency.ReservationTTL
	}
	return s.ttl > 0 && age > s.ttl
}
