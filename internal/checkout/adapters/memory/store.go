package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/checkout/domain"
)

type Store struct {
	mu      sync.Mutex
	records map[string]domain.Reconciliation
}

func NewStore() *Store {
	return &Store{records: make(map[string]domain.Reconciliation)}
}

func (s *Store) Create(_ context.Context, r domain.Reconciliation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if !existing.IsResolved() && existing.IntentID == r.IntentID && existing.Reason == r.Reason {
			return false, nil
		}
	}
	r.Details = maps.Clone(r.Details)
	s.records[r.ID] = r
	return true, nil
}

func (s *Store) ListUnresolved(_ context.Context, limit int) ([]domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Reconciliation, 0, len(s.records))
	for _, r := range s.records {
		if !r.IsResolved() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Resolve(_ context.Context, id, resolution string, at time.Time) (*domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, domain.ErrReconciliationNotFound
	}
	if r.IsResolved() {
		return nil, domain.ErrAlreadyResolved
	}
	r.ResolvedAt = &at
	r.Resolution = resolution
	s.records[id] = r
	return &r, nil
}
