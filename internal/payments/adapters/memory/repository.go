package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/payments/ports"
)

type Repository struct {
	mu      sync.RWMutex
	intents map[string]domain.IntentRecord
}

func NewRepository() *Repository {
	return &Repository{intents: make(map[string]domain.IntentRecord)}
}

func (r *Repository) Create(_ context.Context, record domain.IntentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.intents[record.IntentID]; taken {
		return ports.ErrDuplicateIntent
	}
	record.Notes = maps.Clone(record.Notes)
	r.intents[record.IntentID] = record
	return nil
}

func (r *Repository) GetByIntentID(_ context.Context, intentID string) (*domain.IntentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.intents[intentID]
	if !ok {
		return nil, ports.ErrIntentNotFound
	}
	record.Notes = maps.Clone(record.Notes)
	return &record, nil
}

func (r *Repository) MarkCompleted(_ context.Context, intentID, paymentID, signature string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.intents[intentID]
	if !ok {
		return false, ports.ErrIntentNotFound
	}
	if record.Status != domain.IntentCreated {
		return false, nil
	}
	record.Status = domain.IntentCompleted
	record.PaymentID = paymentID
	record.Signature = signature
	record.UpdatedAt = at
	r.intents[intentID] = record
	return true, nil
}
