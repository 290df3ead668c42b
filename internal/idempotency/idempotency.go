// Package idempotency stores the first response produced for an
// Idempotency-Key and replays it for later requests carrying the same key.
package idempotency

import (
	"context"
	"time"
)

// HeaderKey is the request header clients use to name a retryable request.
const HeaderKey = "Idempotency-Key"

// ReplayedHeader is set on responses served from the store.
const ReplayedHeader = "Idempotent-Replayed"

// DefaultTTL is how long a stored response stays replayable.
const DefaultTTL = 24 * time.Hour

// ReservationTTL bounds how long a key stays claimed by a request that never
// completed, for example after a crash.
const ReservationTTL = time.Minute

// StoredResponse is a recorded response body and status.
type StoredResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       []byte `json:"body"`
	ResourceID string `json:"resourceId,omitempty"`
}

// InFlight reports whether the entry is a reservation held by a request that
// has not finished yet.
func (r StoredResponse) InFlight() bool {
	return r.StatusCode == 0
}

// Store persists responses by key.
//
// Reserve claims an unknown or expired key and reports false when the key is
// already reserved or answered. Save replaces a reservation with the final
// response; a completed response is never overwritten. Release drops a
// reservation so the request may be retried. Get returns nil when the key is
// unknown or expired, and an in-flight entry while it is reserved.
type Store interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, response StoredResponse) error
	Release(ctx context.Context, key string) error
}
