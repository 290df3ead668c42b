// Package redis keeps idempotent responses in redis with a TTL so expiry
// needs no sweeper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dejobratic/storefront/internal/idempotency"
)

const (
	keyPrefix = "idempotency:"
	// pending marks a reserved key whose request has not finished yet.
	pending = "pending"
)

// saveScript replaces a reservation or empty key, never a completed response.
var saveScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// releaseScript deletes the key only while it still holds a reservation.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) (*idempotency.StoredResponse, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if string(data) == pending {
		return &idempotency.StoredResponse{}, nil
	}

	var resp idempotency.StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode idempotency key: %w", err)
	}
	return &resp, nil
}

// Reserve claims the key with SET NX; the reservation expires on its own if
// the request never finishes.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, idempotency.ReservationTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *Store) Save(ctx context.Context, key string, response idempotency.StoredResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotency key: %w", err)
	}
	err = saveScript.Run(ctx, s.client, []string{keyPrefix + key}, data, pending, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, pending).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Ping reports whether redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
