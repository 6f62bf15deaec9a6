package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency reservation states stored in Redis.
const idemPending = "pending"

// IIdempotencyStore tracks client-supplied idempotency keys for inquiry
// creation over at-least-once delivery channels. A re-delivered create
// with a known key returns the originally created inquiry instead of
// inserting again (and double-incrementing the property counter).
// Callers must scope keys to the requesting tenant before handing them
// to the store; the store treats keys as opaque.
type IIdempotencyStore interface {
	// Reserve claims key for this request. It returns (true, "", nil) if
	// the caller now owns the key, and (false, inquiryID, nil) if a prior
	// request already completed under it. A key still in flight yields a
	// conflict error.
	Reserve(ctx context.Context, key string) (owned bool, inquiryID string, err error)
	// Complete records the created inquiry id under the key.
	Complete(ctx context.Context, key, inquiryID string) error
	// Release drops a reservation after a failed create so a retry can
	// claim the key again.
	Release(ctx context.Context, key string)
}

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a Redis-backed idempotency store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) IIdempotencyStore {
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func idemKey(key string) string {
	return "idem:inquiry:create:" + key
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, string, error) {
	rkey := idemKey(key)
	ok, err := s.client.SetNX(ctx, rkey, idemPending, s.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if ok {
		return true, "", nil
	}

	val, err := s.client.Get(ctx, rkey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Reservation expired between SetNX and Get; treat as a
			// benign race and let the caller retry once.
			return false, "", E(KindConflict, "idempotency key %s expired mid-request", key)
		}
		return false, "", fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if val == idemPending {
		return false, "", E(KindConflict, "request with idempotency key %s is already in flight", key)
	}
	return false, val, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key, inquiryID string) error {
	if err := s.client.Set(ctx, idemKey(key), inquiryID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record idempotency result: %w", err)
	}
	return nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) {
	// Best effort; an orphaned pending entry expires with the TTL anyway.
	_ = s.client.Del(ctx, idemKey(key)).Err()
}
