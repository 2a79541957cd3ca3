// Package idempotency deduplicates Pub/Sub deliveries per consumer.
//
// A delivery first claims the event with a short-lived "processing" marker.
// On success the marker becomes "done" and lives for the configured TTL; on
// failure it is removed so a redelivery can retry. A delivery that finds a
// live "processing" marker gets ErrInFlight and should be nacked rather than
// acked, since the first attempt may still fail.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	stateProcessing = "processing"
	stateDone       = "done"

	// DefaultClaimTTL bounds how long a crashed handler can block redelivery.
	DefaultClaimTTL = 5 * time.Minute
)

// ErrInFlight reports that another delivery of the same event holds the claim.
var ErrInFlight = errors.New("event is being processed by another delivery")

// Store is the Redis surface the manager needs; *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store    Store
	ttl      time.Duration
	claimTTL time.Duration
}

// NewManager keeps "done" markers for ttl. Zero means they never expire.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claimTTL := DefaultClaimTTL
	if ttl > 0 {
		claimTTL = min(claimTTL, ttl)
	}
	return &Manager{store: store, ttl: ttl, claimTTL: claimTTL}, nil
}

// Process runs fn at most once per consumer and event. skipped is true when
// the event already completed; ErrInFlight is returned while another delivery
// holds the claim.
func (m *Manager) Process(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := m.store.SetNX(ctx, key, stateProcessing, m.claimTTL)
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		return m.classifyExisting(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, key); delErr != nil {
			return false, errors.Join(err, fmt.Errorf("release idempotency claim: %w", delErr))
		}
		return false, err
	}

	if err := m.store.Set(ctx, key, stateDone, m.ttl); err != nil {
		return false, fmt.Errorf("idempotency commit: %w", err)
	}
	return false, nil
}

func (m *Manager) classifyExisting(ctx context.Context, key string) (bool, error) {
	state, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// the claim expired between SETNX and GET; let the redelivery retry
		return false, ErrInFlight
	case err != nil:
		return false, fmt.Errorf("idempotency lookup: %w", err)
	case state == stateDone:
		return true, nil
	default:
		return false, ErrInFlight
	}
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
