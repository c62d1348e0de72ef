package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// DefaultScope namespaces event ids in the idempotency keyspace.
const DefaultScope = "stripe-webhook"

const (
	defaultLease = 5 * time.Minute

	markerProcessing = "processing"
	markerDone       = "done"
)

// ClaimState is the result of claiming an event id.
type ClaimState int

const (
	// ClaimAcquired means the caller owns the event and must Complete or Release it.
	ClaimAcquired ClaimState = iota
	// ClaimDone means the event was already handled.
	ClaimDone
	// ClaimInFlight means another delivery holds the lease.
	ClaimInFlight
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimDone:
		return "done"
	case ClaimInFlight:
		return "in_flight"
	}
	return "unknown"
}

// IdempotencyGuard tracks gateway event ids. A claim holds a short lease while
// the event is processed; Complete replaces it with a long-lived done marker.
// A crashed handler loses its lease and the next redelivery is processed.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
	scope string
}

type GuardOption func(*IdempotencyGuard)

// WithLease overrides how long an in-flight claim blocks redeliveries.
func WithLease(lease time.Duration) GuardOption {
	return func(g *IdempotencyGuard) {
		if lease > 0 {
			g.lease = lease
		}
	}
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string, opts ...GuardOption) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		scope = DefaultScope
	}
	g := &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		lease: defaultLease,
		scope: scope,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Claim tries to take the processing lease for eventID.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (ClaimState, error) {
	key, err := g.key(eventID)
	if err != nil {
		return ClaimInFlight, err
	}
	// Two attempts cover a lease that expires between SetNX and Get.
	for attempt := 0; attempt < 2; attempt++ {
		acquired, err := g.store.SetNX(ctx, key, markerProcessing, g.lease)
		if err != nil {
			return ClaimInFlight, fmt.Errorf("claim event: %w", err)
		}
		if acquired {
			return ClaimAcquired, nil
		}
		marker, err := g.store.Get(ctx, key)
		switch {
		case redis.IsNil(err):
			continue
		case err != nil:
			return ClaimInFlight, fmt.Errorf("read event marker: %w", err)
		case marker == markerDone:
			return ClaimDone, nil
		default:
			return ClaimInFlight, nil
		}
	}
	return ClaimInFlight, nil
}

// Complete marks eventID as handled for the guard ttl.
func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, markerDone, g.ttl); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}

// Release drops the lease so a failed delivery can be retried at once.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
