package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MarkerStore is the slice of the Redis client the manager needs.
type MarkerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Manager records which events a consumer has already handled. Markers
// live at furni:idempotency:evt:processed:<consumer>:<event_id> and hold
// the token of the delivery that claimed them.
type Manager struct {
	store MarkerStore
	ttl   time.Duration
}

func NewManager(store MarkerStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim sets the marker for (consumer, eventID) when absent. fresh is
// false when another delivery already holds it. The returned token
// identifies this claim for Release.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (token string, fresh bool, err error) {
	key, err := m.markerKey(consumer, eventID)
	if err != nil {
		return "", false, err
	}
	token = uuid.NewString()
	fresh, err = m.store.SetNX(ctx, key, token, m.ttl)
	if err != nil {
		return "", false, err
	}
	if !fresh {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the marker only while it still carries token, so a slow
// failing handler cannot clear a later delivery's claim.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID, token string) error {
	key, err := m.markerKey(consumer, eventID)
	if err != nil {
		return err
	}
	_, err = m.store.ReleaseIfOwner(ctx, key, token)
	return err
}

// CheckAndMarkProcessed reports whether the event was seen before and
// marks it otherwise.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	_, fresh, err := m.Claim(ctx, consumer, eventID)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Run executes fn at most once per (consumer, eventID) and reports
// skipped=true for duplicates. A failing fn releases its claim so the
// redelivery is handled.
func (m *Manager) Run(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	token, fresh, err := m.Claim(ctx, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("idempotency check: %w", err)
	}
	if !fresh {
		return true, nil
	}
	if err := fn(ctx); err != nil {
		if relErr := m.Release(context.WithoutCancel(ctx), consumer, eventID, token); relErr != nil {
			return false, errors.Join(err, fmt.Errorf("release idempotency marker: %w", relErr))
		}
		return false, err
	}
	return false, nil
}

func (m *Manager) markerKey(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
