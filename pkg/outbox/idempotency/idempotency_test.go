package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	keys        map[string]string
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]string{}}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = value.(string)
	return true, nil
}

func (f *fakeStore) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	if f.keys[key] != owner {
		return false, nil
	}
	delete(f.keys, key)
	f.lastDeleted = key
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "furni:idempotency:" + scope + ":" + id
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", eventID)
	if err != nil || already {
		t.Fatalf("expected first call to be new, got already=%v err=%v", already, err)
	}
	expectedKey := "furni:idempotency:evt:processed:notification-worker:" + eventID.String()
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}

	already, err = manager.CheckAndMarkProcessed(context.Background(), "notification-worker", eventID)
	if err != nil || !already {
		t.Fatalf("expected duplicate, got already=%v err=%v", already, err)
	}
}

func TestCheckAndMarkProcessedValidation(t *testing.T) {
	manager, _ := NewManager(newFakeStore(), time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatalf("expected missing consumer to fail")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "worker", uuid.Nil); err == nil {
		t.Fatalf("expected nil event id to fail")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatalf("expected nil store to fail")
	}
}

func TestRunSkipsDuplicatesAndReleasesOnFailure(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("db down")
	}
	skipped, err := manager.Run(ctx, "worker", eventID, failing)
	if err == nil || skipped {
		t.Fatalf("expected failure without skip, got skipped=%v err=%v", skipped, err)
	}
	if store.lastDeleted == "" {
		t.Fatalf("expected marker to be released after failure")
	}

	ok := func(context.Context) error {
		calls++
		return nil
	}
	skipped, err = manager.Run(ctx, "worker", eventID, ok)
	if err != nil || skipped {
		t.Fatalf("expected retry to run, got skipped=%v err=%v", skipped, err)
	}
	skipped, err = manager.Run(ctx, "worker", eventID, ok)
	if err != nil || !skipped {
		t.Fatalf("expected duplicate to be skipped, got skipped=%v err=%v", skipped, err)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, got %d", calls)
	}
}

func TestRunPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("redis down")
	manager, _ := NewManager(store, time.Hour)

	_, err := manager.Run(context.Background(), "worker", uuid.New(), func(context.Context) error {
		t.Fatalf("handler must not run")
		return nil
	})
	if err == nil {
		t.Fatalf("expected store error")
	}
}

func TestReleaseIgnoresStaleToken(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()
	eventID := uuid.New()

	token, fresh, err := manager.Claim(ctx, "worker", eventID)
	if err != nil || !fresh || token == "" {
		t.Fatalf("expected fresh claim, got token=%q fresh=%v err=%v", token, fresh, err)
	}
	if err := manager.Release(ctx, "worker", eventID, "someone-else"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if already, _ := manager.CheckAndMarkProcessed(ctx, "worker", eventID); !already {
		t.Fatalf("stale token must not clear the marker")
	}
	if err := manager.Release(ctx, "worker", eventID, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if already, _ := manager.CheckAndMarkProcessed(ctx, "worker", eventID); already {
		t.Fatalf("owner release should clear the marker")
	}
}
