package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/lanecalc/pkg/redis"
)

type fakeStore struct {
	values     map[string]string
	setNXError error
	lastTTL    time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setNXError != nil {
		return false, f.setNXError
	}
	f.lastTTL = ttl
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.lastTTL = ttl
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "lc:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestClaimFirstTime(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	resp, replay, err := manager.Claim(context.Background(), "apply_payment", "key-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if replay || resp != "" {
		t.Fatalf("expected fresh claim, got replay=%v resp=%q", replay, resp)
	}
	if _, ok := store.values["lc:idempotency:req:apply_payment:key-1"]; !ok {
		t.Fatalf("expected key to be stored, got %v", store.values)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestClaimInFlightThenReplay(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()

	if _, _, err := manager.Claim(ctx, "apply_payment", "key-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, _, err := manager.Claim(ctx, "apply_payment", "key-1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	if err := manager.Complete(ctx, "apply_payment", "key-1", `{"ok":true}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	resp, replay, err := manager.Claim(ctx, "apply_payment", "key-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !replay || resp != `{"ok":true}` {
		t.Fatalf("expected replay of stored response, got replay=%v resp=%q", replay, resp)
	}
}

func TestReleaseAllowsRetry(t *testing.T) {
	store := newFakeStore()
	manager, _ := NewManager(store, time.Hour)
	ctx := context.Background()

	if _, _, err := manager.Claim(ctx, "apply_payment", "key-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := manager.Release(ctx, "apply_payment", "key-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, replay, err := manager.Claim(ctx, "apply_payment", "key-1"); err != nil || replay {
		t.Fatalf("expected fresh claim after release, replay=%v err=%v", replay, err)
	}
}

func TestClaimErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("boom")
	manager, _ := NewManager(store, time.Hour)

	if _, _, err := manager.Claim(context.Background(), "apply_payment", "key-1"); err == nil {
		t.Fatal("expected store error")
	}
	if _, _, err := manager.Claim(context.Background(), "apply_payment", " "); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected store required error")
	}
}
