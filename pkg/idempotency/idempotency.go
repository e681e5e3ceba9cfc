// Package idempotency guards side-effecting requests with client supplied keys.
// A key is claimed once; the response of the first request is stored so a
// retried request replays it instead of authorizing a tender twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/lanecalc/pkg/redis"
)

const pendingMarker = "pending"

// ErrInFlight means the key was claimed but the first request has not stored
// its response yet.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

// Manager tracks request keys per scope using Redis SETNX with a TTL.
// Keys follow the `lc:idempotency:req:<scope>:<key>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds an idempotency guard that remembers keys for ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Claim reserves key in scope. It returns the stored response and true when
// the key was already completed, ErrInFlight when it is still pending, and
// an empty response with false when the caller now owns the key.
func (m *Manager) Claim(ctx context.Context, scope, key string) (string, bool, error) {
	k, err := m.requestKey(scope, key)
	if err != nil {
		return "", false, err
	}
	set, err := m.store.SetNX(ctx, k, pendingMarker, m.ttl)
	if err != nil {
		return "", false, err
	}
	if set {
		return "", false, nil
	}
	stored, err := m.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, ErrInFlight
		}
		return "", false, err
	}
	if stored == pendingMarker {
		return "", false, ErrInFlight
	}
	return stored, true, nil
}

// Complete stores the response of the request that owns key.
func (m *Manager) Complete(ctx context.Context, scope, key, response string) error {
	k, err := m.requestKey(scope, key)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, k, response, m.ttl)
}

// Release forgets key so the request can be retried, used when the first
// attempt failed before any side effect.
func (m *Manager) Release(ctx context.Context, scope, key string) error {
	k, err := m.requestKey(scope, key)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, k)
}

func (m *Manager) requestKey(scope, key string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", errors.New("scope is required")
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("idempotency key is required")
	}
	return m.store.IdempotencyKey(fmt.Sprintf("req:%s", scope), key), nil
}
