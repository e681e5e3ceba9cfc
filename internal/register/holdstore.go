package register

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/redis"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// HoldStore parks on-hold snapshots until they are recalled.
type HoldStore interface {
	Put(ctx context.Context, t txn.Transaction) error
	Get(ctx context.Context, laneID string, id uuid.UUID) (txn.Transaction, error)
	Remove(ctx context.Context, laneID string, id uuid.UUID) error
	List(ctx context.Context, laneID string) ([]txn.Transaction, error)
}

type holdClient interface {
	Get(ctx context.Context, key string) (string, error)
	PutIndexed(ctx context.Context, key string, value any, index, member string, ttl time.Duration) error
	DeleteIndexed(ctx context.Context, key, index, member string) error
	Members(ctx context.Context, index string) ([]string, error)
	HoldKey(laneID, transactionID string) string
	HoldIndexKey(laneID string) string
}

// RedisHoldStore keeps held snapshots as JSON values with a TTL and indexes
// them per lane in a set.
type RedisHoldStore struct {
	client holdClient
	ttl    time.Duration
}

// NewRedisHoldStore builds a hold store. A non-positive ttl keeps holds until
// recalled.
func NewRedisHoldStore(client holdClient, ttl time.Duration) *RedisHoldStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisHoldStore{client: client, ttl: ttl}
}

func (s *RedisHoldStore) Put(ctx context.Context, t txn.Transaction) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode held transaction")
	}
	id := t.ID.String()
	err = s.client.PutIndexed(ctx, s.client.HoldKey(t.LaneID, id), string(payload), s.client.HoldIndexKey(t.LaneID), id, s.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store held transaction")
	}
	return nil
}

func (s *RedisHoldStore) Get(ctx context.Context, laneID string, id uuid.UUID) (txn.Transaction, error) {
	raw, err := s.client.Get(ctx, s.client.HoldKey(laneID, id.String()))
	if errors.Is(err, redis.Nil) {
		return txn.Transaction{}, pkgerrors.New(pkgerrors.CodeNotFound, "held transaction not found").WithDetails(map[string]any{
			"transaction_id": id.String(),
		})
	}
	if err != nil {
		return txn.Transaction{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load held transaction")
	}
	var out txn.Transaction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return txn.Transaction{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode held transaction")
	}
	return out, nil
}

func (s *RedisHoldStore) Remove(ctx context.Context, laneID string, id uuid.UUID) error {
	err := s.client.DeleteIndexed(ctx, s.client.HoldKey(laneID, id.String()), s.client.HoldIndexKey(laneID), id.String())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete held transaction")
	}
	return nil
}

// List returns the lane's held snapshots, oldest first. Index entries whose
// snapshot expired are pruned.
func (s *RedisHoldStore) List(ctx context.Context, laneID string) ([]txn.Transaction, error) {
	members, err := s.client.Members(ctx, s.client.HoldIndexKey(laneID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list held transactions")
	}
	out := make([]txn.Transaction, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			_ = s.client.DeleteIndexed(ctx, "", s.client.HoldIndexKey(laneID), member)
			continue
		}
		t, err := s.Get(ctx, laneID, id)
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			_ = s.client.DeleteIndexed(ctx, "", s.client.HoldIndexKey(laneID), member)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
