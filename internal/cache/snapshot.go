// Package cache keeps read-only balance snapshots in redis. Entries are derived data:
// every write to a loan drops the loan's snapshots, and a miss falls back to the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/credit-engine/internal/domain"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

// SnapshotCache stores balance snapshots per loan and as-of date.
type SnapshotCache interface {
	Get(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.BalanceSnapshot, bool, error)
	Set(ctx context.Context, snapshot *domain.BalanceSnapshot) error
	InvalidateLoan(ctx context.Context, loanID uuid.UUID) error
	Ping(ctx context.Context) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) snapshotKey(loanID uuid.UUID, asOf time.Time) string {
	return fmt.Sprintf("%s:snapshot:%s:%s", c.prefix, loanID, asOf.UTC().Format(time.DateOnly))
}

func (c *RedisCache) indexKey(loanID uuid.UUID) string {
	return fmt.Sprintf("%s:snapshot-index:%s", c.prefix, loanID)
}

func (c *RedisCache) Get(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.BalanceSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.snapshotKey(loanID, asOf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var snapshot domain.BalanceSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, customError.WrapCacheError(err)
	}
	return &snapshot, true, nil
}

func (c *RedisCache) Set(ctx context.Context, snapshot *domain.BalanceSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return customError.WrapCacheError(err)
	}

	key := c.snapshotKey(snapshot.LoanID, snapshot.AsOf)
	index := c.indexKey(snapshot.LoanID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, c.ttl)
		pipe.SAdd(ctx, index, key)
		pipe.Expire(ctx, index, c.ttl)
		return nil
	})
	if err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// InvalidateLoan drops every snapshot recorded for the loan.
func (c *RedisCache) InvalidateLoan(ctx context.Context, loanID uuid.UUID) error {
	index := c.indexKey(loanID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Del(ctx, append(keys, index)...).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Nop is used when redis is disabled: every lookup misses.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID, time.Time) (*domain.BalanceSnapshot, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, *domain.BalanceSnapshot) error { return nil }

func (Nop) InvalidateLoan(context.Context, uuid.UUID) error { return nil }

func (Nop) Ping(context.Context) error { return nil }
