package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"toko-orders/internal/apperrors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyOrderCreate is idem:order:create:{buyer_id}:{token}.
const KeyOrderCreate = "idem:order:create:%s:%s"

const (
	defaultClaimTTL     = 30 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	maxWatchAttempts    = 5
)

type redisRecord struct {
	Claim      string `json:"claim,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	RecordedAt int64  `json:"recorded_at,omitempty"`
}

type RedisOptions struct {
	Window       time.Duration
	Retention    time.Duration
	ClaimTTL     time.Duration
	PollInterval time.Duration
	Clock        Clock
}

// RedisCache shares idempotency records between service instances.
// Redis key expiry performs eviction; claims expire after ClaimTTL so a
// crashed owner cannot block a key forever.
type RedisCache struct {
	rdb          *redis.Client
	clock        Clock
	window       time.Duration
	retention    time.Duration
	claimTTL     time.Duration
	pollInterval time.Duration
}

func NewRedisCache(rdb *redis.Client, opts RedisOptions) (*RedisCache, error) {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Retention < opts.Window {
		return nil, fmt.Errorf("retention %s is shorter than window %s", opts.Retention, opts.Window)
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaultClaimTTL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &RedisCache{
		rdb:          rdb,
		clock:        opts.Clock,
		window:       opts.Window,
		retention:    opts.Retention,
		claimTTL:     opts.ClaimTTL,
		pollInterval: opts.PollInterval,
	}, nil
}

func redisKey(key Key) string {
	return fmt.Sprintf(KeyOrderCreate, key.BuyerID, key.Token)
}

func (c *RedisCache) Lookup(ctx context.Context, key Key) (string, bool, error) {
	if key.Empty() {
		return "", false, nil
	}
	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Transient("idempotency lookup", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return "", false, err
	}
	if rec.Pending || !c.suppressed(rec) {
		return "", false, nil
	}
	return rec.OrderID, true, nil
}

func (c *RedisCache) Record(ctx context.Context, key Key, orderID string) error {
	if key.Empty() {
		return nil
	}
	body, err := json.Marshal(redisRecord{OrderID: orderID, RecordedAt: c.clock.Now().UnixNano()})
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, redisKey(key), body, c.retention).Err(); err != nil {
		return apperrors.Transient("idempotency record", err)
	}
	return nil
}

func (c *RedisCache) Begin(ctx context.Context, key Key) (*Ticket, error) {
	if key.Empty() {
		return &Ticket{Key: key}, nil
	}
	k := redisKey(key)

	for {
		claim := uuid.NewString()
		pending, err := json.Marshal(redisRecord{Claim: claim, Pending: true})
		if err != nil {
			return nil, err
		}

		ok, err := c.rdb.SetNX(ctx, k, pending, c.claimTTL).Result()
		if err != nil {
			return nil, apperrors.Transient("idempotency begin", err)
		}
		if ok {
			return &Ticket{Key: key, claim: claim}, nil
		}

		raw, err := c.rdb.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, apperrors.Transient("idempotency begin", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}

		if rec.Pending {
			select {
			case <-time.After(c.pollInterval):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if c.suppressed(rec) {
			return &Ticket{Key: key, Duplicate: true, OrderID: rec.OrderID}, nil
		}

		// the record is past the window: take it over unless it changed meanwhile
		replaced, err := c.swap(ctx, k, raw, pending, c.claimTTL)
		if err != nil {
			return nil, err
		}
		if replaced {
			return &Ticket{Key: key, claim: claim}, nil
		}
	}
}

func (c *RedisCache) Complete(ctx context.Context, t *Ticket, orderID string) error {
	if t == nil || t.Duplicate || t.claim == "" {
		return nil
	}
	body, err := json.Marshal(redisRecord{OrderID: orderID, RecordedAt: c.clock.Now().UnixNano()})
	if err != nil {
		return err
	}
	return c.ifClaimed(ctx, redisKey(t.Key), t.claim, true, func(p redis.Pipeliner, k string) {
		p.Set(ctx, k, body, c.retention)
	})
}

func (c *RedisCache) Abort(ctx context.Context, t *Ticket) error {
	if t == nil || t.Duplicate || t.claim == "" {
		return nil
	}
	return c.ifClaimed(ctx, redisKey(t.Key), t.claim, false, func(p redis.Pipeliner, k string) {
		p.Del(ctx, k)
	})
}

// swap replaces the value of k with next only if it still equals prev.
func (c *RedisCache) swap(ctx context.Context, k string, prev, next []byte, ttl time.Duration) (bool, error) {
	replaced := false
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !bytes.Equal(cur, prev) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, next, ttl)
			return nil
		})
		if err == nil {
			replaced = true
		}
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Transient("idempotency claim", err)
	}
	return replaced, nil
}

// ifClaimed runs apply when k still holds claim. With orMissing it also runs
// when the claim expired and nobody else took the key.
func (c *RedisCache) ifClaimed(ctx context.Context, k, claim string, orMissing bool, apply func(redis.Pipeliner, string)) error {
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, k).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
				if !orMissing {
					return nil
				}
			case err != nil:
				return err
			default:
				rec, err := decodeRecord(raw)
				if err != nil {
					return err
				}
				if rec.Claim != claim {
					return nil
				}
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				apply(p, k)
				return nil
			})
			return err
		}, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return apperrors.Transient("idempotency update", err)
		}
		return nil
	}
	return apperrors.Transient("idempotency update", redis.TxFailedErr)
}

func (c *RedisCache) suppressed(rec redisRecord) bool {
	return c.clock.Now().Sub(time.Unix(0, rec.RecordedAt)) < c.window
}

func decodeRecord(raw []byte) (redisRecord, error) {
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return redisRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, nil
}
