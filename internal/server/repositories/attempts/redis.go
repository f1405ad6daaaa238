package attempts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const (
	defaultRedisPrefix = "resumegate:attempts"
	defaultMaxRetries  = 16

	fieldAttempts    = "attempts"
	fieldLocked      = "locked"
	fieldLockExpiry  = "lockExpiry"
	fieldLastAttempt = "lastAttempt"
)

// RedisRepository keeps one hash per client plus a sorted set of locked
// client ids scored by lock expiry (ms), which backs ListLocked and sweeps.
type RedisRepository struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

type RedisOption func(*RedisRepository)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithMaxRetries bounds optimistic retries when a watched key changes
// between read and write.
func WithMaxRetries(n int) RedisOption {
	return func(r *RedisRepository) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

func NewRedisRepository(client redis.UniversalClient, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{client: client, prefix: defaultRedisPrefix, maxRetries: defaultMaxRetries}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RedisRepository) key(clientID string) string { return r.prefix + ":" + clientID }
func (r *RedisRepository) lockedKey() string          { return r.prefix + ":locked" }

func (r *RedisRepository) Get(ctx context.Context, clientID string) (*models.AttemptRecord, error) {
	rec, err := r.read(ctx, r.client, clientID)
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if rec == nil {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

func (r *RedisRepository) Update(ctx context.Context, clientID string, fn UpdateFunc) (*models.AttemptRecord, error) {
	key := r.key(clientID)
	var out models.AttemptRecord

	txf := func(tx *redis.Tx) error {
		cur, err := r.read(ctx, tx, clientID)
		if err != nil {
			return err
		}

		out = fn(cur)
		out.ClientID = clientID

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, encodeRecord(out))
			if out.Locked && out.LockExpiry != nil {
				pipe.ZAdd(ctx, r.lockedKey(), redis.Z{Score: float64(out.LockExpiry.UnixMilli()), Member: clientID})
			} else {
				pipe.ZRem(ctx, r.lockedKey(), clientID)
			}
			return nil
		})
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return &out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	return nil, fmt.Errorf("redis error: update %s: too many concurrent writers", clientID)
}

func (r *RedisRepository) ListLocked(ctx context.Context) ([]*models.AttemptRecord, error) {
	ids, err := r.client.ZRange(ctx, r.lockedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	out := make([]*models.AttemptRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.read(ctx, r.client, id)
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		if rec == nil || !rec.Locked {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisRepository) Delete(ctx context.Context, clientID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(clientID))
		pipe.ZRem(ctx, r.lockedKey(), clientID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// SweepExpired takes candidates from the locked index and deletes each one
// only if, under WATCH, it is still locked with an expiry before the cutoff.
// A record reset and retried since the index was read is left alone; only
// its stale index entry is pruned.
func (r *RedisRepository) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.lockedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	var n int64
	for _, id := range ids {
		swept, err := r.sweepOne(ctx, id, before)
		if err != nil {
			return n, fmt.Errorf("redis error: %w", err)
		}
		if swept {
			n++
		}
	}
	return n, nil
}

func (r *RedisRepository) sweepOne(ctx context.Context, clientID string, before time.Time) (bool, error) {
	key := r.key(clientID)
	var swept bool

	txf := func(tx *redis.Tx) error {
		swept = false
		rec, err := r.read(ctx, tx, clientID)
		if err != nil {
			return err
		}

		stale := rec == nil || !rec.Locked
		expired := !stale && rec.LockExpiry != nil && rec.LockExpiry.Before(before)
		if !stale && !expired {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if expired {
				pipe.Del(ctx, key)
			}
			pipe.ZRem(ctx, r.lockedKey(), clientID)
			return nil
		})
		swept = err == nil && expired
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return swept, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return false, err
		}
	}
	// still being written; the next sweep will see it again if it stays locked
	return false, nil
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (r *RedisRepository) read(ctx context.Context, c hashReader, clientID string) (*models.AttemptRecord, error) {
	m, err := c.HGetAll(ctx, r.key(clientID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return decodeRecord(clientID, m)
}

func encodeRecord(rec models.AttemptRecord) map[string]any {
	m := map[string]any{
		fieldAttempts: rec.Attempts,
		fieldLocked:   strconv.FormatBool(rec.Locked),
	}
	if ms := toMillis(rec.LockExpiry); ms != nil {
		m[fieldLockExpiry] = *ms
	}
	if ms := toMillis(rec.LastAttempt); ms != nil {
		m[fieldLastAttempt] = *ms
	}
	return m
}

func decodeRecord(clientID string, m map[string]string) (*models.AttemptRecord, error) {
	rec := &models.AttemptRecord{ClientID: clientID}

	var err error
	if v, ok := m[fieldAttempts]; ok {
		if rec.Attempts, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldAttempts, err)
		}
	}
	if v, ok := m[fieldLocked]; ok {
		if rec.Locked, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fieldLocked, err)
		}
	}
	if rec.LockExpiry, err = decodeMillis(m, fieldLockExpiry); err != nil {
		return nil, err
	}
	if rec.LastAttempt, err = decodeMillis(m, fieldLastAttempt); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeMillis(m map[string]string, field string) (*time.Time, error) {
	v, ok := m[field]
	if !ok || v == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return fromMillis(&ms), nil
}
