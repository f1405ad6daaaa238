package versions

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const (
	defaultRedisPrefix = "resumegate:metadata"
	defaultMaxRetries  = 16
)

// RedisRepository stores each list as a JSON string value.
type RedisRepository struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix, maxRetries: defaultMaxRetries}
}

func (r *RedisRepository) key(k string) string { return r.prefix + ":" + k }

func (r *RedisRepository) Load(ctx context.Context, key string) ([]models.VersionEntry, error) {
	s, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.VersionEntry{}, nil
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decode(s)
}

func (r *RedisRepository) Update(ctx context.Context, key string, fn MutateFunc) ([]models.VersionEntry, error) {
	rk := r.key(key)
	var out []models.VersionEntry

	txf := func(tx *redis.Tx) error {
		s, err := tx.Get(ctx, rk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis error: %w", err)
		}

		cur, err := decode(s)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		encoded, err := encode(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, rk)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("redis error: update %s: too many concurrent writers", key)
}
