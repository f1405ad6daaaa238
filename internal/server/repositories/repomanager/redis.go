package repomanager

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
)

const defaultRedisPrefix = "resumegate"

type RedisRepositoryManager struct {
	client   redis.UniversalClient
	attempts *attempts.RedisRepository
	versions *versions.RedisRepository
	users    *users.RedisRepository
}

// NewRedisRepositoryManager namespaces every key under prefix. The manager
// owns client and closes it.
func NewRedisRepositoryManager(client redis.UniversalClient, prefix string) *RedisRepositoryManager {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepositoryManager{
		client:   client,
		attempts: attempts.NewRedisRepository(client, attempts.WithPrefix(prefix+":attempts")),
		versions: versions.NewRedisRepository(client, prefix+":metadata"),
		users:    users.NewRedisRepository(client, prefix+":users"),
	}
}

func (m *RedisRepositoryManager) Attempts() attempts.Repository { return m.attempts }
func (m *RedisRepositoryManager) Versions() versions.Repository { return m.versions }
func (m *RedisRepositoryManager) Users() users.Repository       { return m.users }

// RunMigrations only checks connectivity; Redis has no schema.
func (m *RedisRepositoryManager) RunMigrations(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (m *RedisRepositoryManager) Close() error { return m.client.Close() }
