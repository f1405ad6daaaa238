// Package repomanager vends the repository set for the configured store
// backend. Business code only sees RepositoryManager.
package repomanager

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
)

type RepositoryManager interface {
	Attempts() attempts.Repository
	Versions() versions.Repository
	Users() users.Repository
	// RunMigrations prepares the backend schema; a no-op where there is none.
	RunMigrations(ctx context.Context) error
	Close() error
}

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Options selects and configures the backend.
type Options struct {
	Backend string
	DSN     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTimeout  time.Duration

	// Pool caches SQL handles; dbx.DefaultPool() when nil.
	Pool *dbx.Pool
}

// New opens the backend named by opts.Backend.
func New(ctx context.Context, opts Options) (RepositoryManager, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryRepositoryManager(), nil

	case BackendRedis:
		timeout := opts.RedisTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		client := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			Password:     opts.RedisPassword,
			DB:           opts.RedisDB,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis error: %w", err)
		}
		return NewRedisRepositoryManager(client, opts.RedisPrefix), nil
	}

	dialect, ok := dbx.ParseDialect(opts.Backend)
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("store backend %s: empty dsn", opts.Backend)
	}

	pool := opts.Pool
	if pool == nil {
		pool = dbx.DefaultPool()
	}
	db, err := pool.Open(ctx, dialect, opts.DSN)
	if err != nil {
		return nil, err
	}
	return NewSQLRepositoryManager(db, dialect), nil
}
