package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Pool caches one *sql.DB per DSN for the life of the process. Connections
// are opened lazily on first use and shared afterwards; *sql.DB itself is
// safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	conns map[string]*sql.DB

	// sqlOpen is a seam for tests.
	sqlOpen     func(driverName, dsn string) (*sql.DB, error)
	pingTimeout time.Duration
}

func NewPool() *Pool {
	return &Pool{
		conns:       make(map[string]*sql.DB),
		sqlOpen:     sql.Open,
		pingTimeout: 10 * time.Second,
	}
}

// Open returns the cached handle for dsn or opens, configures and pings a new one.
func (p *Pool) Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := string(d) + "|" + dsn
	if db, ok := p.conns[key]; ok {
		return db, nil
	}

	db, err := p.sqlOpen(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if d == SQLite {
		// single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}

	if d == SQLite {
		if _, err := db.ExecContext(pingCtx, "PRAGMA busy_timeout=10000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	p.conns[key] = db
	return db, nil
}

// Len reports how many handles are cached.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes every cached handle and empties the cache. The pool stays usable.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, db := range p.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	p.conns = make(map[string]*sql.DB)
	return errors.Join(errs...)
}

var (
	defaultPoolMu sync.Mutex
	defaultPool   *Pool
)

// DefaultPool returns the process-wide pool, creating it on first call.
func DefaultPool() *Pool {
	defaultPoolMu.Lock()
	defer defaultPoolMu.Unlock()
	if defaultPool == nil {
		defaultPool = NewPool()
	}
	return defaultPool
}

// ResetDefaultPool closes the process-wide pool and drops it, so the next
// DefaultPool call starts from scratch.
func ResetDefaultPool() error {
	defaultPoolMu.Lock()
	p := defaultPool
	defaultPool = nil
	defaultPoolMu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}
