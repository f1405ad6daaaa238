package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
)

func TestNew_Memory(t *testing.T) {
	m, err := New(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.IsType(t, &MemoryRepositoryManager{}, m)
	assert.NotNil(t, m.Attempts())
	assert.NotNil(t, m.Versions())
	assert.NotNil(t, m.Users())
	assert.NoError(t, m.RunMigrations(context.Background()))
}

func TestNew_SQLiteRunsMigrations(t *testing.T) {
	pool := dbx.NewPool()
	t.Cleanup(func() { _ = pool.Close() })
	ctx := context.Background()

	m, err := New(ctx, Options{Backend: BackendSQLite, DSN: "file:repomanager_new?mode=memory&cache=shared", Pool: pool})
	require.NoError(t, err)
	require.IsType(t, &SQLRepositoryManager{}, m)
	require.NoError(t, m.RunMigrations(ctx))

	_, err = attempts.Reset(ctx, m.Attempts(), "1.1.1.1")
	require.NoError(t, err)
	rec, err := m.Attempts().Get(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.Zero(t, rec.Attempts)

	_, err = m.Users().GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	m, err := New(ctx, Options{Backend: BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "rg"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.RunMigrations(ctx))

	_, err = attempts.Reset(ctx, m.Attempts(), "2.2.2.2")
	require.NoError(t, err)
	assert.True(t, mr.Exists("rg:attempts:2.2.2.2"))
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Options{Backend: BackendRedis, RedisAddr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis error")
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "cassandra"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Backend: BackendPostgres})
	assert.Error(t, err, "empty dsn")
}

func TestSQLRunMigrations_UsesDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := runMigrations
	t.Cleanup(func() { runMigrations = orig })

	var got dbx.Dialect
	runMigrations = func(_ context.Context, _ *sql.DB, d dbx.Dialect) error {
		got = d
		return errors.New("boom")
	}

	m := NewSQLRepositoryManager(db, dbx.Postgres)
	err = m.RunMigrations(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, dbx.Postgres, got)

	var _ RepositoryManager = m
	var _ RepositoryManager = &RedisRepositoryManager{}
	var _ RepositoryManager = NewMemoryRepositoryManager()
}
