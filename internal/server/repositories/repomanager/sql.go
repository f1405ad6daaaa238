package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/migrations"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/users"
	"github.com/dmitrijs2005/resumegate/internal/server/repositories/versions"
)

// runMigrations is a seam for tests.
var runMigrations = migrations.Up

// SQLRepositoryManager serves Postgres and SQLite. The *sql.DB belongs to
// the dbx.Pool it came from, so Close leaves it open.
type SQLRepositoryManager struct {
	db       *sql.DB
	dialect  dbx.Dialect
	attempts *attempts.SQLRepository
	versions *versions.SQLRepository
	users    *users.SQLRepository
}

func NewSQLRepositoryManager(db *sql.DB, dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{
		db:       db,
		dialect:  dialect,
		attempts: attempts.NewSQLRepository(db, dialect),
		versions: versions.NewSQLRepository(db, dialect),
		users:    users.NewSQLRepository(db, dialect),
	}
}

func (m *SQLRepositoryManager) Attempts() attempts.Repository { return m.attempts }
func (m *SQLRepositoryManager) Versions() versions.Repository { return m.versions }
func (m *SQLRepositoryManager) Users() users.Repository       { return m.users }

// RunMigrations applies the embedded goose migrations for the dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	return runMigrations(ctx, m.db, m.dialect)
}

func (m *SQLRepositoryManager) Close() error { return nil }
