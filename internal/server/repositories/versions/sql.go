package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

// SQLRepository keeps each list in a row of the metadata table.
type SQLRepository struct {
	db      *sql.DB
	dialect dbx.Dialect
	now     func() time.Time
}

func NewSQLRepository(db *sql.DB, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLRepository) Load(ctx context.Context, key string) ([]models.VersionEntry, error) {
	var value string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT value FROM metadata WHERE key = ?`), key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.VersionEntry{}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return decode(value)
}

func (r *SQLRepository) Update(ctx context.Context, key string, fn MutateFunc) ([]models.VersionEntry, error) {
	return dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) ([]models.VersionEntry, error) {
		_, err := tx.ExecContext(ctx, r.dialect.Rebind(
			`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (key) DO NOTHING`), key, "[]", r.now().UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		var value string
		err = tx.QueryRowContext(ctx, r.dialect.Rebind(
			`SELECT value FROM metadata WHERE key = ?`+r.dialect.LockClause()), key).Scan(&value)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		cur, err := decode(value)
		if err != nil {
			return nil, err
		}

		next, err := fn(cur)
		if err != nil {
			return nil, err
		}

		encoded, err := encode(next)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, r.dialect.Rebind(
			`UPDATE metadata SET value = ?, updated_at = ? WHERE key = ?`),
			encoded, r.now().UnixMilli(), key)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		return next, nil
	})
}
