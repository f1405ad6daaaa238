package attempts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const selectColumns = `client_id, attempts, locked, lock_expiry, last_attempt`

// SQLRepository stores records in the login_attempts table. The same
// queries serve Postgres and SQLite; placeholders are rebound per dialect.
type SQLRepository struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewSQLRepository(db *sql.DB, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Get(ctx context.Context, clientID string) (*models.AttemptRecord, error) {
	rec, err := r.get(ctx, r.db, clientID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *SQLRepository) Update(ctx context.Context, clientID string, fn UpdateFunc) (*models.AttemptRecord, error) {
	out, err := dbx.InTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) (*models.AttemptRecord, error) {
		// Materialise the row first so the locking read below always has
		// something to lock, even for a client seen for the first time.
		res, err := tx.ExecContext(ctx, r.dialect.Rebind(
			`INSERT INTO login_attempts (client_id) VALUES (?)
			 ON CONFLICT (client_id) DO NOTHING`), clientID)
		if err != nil {
			return nil, err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}

		cur, err := r.get(ctx, tx, clientID, true)
		if err != nil {
			return nil, err
		}
		if inserted == 1 {
			cur = nil
		}

		next := fn(cur)
		next.ClientID = clientID

		_, err = tx.ExecContext(ctx, r.dialect.Rebind(
			`UPDATE login_attempts
			 SET attempts = ?, locked = ?, lock_expiry = ?, last_attempt = ?
			 WHERE client_id = ?`),
			next.Attempts, next.Locked, toMillis(next.LockExpiry), toMillis(next.LastAttempt), clientID)
		if err != nil {
			return nil, err
		}
		return &next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) ListLocked(ctx context.Context) ([]*models.AttemptRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+selectColumns+` FROM login_attempts
		 WHERE locked = ?
		 ORDER BY lock_expiry`), true)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.AttemptRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) Delete(ctx context.Context, clientID string) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM login_attempts WHERE client_id = ?`), clientID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`DELETE FROM login_attempts
		 WHERE locked = ? AND lock_expiry < ?`), true, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) get(ctx context.Context, db dbx.DBTX, clientID string, forUpdate bool) (*models.AttemptRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM login_attempts WHERE client_id = ?`
	if forUpdate {
		query += r.dialect.LockClause()
	}
	return scanRecord(db.QueryRowContext(ctx, r.dialect.Rebind(query), clientID))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.AttemptRecord, error) {
	var (
		rec         models.AttemptRecord
		lockExpiry  sql.NullInt64
		lastAttempt sql.NullInt64
	)
	if err := s.Scan(&rec.ClientID, &rec.Attempts, &rec.Locked, &lockExpiry, &lastAttempt); err != nil {
		return nil, err
	}
	if lockExpiry.Valid {
		rec.LockExpiry = fromMillis(&lockExpiry.Int64)
	}
	if lastAttempt.Valid {
		rec.LastAttempt = fromMillis(&lastAttempt.Int64)
	}
	return &rec, nil
}
