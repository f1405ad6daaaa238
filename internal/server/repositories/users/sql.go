package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/dbx"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const userColumns = `id, google_id, email, name, picture, refresh_token, drive_folder_id, created_at, updated_at`

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	now     func() time.Time
	newID   func() string
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now, newID: uuid.NewString}
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *SQLRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.getBy(ctx, "google_id", googleID)
}

func (r *SQLRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()

	query :=
		`INSERT INTO users (` + userColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (google_id) DO UPDATE SET
		   email = excluded.email,
		   name = excluded.name,
		   picture = excluded.picture,
		   refresh_token = excluded.refresh_token,
		   updated_at = excluded.updated_at
		 RETURNING id, drive_folder_id, created_at`

	out := *user
	var createdAt int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		r.newID(), user.GoogleID, user.Email, user.Name, user.Picture, user.RefreshToken,
		user.DriveFolderID, now.UnixMilli(), now.UnixMilli(),
	).Scan(&out.ID, &out.DriveFolderID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	out.CreatedAt = time.UnixMilli(createdAt).UTC()
	out.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return &out, nil
}

func (r *SQLRepository) SetDriveFolder(ctx context.Context, id, folderID string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE users SET drive_folder_id = ?, updated_at = ? WHERE id = ?`),
		folderID, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u                    models.User
		createdAt, updatedAt int64
	)
	err := s.Scan(&u.ID, &u.GoogleID, &u.Email, &u.Name, &u.Picture, &u.RefreshToken,
		&u.DriveFolderID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &u, nil
}
