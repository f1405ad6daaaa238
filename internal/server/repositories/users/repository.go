// Package users persists accounts bound to an external identity.
package users

import (
	"context"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	// Upsert creates the user or refreshes the profile and refresh token of
	// the one already bound to user.GoogleID. The returned user carries the
	// stored ID, DriveFolderID and CreatedAt.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	SetDriveFolder(ctx context.Context, id, folderID string) error
}
