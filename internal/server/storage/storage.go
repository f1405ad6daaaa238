// Package storage holds the file-storage backends behind FileStore.
// Handles returned by Upload are opaque to callers.
package storage

import (
	"context"
	"io"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

type UploadInput struct {
	Name        string
	ContentType string
	Body        io.Reader
	// Size is the body length, or -1 when unknown.
	Size int64
}

type FileStore interface {
	Upload(ctx context.Context, in UploadInput) (*models.StoredObject, error)
	// List returns every stored object, newest first.
	List(ctx context.Context) ([]*models.StoredObject, error)
	// Download opens the object. The caller closes the stream body.
	Download(ctx context.Context, id string) (*models.ObjectStream, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, id string) error
}
