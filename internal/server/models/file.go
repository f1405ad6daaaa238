package models

import (
	"io"
	"time"
)

// StoredObject describes a file held by a storage backend.
type StoredObject struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedTime time.Time
}

// ObjectStream is an open download. The caller must close Body.
type ObjectStream struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}
