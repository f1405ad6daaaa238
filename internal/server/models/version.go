package models

import "time"

// VersionEntry is one retained upload in a version list.
type VersionEntry struct {
	// ID is the opaque storage handle returned by the file store.
	ID string `json:"id"`
	// Name is the display filename offered on download.
	Name string `json:"name"`
	// CreatedTime is reported by the storage backend.
	CreatedTime time.Time `json:"createdTime"`
	// Date is when the upload was accepted.
	Date time.Time `json:"date"`

	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
