// Package documents implements the document domain: upload, metadata
// registration, and blob storage integration. Document rows carry the
// metadata; bytes live in blob storage under the row's storage key. The
// worker fetches both when a job starts.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a stored document with its metadata and blob
// storage reference.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new
// document. Data holds the raw file bytes. PageCount is optional and is
// extracted by the upload handler for PDF content; nil values are stored
// as NULL.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	PageCount   *int
}
