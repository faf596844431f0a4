// Package storage defines interfaces for file storage backends.
// The storage layer persists raw file content; metadata lives in the database.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested content does not exist in the backend.
var ErrNotFound = errors.New("stored content not found")

// Backend defines the interface for file storage backends.
// Implementations include the local filesystem and S3-compatible stores.
type Backend interface {
	// Save stores content under the given key.
	Save(ctx context.Context, key string, reader io.Reader, size int64) error

	// Open returns a reader for the content stored under key.
	// Returns ErrNotFound if the content doesn't exist.
	// The caller must close the returned reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content stored under key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether content is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// NewKey generates a fresh storage key.
// Keys are sharded by their first two characters to keep directory
// listings small on filesystem backends, e.g. "3f/3fa85f64-...".
func NewKey() string {
	id := uuid.NewString()
	return id[:2] + "/" + id
}
