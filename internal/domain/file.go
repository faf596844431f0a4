package domain

import (
	"time"
)

// File is an uploaded file's metadata. The bytes themselves live in a
// storage backend and are addressed by StorageKey.
type File struct {
	// ID is the unique identifier for the file (auto-generated).
	ID int64 `json:"id"`

	// ProjectID is the project the file belongs to. A file belongs to
	// exactly one project.
	ProjectID int64 `json:"project_id"`

	// Name is the original filename as uploaded.
	Name string `json:"name"`

	// MimeType is the declared content type of the upload.
	MimeType string `json:"mime_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// StorageKey is the opaque handle under which the bytes are stored
	// in the storage backend. Never exposed to clients.
	StorageKey string `json:"-"`

	// UploadedBy is the user who uploaded the file.
	UploadedBy int64 `json:"uploaded_by"`

	// UploaderName is denormalized for display.
	UploaderName string `json:"uploader_name,omitempty"`

	// Downloads counts authenticated downloads of this file.
	Downloads int64 `json:"downloads"`

	// IsPublic makes the file downloadable by any authenticated user,
	// overriding the project's visibility for this one file.
	IsPublic bool `json:"is_public"`

	// Tags are free-form labels attached to the file.
	Tags []string `json:"tags"`

	// UploadedAt is the timestamp when the file was uploaded.
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewFile creates file metadata for a fresh upload.
func NewFile(projectID int64, name, mimeType string, size int64, storageKey string, uploadedBy int64) *File {
	return &File{
		ProjectID:  projectID,
		Name:       name,
		MimeType:   mimeType,
		Size:       size,
		StorageKey: storageKey,
		UploadedBy: uploadedBy,
		Tags:       []string{},
		UploadedAt: time.Now().UTC(),
	}
}
