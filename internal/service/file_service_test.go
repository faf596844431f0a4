package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prn-tf/teamdrop/internal/domain"
)

func TestFileService_UploadValidation(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)

	project, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "demo"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tests := []struct {
		name    string
		input   UploadInput
		wantErr error
	}{
		{
			name:    "empty name",
			input:   UploadInput{Name: " ", MimeType: "text/plain", Size: 3, Reader: strings.NewReader("abc")},
			wantErr: domain.ErrFileNameRequired,
		},
		{
			name:    "empty file",
			input:   UploadInput{Name: "a.txt", MimeType: "text/plain", Size: 0, Reader: strings.NewReader("")},
			wantErr: domain.ErrEmptyFile,
		},
		{
			name:    "too large",
			input:   UploadInput{Name: "big.bin", MimeType: "application/octet-stream", Size: 2 << 20, Reader: strings.NewReader("x")},
			wantErr: domain.ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.files.Upload(ctx, owner, project.ID, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFileService_DownloadCountsAndStreams(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)

	project, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "demo"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	uploaded, err := f.files.Upload(ctx, owner, project.ID, UploadInput{
		Name: "notes.txt", MimeType: "text/plain", Size: 5, Reader: strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	file, reader, err := f.files.Download(ctx, owner, uploaded.ID)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", string(data))
	}
	if file.Downloads != 1 {
		t.Errorf("expected download count 1, got %d", file.Downloads)
	}
}

func TestFileService_PublicFileOverride(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)
	outsider := f.addUser(t, "bob", false)

	project, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "private"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	file, err := f.files.Upload(ctx, owner, project.ID, UploadInput{
		Name: "readme.md", MimeType: "text/markdown", Size: 2, Reader: strings.NewReader("hi"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	// Private project, private file: invisible to outsiders.
	if _, err := f.files.Get(ctx, outsider, file.ID); !errors.Is(err, domain.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	// Making the file public opens it to any authenticated user even
	// though the project stays private.
	public := true
	if _, err := f.files.UpdateMetadata(ctx, owner, file.ID, UpdateFileInput{IsPublic: &public}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := f.files.Get(ctx, outsider, file.ID); err != nil {
		t.Errorf("public file should be readable, got %v", err)
	}
	if _, _, err := f.files.Download(ctx, outsider, file.ID); err != nil {
		t.Errorf("public file should be downloadable, got %v", err)
	}

	// Anonymous access is still refused.
	if _, err := f.files.Get(ctx, nil, file.ID); !errors.Is(err, domain.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound for anonymous access, got %v", err)
	}
}

func TestFileService_EditAndDeleteGates(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)
	writer := f.addUser(t, "bob", false)

	project, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "demo"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := f.svc.AddCollaborator(ctx, owner, project.ID, AddCollaboratorInput{UserID: writer.ID, Permission: domain.PermissionWrite}); err != nil {
		t.Fatalf("add collaborator failed: %v", err)
	}

	file, err := f.files.Upload(ctx, owner, project.ID, UploadInput{
		Name: "draft.txt", MimeType: "text/plain", Size: 4, Reader: strings.NewReader("text"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	// Write tier edits metadata but cannot delete someone else's file.
	name := "final.txt"
	updated, err := f.files.UpdateMetadata(ctx, writer, file.ID, UpdateFileInput{Name: &name})
	if err != nil {
		t.Fatalf("write tier edit failed: %v", err)
	}
	if updated.Name != name {
		t.Errorf("expected name %q, got %q", name, updated.Name)
	}

	if err := f.files.Delete(ctx, writer, file.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("write tier delete should be denied, got %v", err)
	}

	// The owner deletes; the stored bytes go with the record.
	if err := f.files.Delete(ctx, owner, file.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	exists, err := f.backend.Exists(ctx, file.StorageKey)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("stored bytes should be removed with the file")
	}
	if _, err := f.files.Get(ctx, owner, file.ID); !errors.Is(err, domain.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestFileService_UploaderKeepsRights(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)
	uploader := f.addUser(t, "bob", false)

	project, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "demo"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := f.svc.AddCollaborator(ctx, owner, project.ID, AddCollaboratorInput{UserID: uploader.ID, Permission: domain.PermissionWrite}); err != nil {
		t.Fatalf("add collaborator failed: %v", err)
	}

	file, err := f.files.Upload(ctx, uploader, project.ID, UploadInput{
		Name: "mine.txt", MimeType: "text/plain", Size: 4, Reader: strings.NewReader("mine"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	// Demoted to read tier, the uploader still controls their own file.
	if err := f.svc.UpdateCollaborator(ctx, owner, project.ID, uploader.ID, domain.PermissionRead); err != nil {
		t.Fatalf("demote failed: %v", err)
	}

	name := "renamed.txt"
	if _, err := f.files.UpdateMetadata(ctx, uploader, file.ID, UpdateFileInput{Name: &name}); err != nil {
		t.Errorf("uploader edit failed: %v", err)
	}
	if err := f.files.Delete(ctx, uploader, file.ID); err != nil {
		t.Errorf("uploader delete failed: %v", err)
	}
}
