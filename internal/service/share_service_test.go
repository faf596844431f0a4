package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/lock"
)

type shareFixture struct {
	shares   *ShareService
	projects *ProjectService
	files    *FileService
	users    *MockUserRepository

	owner   *domain.User
	project *domain.Project
	file    *domain.File
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	ctx := context.Background()

	projectRepo := NewMockProjectRepository()
	fileRepo := NewMockFileRepository()
	shareRepo := NewMockShareRepository()
	messageRepo := NewMockMessageRepository()
	userRepo := NewMockUserRepository()
	backend := NewMockBackend()
	locker := lock.NewNoOpLocker()
	logger := zerolog.Nop()

	f := &shareFixture{
		shares:   NewShareService(shareRepo, projectRepo, fileRepo, backend, locker, logger),
		projects: NewProjectService(projectRepo, fileRepo, userRepo, backend, locker, logger),
		files:    NewFileService(fileRepo, projectRepo, messageRepo, backend, 1<<20, logger),
		users:    userRepo,
	}

	f.owner = &domain.User{Username: "alice", Email: "alice@example.com", CanUpload: true}
	if err := userRepo.Create(ctx, f.owner); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	project, err := f.projects.Create(ctx, f.owner, CreateProjectInput{Name: "shared"})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	f.project = project

	file, err := f.files.Upload(ctx, f.owner, project.ID, UploadInput{
		Name: "report.pdf", MimeType: "application/pdf", Size: 6, Reader: strings.NewReader("%PDF-1"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	f.file = file

	return f
}

func TestShareService_Create(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if share.Token == "" {
		t.Error("expected a generated token")
	}
	if !share.IsActive {
		t.Error("new share should be active")
	}
	if share.HasPassword() {
		t.Error("share without password should be open")
	}

	// One share per project.
	if _, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{}); !errors.Is(err, domain.ErrShareAlreadyExists) {
		t.Errorf("expected ErrShareAlreadyExists, got %v", err)
	}

	// Only the owner creates shares.
	stranger := &domain.User{Username: "bob", Email: "bob@example.com"}
	if err := f.users.Create(ctx, stranger); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if _, err := f.shares.Create(ctx, stranger, f.project.ID, CreateShareInput{}); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("stranger should not even see the project, got %v", err)
	}
}

func TestShareService_CreateValidation(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	if _, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{ExpiresAt: &past}); !errors.Is(err, domain.ErrShareExpiryInPast) {
		t.Errorf("expected ErrShareExpiryInPast, got %v", err)
	}

	var zero int64
	if _, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{MaxDownloads: &zero}); !errors.Is(err, domain.ErrShareDownloadLimit) {
		t.Errorf("expected ErrShareDownloadLimit, got %v", err)
	}
}

func TestShareService_FetchAndPassword(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{Password: "hunter2"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The challenge hides the file list.
	view, err := f.shares.Fetch(ctx, share.Token)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !view.RequiresPassword {
		t.Error("expected a password challenge")
	}
	if len(view.Files) != 0 {
		t.Error("challenge must not expose the file list")
	}

	if _, err := f.shares.VerifyPassword(ctx, share.Token, "wrong"); !errors.Is(err, domain.ErrInvalidSharePassword) {
		t.Errorf("expected ErrInvalidSharePassword, got %v", err)
	}
	if _, err := f.shares.VerifyPassword(ctx, share.Token, ""); !errors.Is(err, domain.ErrSharePasswordRequired) {
		t.Errorf("expected ErrSharePasswordRequired, got %v", err)
	}

	verified, err := f.shares.VerifyPassword(ctx, share.Token, "hunter2")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if len(verified.Files) != 1 {
		t.Errorf("expected one file in the verified view, got %d", len(verified.Files))
	}
	if verified.ProjectName != f.project.Name {
		t.Errorf("expected project name %q, got %q", f.project.Name, verified.ProjectName)
	}

	if _, err := f.shares.Fetch(ctx, "no-such-token"); !errors.Is(err, domain.ErrShareNotFound) {
		t.Errorf("expected ErrShareNotFound, got %v", err)
	}
}

func TestShareService_DownloadLimit(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	limit := int64(2)
	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{MaxDownloads: &limit})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The download that reaches the cap is still served.
	for i := 0; i < 2; i++ {
		file, reader, err := f.shares.Download(ctx, share.Token, f.file.ID, "")
		if err != nil {
			t.Fatalf("download %d failed: %v", i+1, err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if int64(len(data)) != file.Size {
			t.Errorf("expected %d bytes, got %d", file.Size, len(data))
		}
	}

	// The next attempt is refused, distinguishably from a missing share.
	if _, _, err := f.shares.Download(ctx, share.Token, f.file.ID, ""); !errors.Is(err, domain.ErrShareGone) {
		t.Errorf("expected ErrShareGone, got %v", err)
	}
	if _, err := f.shares.Fetch(ctx, share.Token); !errors.Is(err, domain.ErrShareGone) {
		t.Errorf("exhausted share should fetch as gone, got %v", err)
	}
}

func TestShareService_DownloadCrossProject(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A file from another project is not reachable through this share.
	other, err := f.projects.Create(ctx, f.owner, CreateProjectInput{Name: "other"})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	foreign, err := f.files.Upload(ctx, f.owner, other.ID, UploadInput{
		Name: "secret.txt", MimeType: "text/plain", Size: 3, Reader: strings.NewReader("shh"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if _, _, err := f.shares.Download(ctx, share.Token, foreign.ID, ""); !errors.Is(err, domain.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound for cross-project download, got %v", err)
	}

	// A failed attempt consumes no download slot.
	stats, err := f.shares.Stats(ctx, f.owner, f.project.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Share.CurrentDownloads != 0 {
		t.Errorf("expected 0 downloads consumed, got %d", stats.Share.CurrentDownloads)
	}
}

func TestShareService_UpdateClearsConstraints(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	expiry := time.Now().UTC().Add(time.Hour)
	limit := int64(5)
	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{
		Password:     "hunter2",
		ExpiresAt:    &expiry,
		MaxDownloads: &limit,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := f.shares.Update(ctx, f.owner, f.project.ID, UpdateShareInput{
		ClearPassword: true,
		ClearExpiry:   true,
		ClearLimit:    true,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.HasPassword() {
		t.Error("cleared password should make the share open")
	}
	if updated.ExpiresAt != nil || updated.MaxDownloads != nil {
		t.Error("cleared constraints should be gone")
	}

	// Open share now skips the challenge.
	view, err := f.shares.Fetch(ctx, share.Token)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if view.RequiresPassword {
		t.Error("open share should not challenge")
	}
}

func TestShareService_Deactivate(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.shares.Deactivate(ctx, f.owner, f.project.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if _, err := f.shares.Fetch(ctx, share.Token); !errors.Is(err, domain.ErrShareGone) {
		t.Errorf("deactivated share should be gone, got %v", err)
	}
	if _, _, err := f.shares.Download(ctx, share.Token, f.file.ID, ""); !errors.Is(err, domain.ErrShareGone) {
		t.Errorf("deactivated share should not serve downloads, got %v", err)
	}

	stats, err := f.shares.Stats(ctx, f.owner, f.project.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.State != domain.StateDeactivated {
		t.Errorf("expected state %s, got %s", domain.StateDeactivated, stats.State)
	}
}

func TestShareService_ExpiredShare(t *testing.T) {
	f := newShareFixture(t)
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	share, err := f.shares.Create(ctx, f.owner, f.project.ID, CreateShareInput{ExpiresAt: &future})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Rewind the expiry; validity is recomputed lazily on access.
	past := time.Now().UTC().Add(-time.Minute)
	share.ExpiresAt = &past

	if _, err := f.shares.Fetch(ctx, share.Token); !errors.Is(err, domain.ErrShareGone) {
		t.Errorf("expired share should be gone, got %v", err)
	}
}
