package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/lock"
)

type projectFixture struct {
	svc      *ProjectService
	files    *FileService
	projects *MockProjectRepository
	fileRepo *MockFileRepository
	messages *MockMessageRepository
	backend  *MockBackend
	users    *MockUserRepository
}

func newProjectFixture() *projectFixture {
	projects := NewMockProjectRepository()
	files := NewMockFileRepository()
	messages := NewMockMessageRepository()
	users := NewMockUserRepository()
	backend := NewMockBackend()
	locker := lock.NewNoOpLocker()
	logger := zerolog.Nop()

	return &projectFixture{
		svc:      NewProjectService(projects, files, users, backend, locker, logger),
		files:    NewFileService(files, projects, messages, backend, 1<<20, logger),
		projects: projects,
		fileRepo: files,
		messages: messages,
		backend:  backend,
		users:    users,
	}
}

func (f *projectFixture) addUser(t *testing.T, username string, canUpload bool) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Email: username + "@example.com", CanUpload: canUpload}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestProjectService_Create(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)
	plain := f.addUser(t, "bob", false)

	tests := []struct {
		name    string
		actor   *domain.User
		input   CreateProjectInput
		wantErr error
	}{
		{"success", owner, CreateProjectInput{Name: "demo"}, nil},
		{"no upload right", plain, CreateProjectInput{Name: "demo"}, domain.ErrUploadNotAllowed},
		{"nil actor", nil, CreateProjectInput{Name: "demo"}, domain.ErrUploadNotAllowed},
		{"empty name", owner, CreateProjectInput{Name: "  "}, domain.ErrProjectNameRequired},
		{"name too long", owner, CreateProjectInput{Name: strings.Repeat("x", 101)}, domain.ErrProjectNameRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project, err := f.svc.Create(ctx, tt.actor, tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if project.OwnerID != tt.actor.ID {
				t.Errorf("expected owner %d, got %d", tt.actor.ID, project.OwnerID)
			}
			if project.Tags == nil {
				t.Error("tags should default to an empty slice")
			}
		})
	}
}

func TestProjectService_Visibility(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	owner := f.addUser(t, "alice", true)
	outsider := f.addUser(t, "bob", false)

	private, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "private"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	public, err := f.svc.Create(ctx, owner, CreateProjectInput{Name: "public", IsPublic: true})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Invisible projects read as missing, not forbidden.
	if _, err := f.svc.Get(ctx, outsider, private.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := f.svc.Get(ctx, outsider, public.ID); err != nil {
		t.Errorf("public project should be viewable, got %v", err)
	}

	// Listing covers owned and collaborating projects only; public ones
	// are reachable by ID but never listed.
	list, err := f.svc.List(ctx, outsider, listOpts())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("outsider should list no projects, got %d", len(list.Items))
	}

	list, err = f.svc.List(ctx, owner, listOpts())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list.Items) != 2 {
		t.Errorf("owner should list both projects, got %d", len(list.Items))
	}
}

// The collaborative walkthrough: a read-tier collaborator cannot
// upload, gets promoted to write, uploads, and still cannot delete the
// project.
func TestProjectService_CollaborationFlow(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	alice := f.addUser(t, "alice", true)
	bob := f.addUser(t, "bob", false)

	project, err := f.svc.Create(ctx, alice, CreateProjectInput{Name: "shared"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{UserID: bob.ID, Permission: domain.PermissionRead}); err != nil {
		t.Fatalf("add collaborator failed: %v", err)
	}

	// Bob can now see the project.
	if _, err := f.svc.Get(ctx, bob, project.ID); err != nil {
		t.Fatalf("collaborator should view the project: %v", err)
	}

	// Read tier cannot upload.
	upload := UploadInput{Name: "notes.txt", MimeType: "text/plain", Size: 5, Reader: strings.NewReader("hello")}
	if _, err := f.files.Upload(ctx, bob, project.ID, upload); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("read tier upload should be denied, got %v", err)
	}

	// Promote to write; re-adding updates the tier in place.
	if err := f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{UserID: bob.ID, Permission: domain.PermissionWrite}); err != nil {
		t.Fatalf("promote failed: %v", err)
	}

	upload.Reader = strings.NewReader("hello")
	file, err := f.files.Upload(ctx, bob, project.ID, upload)
	if err != nil {
		t.Fatalf("write tier upload should succeed: %v", err)
	}
	if file.UploadedBy != bob.ID {
		t.Errorf("expected uploader %d, got %d", bob.ID, file.UploadedBy)
	}

	// The upload posted a system chat message.
	msgs, err := f.messages.ListByProject(ctx, project.ID, listOpts())
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if len(msgs.Items) != 1 || msgs.Items[0].Type != domain.MessageSystem {
		t.Errorf("expected one system message, got %d", len(msgs.Items))
	}

	// Write tier still cannot delete the project.
	if err := f.svc.Delete(ctx, bob, project.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("collaborator delete should be denied, got %v", err)
	}

	// Nor manage collaborators.
	if err := f.svc.AddCollaborator(ctx, bob, project.ID, AddCollaboratorInput{UserID: alice.ID, Permission: domain.PermissionRead}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Errorf("collaborator managing collaborators should be denied, got %v", err)
	}
}

func TestProjectService_Collaborators(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	alice := f.addUser(t, "alice", true)
	bob := f.addUser(t, "bob", false)

	project, err := f.svc.Create(ctx, alice, CreateProjectInput{Name: "shared"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The owner can never be a collaborator.
	err = f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{UserID: alice.ID, Permission: domain.PermissionRead})
	if !errors.Is(err, domain.ErrOwnerAsCollaborator) {
		t.Errorf("expected ErrOwnerAsCollaborator, got %v", err)
	}

	// Unknown tier is rejected.
	err = f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{UserID: bob.ID, Permission: "superuser"})
	if !errors.Is(err, domain.ErrInvalidPermission) {
		t.Errorf("expected ErrInvalidPermission, got %v", err)
	}

	// Inviting by email resolves the account first.
	err = f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{Email: "nobody@example.com", Permission: domain.PermissionRead})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	if err := f.svc.AddCollaborator(ctx, alice, project.ID, AddCollaboratorInput{Email: "bob@example.com", Permission: domain.PermissionRead}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := f.svc.UpdateCollaborator(ctx, alice, project.ID, bob.ID, domain.PermissionAdmin); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := f.svc.RemoveCollaborator(ctx, alice, project.ID, bob.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := f.svc.RemoveCollaborator(ctx, alice, project.ID, bob.ID); !errors.Is(err, domain.ErrCollaboratorNotFound) {
		t.Errorf("expected ErrCollaboratorNotFound, got %v", err)
	}
}

func TestProjectService_DeleteCascade(t *testing.T) {
	f := newProjectFixture()
	ctx := context.Background()
	alice := f.addUser(t, "alice", true)

	project, err := f.svc.Create(ctx, alice, CreateProjectInput{Name: "doomed"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	file, err := f.files.Upload(ctx, alice, project.ID, UploadInput{
		Name: "data.bin", MimeType: "application/octet-stream", Size: 4, Reader: strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if err := f.svc.Delete(ctx, alice, project.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := f.svc.Get(ctx, alice, project.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("deleted project should be gone, got %v", err)
	}

	// Stored bytes were cleaned up.
	exists, err := f.backend.Exists(ctx, file.StorageKey)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("stored bytes should be removed after cascade delete")
	}
}
