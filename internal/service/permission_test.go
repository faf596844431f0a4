package service

import (
	"testing"

	"github.com/prn-tf/teamdrop/internal/domain"
)

// Test fixture: project 1 owned by user 1, with collaborators
// 2 (read), 3 (write), 4 (admin). User 5 is an outsider, user 6 is a
// global admin with no ties to the project.
func permissionFixture() (*domain.Project, map[string]*domain.User) {
	project := &domain.Project{
		ID:      1,
		Name:    "fixture",
		OwnerID: 1,
		Collaborators: []domain.Collaborator{
			{UserID: 2, Permission: domain.PermissionRead},
			{UserID: 3, Permission: domain.PermissionWrite},
			{UserID: 4, Permission: domain.PermissionAdmin},
		},
	}
	users := map[string]*domain.User{
		"owner":       {ID: 1, Username: "owner", CanUpload: true},
		"reader":      {ID: 2, Username: "reader"},
		"writer":      {ID: 3, Username: "writer"},
		"padmin":      {ID: 4, Username: "padmin"},
		"outsider":    {ID: 5, Username: "outsider"},
		"globaladmin": {ID: 6, Username: "globaladmin", IsAdmin: true, CanUpload: true},
	}
	return project, users
}

func TestCanViewProject(t *testing.T) {
	project, users := permissionFixture()

	tests := []struct {
		actor string
		want  bool
	}{
		{"owner", true},
		{"reader", true},
		{"writer", true},
		{"padmin", true},
		{"outsider", false},
		{"globaladmin", false},
	}

	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			if got := CanViewProject(users[tt.actor], project); got != tt.want {
				t.Errorf("CanViewProject(%s) = %v, want %v", tt.actor, got, tt.want)
			}
		})
	}

	if CanViewProject(nil, project) {
		t.Error("nil actor should not view a private project")
	}

	public := &domain.Project{ID: 2, OwnerID: 1, IsPublic: true}
	if !CanViewProject(users["outsider"], public) {
		t.Error("any authenticated user should view a public project")
	}
	if CanViewProject(nil, public) {
		t.Error("anonymous users should not view public projects directly")
	}
}

func TestCanCreateProject(t *testing.T) {
	tests := []struct {
		name  string
		actor *domain.User
		want  bool
	}{
		{"nil actor", nil, false},
		{"plain user", &domain.User{ID: 1}, false},
		{"can_upload", &domain.User{ID: 1, CanUpload: true}, true},
		{"global admin", &domain.User{ID: 1, IsAdmin: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanCreateProject(tt.actor); got != tt.want {
				t.Errorf("CanCreateProject = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanUpdateProject(t *testing.T) {
	project, users := permissionFixture()

	tests := []struct {
		actor string
		want  bool
	}{
		{"owner", true},
		{"reader", false},
		{"writer", true},
		{"padmin", false}, // admin tier moderates chat and deletes files, not metadata
		{"outsider", false},
		{"globaladmin", false},
	}

	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			if got := CanUpdateProject(users[tt.actor], project); got != tt.want {
				t.Errorf("CanUpdateProject(%s) = %v, want %v", tt.actor, got, tt.want)
			}
		})
	}
}

func TestOwnerExclusiveActions(t *testing.T) {
	project, users := permissionFixture()

	checks := map[string]func(*domain.User, *domain.Project) bool{
		"delete project":       CanDeleteProject,
		"manage collaborators": CanManageCollaborators,
		"manage share":         CanManageShare,
	}

	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			if !check(users["owner"], project) {
				t.Errorf("%s: owner should be allowed", name)
			}
			for _, actor := range []string{"reader", "writer", "padmin", "outsider", "globaladmin"} {
				if check(users[actor], project) {
					t.Errorf("%s: %s should be denied", name, actor)
				}
			}
			if check(nil, project) {
				t.Errorf("%s: nil actor should be denied", name)
			}
		})
	}
}

func TestCanUploadFile(t *testing.T) {
	project, users := permissionFixture()

	tests := []struct {
		actor string
		want  bool
	}{
		{"owner", true},
		{"reader", false},
		{"writer", true},
		{"padmin", true},
		{"outsider", false},
		{"globaladmin", false},
	}

	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			if got := CanUploadFile(users[tt.actor], project); got != tt.want {
				t.Errorf("CanUploadFile(%s) = %v, want %v", tt.actor, got, tt.want)
			}
		})
	}
}

func TestFilePermissions(t *testing.T) {
	project, users := permissionFixture()
	// Uploaded by the read-tier collaborator.
	file := &domain.File{ID: 1, ProjectID: 1, UploadedBy: 2}

	deleteTests := []struct {
		actor string
		want  bool
	}{
		{"owner", true},
		{"reader", true}, // uploader
		{"writer", false},
		{"padmin", true},
		{"outsider", false},
		{"globaladmin", false},
	}
	for _, tt := range deleteTests {
		t.Run("delete/"+tt.actor, func(t *testing.T) {
			if got := CanDeleteFile(users[tt.actor], project, file); got != tt.want {
				t.Errorf("CanDeleteFile(%s) = %v, want %v", tt.actor, got, tt.want)
			}
		})
	}

	editTests := []struct {
		actor string
		want  bool
	}{
		{"owner", true},
		{"reader", true}, // uploader
		{"writer", true},
		{"padmin", true},
		{"outsider", false},
		{"globaladmin", false},
	}
	for _, tt := range editTests {
		t.Run("edit/"+tt.actor, func(t *testing.T) {
			if got := CanEditFile(users[tt.actor], project, file); got != tt.want {
				t.Errorf("CanEditFile(%s) = %v, want %v", tt.actor, got, tt.want)
			}
		})
	}
}

func TestMessagePermissions(t *testing.T) {
	project, users := permissionFixture()
	// Sent by the read-tier collaborator.
	msg := &domain.Message{ID: 1, ProjectID: 1, SenderID: 2, Type: domain.MessageText}

	// The owner edits only their own messages unless they hold a tier or
	// the global admin flag; ownership grants no chat moderation.
	if CanEditMessage(users["owner"], project, msg) {
		t.Error("owner without a tier should not edit others' messages")
	}
	if !CanEditMessage(users["reader"], project, msg) {
		t.Error("sender should edit their own message")
	}
	if !CanEditMessage(users["writer"], project, msg) {
		t.Error("write tier should edit messages")
	}
	if !CanEditMessage(users["globaladmin"], project, msg) {
		t.Error("global admin should moderate chat")
	}
	if CanEditMessage(users["outsider"], project, msg) {
		t.Error("outsider should not edit messages")
	}

	if !CanDeleteMessage(users["reader"], project, msg) {
		t.Error("sender should delete their own message")
	}
	if CanDeleteMessage(users["writer"], project, msg) {
		t.Error("write tier should not delete others' messages")
	}
	if !CanDeleteMessage(users["padmin"], project, msg) {
		t.Error("admin tier should delete messages")
	}
	if !CanDeleteMessage(users["globaladmin"], project, msg) {
		t.Error("global admin should moderate chat")
	}
}

// Every mutating grant implies view: no permission check may pass for
// an actor who cannot see the project.
func TestMutationImpliesView(t *testing.T) {
	project, users := permissionFixture()
	file := &domain.File{ID: 1, ProjectID: 1, UploadedBy: 3}

	for name, actor := range users {
		if actor.IsAdmin {
			continue // chat moderation is the documented exception
		}
		canView := CanViewProject(actor, project)
		granted := CanUpdateProject(actor, project) ||
			CanDeleteProject(actor, project) ||
			CanManageCollaborators(actor, project) ||
			CanUploadFile(actor, project) ||
			CanDeleteFile(actor, project, file) ||
			CanEditFile(actor, project, file) ||
			CanManageShare(actor, project)
		if granted && !canView {
			t.Errorf("%s holds a mutating grant without view access", name)
		}
	}
}
