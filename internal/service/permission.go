package service

import (
	"github.com/prn-tf/teamdrop/internal/domain"
)

// Permission checks are pure functions over the actor, the project, and
// the action. Each check is a disjunction: any satisfied clause grants
// the action. Ownership always wins; collaborator tiers only add rights
// for non-owners, and the global admin flag never grants rights inside
// a project except for chat moderation.

// CanViewProject reports whether the actor may read the project, its
// file listing, and its chat.
func CanViewProject(actor *domain.User, project *domain.Project) bool {
	if actor == nil {
		return false
	}
	if project.IsPublic {
		return true
	}
	if project.IsOwner(actor.ID) {
		return true
	}
	_, ok := project.CollaboratorPermission(actor.ID)
	return ok
}

// CanCreateProject reports whether the actor may create new projects.
func CanCreateProject(actor *domain.User) bool {
	return actor != nil && (actor.CanUpload || actor.IsAdmin)
}

// CanUpdateProject reports whether the actor may change the project's
// name, description, tags, or visibility. Only the write tier grants
// this to collaborators.
func CanUpdateProject(actor *domain.User, project *domain.Project) bool {
	if actor == nil {
		return false
	}
	if project.IsOwner(actor.ID) {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && perm == domain.PermissionWrite
}

// CanDeleteProject reports whether the actor may delete the project.
// Owner-exclusive; no collaborator tier grants this.
func CanDeleteProject(actor *domain.User, project *domain.Project) bool {
	return actor != nil && project.IsOwner(actor.ID)
}

// CanManageCollaborators reports whether the actor may add, change, or
// remove collaborators. Owner-exclusive.
func CanManageCollaborators(actor *domain.User, project *domain.Project) bool {
	return actor != nil && project.IsOwner(actor.ID)
}

// CanUploadFile reports whether the actor may upload files into the
// project. Independent of the global can_upload flag, which only gates
// creating new projects.
func CanUploadFile(actor *domain.User, project *domain.Project) bool {
	if actor == nil {
		return false
	}
	if project.IsOwner(actor.ID) {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && (perm == domain.PermissionWrite || perm == domain.PermissionAdmin)
}

// CanDeleteFile reports whether the actor may delete the given file.
func CanDeleteFile(actor *domain.User, project *domain.Project, file *domain.File) bool {
	if actor == nil {
		return false
	}
	if project.IsOwner(actor.ID) {
		return true
	}
	if file.UploadedBy == actor.ID {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && perm == domain.PermissionAdmin
}

// CanEditFile reports whether the actor may edit the file's metadata.
func CanEditFile(actor *domain.User, project *domain.Project, file *domain.File) bool {
	if actor == nil {
		return false
	}
	if project.IsOwner(actor.ID) {
		return true
	}
	if file.UploadedBy == actor.ID {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && (perm == domain.PermissionWrite || perm == domain.PermissionAdmin)
}

// CanManageShare reports whether the actor may create a share for the
// project. Owner-exclusive; edits and deactivation are restricted
// further to the share's creator by the share service.
func CanManageShare(actor *domain.User, project *domain.Project) bool {
	return actor != nil && project.IsOwner(actor.ID)
}

// CanEditMessage reports whether the actor may edit a chat message.
func CanEditMessage(actor *domain.User, project *domain.Project, message *domain.Message) bool {
	if actor == nil {
		return false
	}
	if message.SenderID == actor.ID {
		return true
	}
	if actor.IsAdmin {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && (perm == domain.PermissionWrite || perm == domain.PermissionAdmin)
}

// CanDeleteMessage reports whether the actor may delete a chat message.
func CanDeleteMessage(actor *domain.User, project *domain.Project, message *domain.Message) bool {
	if actor == nil {
		return false
	}
	if message.SenderID == actor.ID {
		return true
	}
	if actor.IsAdmin {
		return true
	}
	perm, ok := project.CollaboratorPermission(actor.ID)
	return ok && perm == domain.PermissionAdmin
}
