package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/lock"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/storage"
)

const (
	maxProjectNameLength        = 100
	maxProjectDescriptionLength = 500

	collaboratorLockTTL = 10 * time.Second
	deleteLockTTL       = 30 * time.Second
	lockRetries         = 5
	lockRetryDelay      = 100 * time.Millisecond
)

// ProjectService handles project CRUD and collaborator management.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	fileRepo    repository.FileRepository
	userRepo    repository.UserRepository
	backend     storage.Backend
	locker      lock.Locker
	logger      zerolog.Logger
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, fileRepo repository.FileRepository, userRepo repository.UserRepository, backend storage.Backend, locker lock.Locker, logger zerolog.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		userRepo:    userRepo,
		backend:     backend,
		locker:      locker,
		logger:      logger.With().Str("service", "project").Logger(),
	}
}

// CreateProjectInput contains the data needed to create a project.
type CreateProjectInput struct {
	Name        string
	Description string
	Tags        []string
	IsPublic    bool
}

// Create creates a new project owned by the actor.
// Requires the actor's global upload flag or global admin.
func (s *ProjectService) Create(ctx context.Context, actor *domain.User, input CreateProjectInput) (*domain.Project, error) {
	if !CanCreateProject(actor) {
		return nil, domain.ErrUploadNotAllowed
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrProjectNameRequired
	}
	if len(name) > maxProjectNameLength {
		return nil, domain.NewDomainError(domain.ErrProjectNameRequired, fmt.Sprintf("project name exceeds %d characters", maxProjectNameLength), "project")
	}
	if len(input.Description) > maxProjectDescriptionLength {
		return nil, domain.NewDomainError(domain.ErrProjectNameRequired, fmt.Sprintf("description exceeds %d characters", maxProjectDescriptionLength), "project")
	}

	project := domain.NewProject(name, input.Description, input.Tags, input.IsPublic, actor.ID)
	if err := s.projectRepo.Create(ctx, project); err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("failed to create project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	project.OwnerName = actor.Username

	s.logger.Info().Int64("project_id", project.ID).Int64("owner_id", actor.ID).Msg("project created")
	return project, nil
}

// Get retrieves a project the actor is allowed to view.
// Projects the actor cannot see are indistinguishable from missing ones.
func (s *ProjectService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanViewProject(actor, project) {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

// List returns the projects the actor owns or collaborates on.
func (s *ProjectService) List(ctx context.Context, actor *domain.User, opts repository.ListOptions) (*repository.ListResult[domain.Project], error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	opts = clampListOptions(opts)

	result, err := s.projectRepo.ListForUser(ctx, actor.ID, opts)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", actor.ID).Msg("failed to list projects")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return result, nil
}

// UpdateProjectInput contains the fields that can change on a project.
// Nil pointers leave the field untouched.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Tags        []string
	IsPublic    *bool
}

// Update updates a project's metadata.
// Allowed for the owner and write-tier collaborators.
func (s *ProjectService) Update(ctx context.Context, actor *domain.User, id int64, input UpdateProjectInput) (*domain.Project, error) {
	project, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanUpdateProject(actor, project) {
		return nil, domain.ErrAccessDenied
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.ErrProjectNameRequired
		}
		if len(name) > maxProjectNameLength {
			return nil, domain.NewDomainError(domain.ErrProjectNameRequired, fmt.Sprintf("project name exceeds %d characters", maxProjectNameLength), "project")
		}
		project.Name = name
	}
	if input.Description != nil {
		if len(*input.Description) > maxProjectDescriptionLength {
			return nil, domain.NewDomainError(domain.ErrProjectNameRequired, fmt.Sprintf("description exceeds %d characters", maxProjectDescriptionLength), "project")
		}
		project.Description = *input.Description
	}
	if input.Tags != nil {
		project.Tags = input.Tags
	}
	if input.IsPublic != nil {
		project.IsPublic = *input.IsPublic
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", id).Msg("failed to update project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("project_id", id).Int64("actor_id", actor.ID).Msg("project updated")
	return project, nil
}

// Delete removes a project and everything under it: files, collaborators,
// chat messages, and the share. Owner only. Stored bytes are cleaned up
// after the metadata transaction commits; cleanup failures are logged
// and do not undo the delete.
func (s *ProjectService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	project, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !CanDeleteProject(actor, project) {
		return domain.ErrAccessDenied
	}

	key := lock.Keys.ProjectDelete(id)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, deleteLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", id).Msg("failed to acquire delete lock")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return fmt.Errorf("%w: project %d is being deleted", ErrInternalError, id)
	}
	defer s.locker.Release(ctx, key)

	storageKeys, err := s.fileRepo.StorageKeysByProject(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", id).Msg("failed to collect storage keys")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", id).Msg("failed to delete project")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for _, storageKey := range storageKeys {
		if err := s.backend.Delete(ctx, storageKey); err != nil {
			s.logger.Warn().Err(err).Str("storage_key", storageKey).Int64("project_id", id).Msg("failed to delete stored file")
		}
	}

	s.logger.Info().Int64("project_id", id).Int64("actor_id", actor.ID).Int("files", len(storageKeys)).Msg("project deleted")
	return nil
}

// AddCollaboratorInput identifies the user and tier to attach. The
// user may be given by ID or, as invites usually are, by email.
type AddCollaboratorInput struct {
	UserID     int64
	Email      string
	Permission domain.Permission
}

// AddCollaborator attaches a user to a project. Owner only.
// Adding a user who is already a collaborator updates the tier in place.
func (s *ProjectService) AddCollaborator(ctx context.Context, actor *domain.User, projectID int64, input AddCollaboratorInput) error {
	project, err := s.Get(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if !CanManageCollaborators(actor, project) {
		return domain.ErrAccessDenied
	}
	if !input.Permission.Valid() {
		return domain.ErrInvalidPermission
	}

	if input.UserID == 0 {
		user, err := s.userRepo.GetByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrUserNotFound
			}
			s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to resolve collaborator email")
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		input.UserID = user.ID
	}

	if input.UserID == project.OwnerID {
		return domain.ErrOwnerAsCollaborator
	}

	key := lock.Keys.ProjectCollaborators(projectID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, collaboratorLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return fmt.Errorf("%w: collaborator list is busy", ErrInternalError)
	}
	defer s.locker.Release(ctx, key)

	err = s.projectRepo.AddCollaborator(ctx, projectID, input.UserID, input.Permission)
	if errors.Is(err, domain.ErrCollaboratorExists) {
		err = s.projectRepo.UpdateCollaborator(ctx, projectID, input.UserID, input.Permission)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrCollaboratorNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Int64("user_id", input.UserID).Msg("failed to add collaborator")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("project_id", projectID).Int64("user_id", input.UserID).Str("permission", string(input.Permission)).Msg("collaborator added")
	return nil
}

// UpdateCollaborator changes a collaborator's tier. Owner only.
func (s *ProjectService) UpdateCollaborator(ctx context.Context, actor *domain.User, projectID, userID int64, permission domain.Permission) error {
	project, err := s.Get(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if !CanManageCollaborators(actor, project) {
		return domain.ErrAccessDenied
	}
	if !permission.Valid() {
		return domain.ErrInvalidPermission
	}

	key := lock.Keys.ProjectCollaborators(projectID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, collaboratorLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return fmt.Errorf("%w: collaborator list is busy", ErrInternalError)
	}
	defer s.locker.Release(ctx, key)

	if err := s.projectRepo.UpdateCollaborator(ctx, projectID, userID, permission); err != nil {
		if errors.Is(err, domain.ErrCollaboratorNotFound) {
			return domain.ErrCollaboratorNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Int64("user_id", userID).Msg("failed to update collaborator")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("project_id", projectID).Int64("user_id", userID).Str("permission", string(permission)).Msg("collaborator updated")
	return nil
}

// RemoveCollaborator detaches a user from a project. Owner only.
func (s *ProjectService) RemoveCollaborator(ctx context.Context, actor *domain.User, projectID, userID int64) error {
	project, err := s.Get(ctx, actor, projectID)
	if err != nil {
		return err
	}
	if !CanManageCollaborators(actor, project) {
		return domain.ErrAccessDenied
	}

	key := lock.Keys.ProjectCollaborators(projectID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, collaboratorLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return fmt.Errorf("%w: collaborator list is busy", ErrInternalError)
	}
	defer s.locker.Release(ctx, key)

	if err := s.projectRepo.RemoveCollaborator(ctx, projectID, userID); err != nil {
		if errors.Is(err, domain.ErrCollaboratorNotFound) {
			return domain.ErrCollaboratorNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Int64("user_id", userID).Msg("failed to remove collaborator")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("project_id", projectID).Int64("user_id", userID).Msg("collaborator removed")
	return nil
}

// getProject loads a project without any visibility check.
func (s *ProjectService) getProject(ctx context.Context, id int64) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", id).Msg("failed to load project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return project, nil
}

// clampListOptions applies the default and maximum page sizes.
func clampListOptions(opts repository.ListOptions) repository.ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
