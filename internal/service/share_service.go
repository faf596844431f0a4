package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/lock"
	"github.com/prn-tf/teamdrop/internal/pkg/crypto"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/storage"
)

const shareLockTTL = 10 * time.Second

// ShareService handles the share-link lifecycle: creation, public
// access, password verification, downloads, and deactivation.
type ShareService struct {
	shareRepo   repository.ShareRepository
	projectRepo repository.ProjectRepository
	fileRepo    repository.FileRepository
	backend     storage.Backend
	locker      lock.Locker
	logger      zerolog.Logger
}

// NewShareService creates a new ShareService.
func NewShareService(shareRepo repository.ShareRepository, projectRepo repository.ProjectRepository, fileRepo repository.FileRepository, backend storage.Backend, locker lock.Locker, logger zerolog.Logger) *ShareService {
	return &ShareService{
		shareRepo:   shareRepo,
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		backend:     backend,
		locker:      locker,
		logger:      logger.With().Str("service", "share").Logger(),
	}
}

// CreateShareInput contains the optional constraints of a new share.
type CreateShareInput struct {
	Password     string
	ExpiresAt    *time.Time
	MaxDownloads *int64
}

// Create creates the share link for a project. Owner only; a project
// has at most one share, creating a second is rejected.
func (s *ShareService) Create(ctx context.Context, actor *domain.User, projectID int64, input CreateShareInput) (*domain.Share, error) {
	project, err := s.ownedProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := validateShareConstraints(input.ExpiresAt, input.MaxDownloads); err != nil {
		return nil, err
	}

	key := lock.Keys.ProjectShare(projectID)
	acquired, err := s.locker.AcquireWithRetry(ctx, key, shareLockTTL, lockRetries, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, domain.ErrShareAlreadyExists
	}
	defer s.locker.Release(ctx, key)

	token, err := crypto.GenerateShareToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate share token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	passwordHash := ""
	if input.Password != "" {
		passwordHash = crypto.HashSharePassword(input.Password)
	}

	share := domain.NewShare(project.ID, actor.ID, token, passwordHash, input.ExpiresAt, input.MaxDownloads)
	if err := s.shareRepo.Create(ctx, share); err != nil {
		if errors.Is(err, domain.ErrShareAlreadyExists) {
			return nil, domain.ErrShareAlreadyExists
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to create share")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("project_id", projectID).Int64("share_id", share.ID).Bool("password", share.HasPassword()).Msg("share created")
	return share, nil
}

// ShareView is the public face of a share. When the share is password
// protected and the password has not been verified, only the challenge
// is exposed and the file list stays empty.
type ShareView struct {
	Token            string        `json:"token"`
	ProjectName      string        `json:"project_name"`
	RequiresPassword bool          `json:"requires_password"`
	Files            []domain.File `json:"files,omitempty"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
}

// Fetch resolves a share token for an anonymous visitor.
// Invalid shares answer with ErrShareGone, unknown tokens with
// ErrShareNotFound; the two cases stay distinguishable.
func (s *ShareService) Fetch(ctx context.Context, token string) (*ShareView, error) {
	share, err := s.validShare(ctx, token)
	if err != nil {
		return nil, err
	}

	if share.HasPassword() {
		return &ShareView{Token: share.Token, RequiresPassword: true, ExpiresAt: share.ExpiresAt}, nil
	}
	return s.buildView(ctx, share)
}

// VerifyPassword checks a share password and, on success, returns the
// full view including the file list.
func (s *ShareService) VerifyPassword(ctx context.Context, token, password string) (*ShareView, error) {
	share, err := s.validShare(ctx, token)
	if err != nil {
		return nil, err
	}

	if share.HasPassword() {
		if password == "" {
			return nil, domain.ErrSharePasswordRequired
		}
		if !crypto.VerifySharePassword(share.PasswordHash, password) {
			return nil, domain.ErrInvalidSharePassword
		}
	}
	return s.buildView(ctx, share)
}

// Download serves one file through a share and consumes a download
// slot. The slot is taken atomically so two concurrent downloads can
// never both claim the last one. The caller must close the reader.
func (s *ShareService) Download(ctx context.Context, token string, fileID int64, password string) (*domain.File, io.ReadCloser, error) {
	share, err := s.validShare(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	if share.HasPassword() {
		if password == "" {
			return nil, nil, domain.ErrSharePasswordRequired
		}
		if !crypto.VerifySharePassword(share.PasswordHash, password) {
			return nil, nil, domain.ErrInvalidSharePassword
		}
	}

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, nil, domain.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if file.ProjectID != share.ProjectID {
		return nil, nil, domain.ErrFileNotFound
	}

	if err := s.shareRepo.ConsumeDownload(ctx, token, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrShareGone) || errors.Is(err, domain.ErrShareNotFound) {
			return nil, nil, err
		}
		s.logger.Error().Err(err).Str("token", token).Msg("failed to consume share download")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	reader, err := s.backend.Open(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to open shared file")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.fileRepo.IncrementDownloads(ctx, fileID); err != nil {
		s.logger.Warn().Err(err).Int64("file_id", fileID).Msg("failed to count shared download")
	}

	s.logger.Info().Str("token", token).Int64("file_id", fileID).Msg("share download served")
	return file, reader, nil
}

// UpdateShareInput contains the mutable constraints of a share.
// Nil pointers leave the field untouched. ClearPassword, ClearExpiry,
// and ClearLimit drop the matching constraint entirely: a share whose
// password is cleared becomes open.
type UpdateShareInput struct {
	Password      *string
	ClearPassword bool
	ExpiresAt     *time.Time
	ClearExpiry   bool
	MaxDownloads  *int64
	ClearLimit    bool
}

// Update edits a share's constraints. Only the creator may edit.
func (s *ShareService) Update(ctx context.Context, actor *domain.User, projectID int64, input UpdateShareInput) (*domain.Share, error) {
	share, err := s.creatorShare(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	if input.ClearPassword {
		share.PasswordHash = ""
	} else if input.Password != nil && *input.Password != "" {
		share.PasswordHash = crypto.HashSharePassword(*input.Password)
	}
	if input.ClearExpiry {
		share.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		share.ExpiresAt = input.ExpiresAt
	}
	if input.ClearLimit {
		share.MaxDownloads = nil
	} else if input.MaxDownloads != nil {
		share.MaxDownloads = input.MaxDownloads
	}

	if err := validateShareConstraints(share.ExpiresAt, share.MaxDownloads); err != nil {
		return nil, err
	}

	if err := s.shareRepo.Update(ctx, share); err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return nil, domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Int64("share_id", share.ID).Msg("failed to update share")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("share_id", share.ID).Int64("actor_id", actor.ID).Msg("share updated")
	return share, nil
}

// Deactivate turns a share off for good. Only the creator may do this;
// there is no reactivation.
func (s *ShareService) Deactivate(ctx context.Context, actor *domain.User, projectID int64) error {
	share, err := s.creatorShare(ctx, actor, projectID)
	if err != nil {
		return err
	}

	if err := s.shareRepo.Deactivate(ctx, share.ID); err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Int64("share_id", share.ID).Msg("failed to deactivate share")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("share_id", share.ID).Int64("actor_id", actor.ID).Msg("share deactivated")
	return nil
}

// ShareStats reports a share's constraints and usage to its creator.
type ShareStats struct {
	Share *domain.Share     `json:"share"`
	State domain.ShareState `json:"state"`
}

// Stats returns the current state and counters of a project's share.
// Owner only.
func (s *ShareService) Stats(ctx context.Context, actor *domain.User, projectID int64) (*ShareStats, error) {
	if _, err := s.ownedProject(ctx, actor, projectID); err != nil {
		return nil, err
	}

	share, err := s.shareRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return nil, domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to load share")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ShareStats{Share: share, State: share.State(time.Now().UTC())}, nil
}

// ListMine returns all shares the actor has created.
func (s *ShareService) ListMine(ctx context.Context, actor *domain.User) ([]*domain.Share, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	shares, err := s.shareRepo.ListByCreator(ctx, actor.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", actor.ID).Msg("failed to list shares")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return shares, nil
}

// validShare loads a share by token and rejects invalid ones.
// Unknown token and no-longer-valid share are distinct errors.
func (s *ShareService) validShare(ctx context.Context, token string) (*domain.Share, error) {
	if token == "" {
		return nil, domain.ErrShareNotFound
	}

	share, err := s.shareRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return nil, domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Msg("failed to load share by token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !share.IsValid(time.Now().UTC()) {
		return nil, domain.ErrShareGone
	}
	return share, nil
}

// buildView assembles the full public view with the file list.
func (s *ShareService) buildView(ctx context.Context, share *domain.Share) (*ShareView, error) {
	project, err := s.projectRepo.GetByID(ctx, share.ProjectID)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", share.ProjectID).Msg("failed to load shared project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	files, err := s.fileRepo.ListByProject(ctx, share.ProjectID, repository.ListOptions{Limit: 1000})
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", share.ProjectID).Msg("failed to list shared files")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	items := make([]domain.File, 0, len(files.Items))
	for _, f := range files.Items {
		items = append(items, *f)
	}

	return &ShareView{
		Token:       share.Token,
		ProjectName: project.Name,
		Files:       items,
		ExpiresAt:   share.ExpiresAt,
	}, nil
}

// ownedProject loads a project and requires the actor to own it.
func (s *ShareService) ownedProject(ctx context.Context, actor *domain.User, projectID int64) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrProjectNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to load project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !CanViewProject(actor, project) {
		return nil, domain.ErrProjectNotFound
	}
	if !CanManageShare(actor, project) {
		return nil, domain.ErrAccessDenied
	}
	return project, nil
}

// creatorShare loads the share of a project and requires the actor to
// be its creator.
func (s *ShareService) creatorShare(ctx context.Context, actor *domain.User, projectID int64) (*domain.Share, error) {
	if _, err := s.ownedProject(ctx, actor, projectID); err != nil {
		return nil, err
	}

	share, err := s.shareRepo.GetByProjectID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrShareNotFound) {
			return nil, domain.ErrShareNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to load share")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if share.CreatedBy != actor.ID {
		return nil, domain.ErrAccessDenied
	}
	return share, nil
}

// validateShareConstraints rejects impossible constraints.
func validateShareConstraints(expiresAt *time.Time, maxDownloads *int64) error {
	if expiresAt != nil && expiresAt.Before(time.Now().UTC()) {
		return domain.ErrShareExpiryInPast
	}
	if maxDownloads != nil && *maxDownloads < 1 {
		return domain.ErrShareDownloadLimit
	}
	return nil
}
