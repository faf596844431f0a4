package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
	"github.com/prn-tf/teamdrop/internal/storage"
)

const maxFileNameLength = 255

// FileService handles file uploads, downloads, and metadata.
type FileService struct {
	fileRepo    repository.FileRepository
	projectRepo repository.ProjectRepository
	messageRepo repository.MessageRepository
	backend     storage.Backend
	maxSize     int64
	logger      zerolog.Logger
}

// NewFileService creates a new FileService. maxSize of 0 disables the
// upload size limit.
func NewFileService(fileRepo repository.FileRepository, projectRepo repository.ProjectRepository, messageRepo repository.MessageRepository, backend storage.Backend, maxSize int64, logger zerolog.Logger) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		projectRepo: projectRepo,
		messageRepo: messageRepo,
		backend:     backend,
		maxSize:     maxSize,
		logger:      logger.With().Str("service", "file").Logger(),
	}
}

// UploadInput contains the data needed to upload a file.
type UploadInput struct {
	Name     string
	MimeType string
	Size     int64
	Tags     []string
	Reader   io.Reader
}

// Upload stores a file's bytes and records its metadata.
// Requires owner, write, or admin tier on the project. A system chat
// message announcing the upload is posted on success.
func (s *FileService) Upload(ctx context.Context, actor *domain.User, projectID int64, input UploadInput) (*domain.File, error) {
	project, err := s.visibleProject(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanUploadFile(actor, project) {
		return nil, domain.ErrAccessDenied
	}

	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > maxFileNameLength {
		return nil, domain.ErrFileNameRequired
	}
	if input.Size <= 0 {
		return nil, domain.ErrEmptyFile
	}
	if s.maxSize > 0 && input.Size > s.maxSize {
		return nil, domain.NewDomainError(domain.ErrFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize), "file")
	}

	storageKey := storage.NewKey()
	if err := s.backend.Save(ctx, storageKey, input.Reader, input.Size); err != nil {
		s.logger.Error().Err(err).Str("storage_key", storageKey).Msg("failed to store file")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	file := domain.NewFile(projectID, name, input.MimeType, input.Size, storageKey, actor.ID)
	if input.Tags != nil {
		file.Tags = input.Tags
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.backend.Delete(ctx, storageKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("storage_key", storageKey).Msg("failed to clean up orphaned upload")
		}
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to record file")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	file.UploaderName = actor.Username

	s.announceUpload(ctx, actor, file)

	s.logger.Info().Int64("file_id", file.ID).Int64("project_id", projectID).Int64("size", input.Size).Msg("file uploaded")
	return file, nil
}

// Get retrieves file metadata. View-gated through the project, unless
// the file itself is public.
func (s *FileService) Get(ctx context.Context, actor *domain.User, fileID int64) (*domain.File, error) {
	file, project, err := s.fileWithProject(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !s.canViewFile(actor, project, file) {
		return nil, domain.ErrFileNotFound
	}
	return file, nil
}

// List returns the files of a project the actor can view.
func (s *FileService) List(ctx context.Context, actor *domain.User, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.File], error) {
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	opts = clampListOptions(opts)

	result, err := s.fileRepo.ListByProject(ctx, projectID, opts)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to list files")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return result, nil
}

// Download opens a file's bytes for reading and counts the download.
// The caller must close the returned reader.
func (s *FileService) Download(ctx context.Context, actor *domain.User, fileID int64) (*domain.File, io.ReadCloser, error) {
	file, project, err := s.fileWithProject(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canViewFile(actor, project, file) {
		return nil, nil, domain.ErrFileNotFound
	}

	reader, err := s.backend.Open(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Int64("file_id", fileID).Str("storage_key", file.StorageKey).Msg("file metadata without stored bytes")
			return nil, nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to open stored file")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.fileRepo.IncrementDownloads(ctx, fileID); err != nil {
		s.logger.Warn().Err(err).Int64("file_id", fileID).Msg("failed to count download")
	}
	file.Downloads++

	return file, reader, nil
}

// UpdateFileInput contains the mutable metadata fields of a file.
// Nil pointers leave the field untouched.
type UpdateFileInput struct {
	Name     *string
	Tags     []string
	IsPublic *bool
}

// UpdateMetadata edits a file's name, tags, or visibility.
// Allowed for the project owner, write/admin tier collaborators, and
// the uploader.
func (s *FileService) UpdateMetadata(ctx context.Context, actor *domain.User, fileID int64, input UpdateFileInput) (*domain.File, error) {
	file, project, err := s.fileWithProject(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !CanViewProject(actor, project) {
		return nil, domain.ErrFileNotFound
	}
	if !CanEditFile(actor, project, file) {
		return nil, domain.ErrAccessDenied
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || len(name) > maxFileNameLength {
			return nil, domain.ErrFileNameRequired
		}
		file.Name = name
	}
	if input.Tags != nil {
		file.Tags = input.Tags
	}
	if input.IsPublic != nil {
		file.IsPublic = *input.IsPublic
	}

	if err := s.fileRepo.Update(ctx, file); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to update file")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("file_id", fileID).Int64("actor_id", actor.ID).Msg("file metadata updated")
	return file, nil
}

// Delete removes a file's metadata and bytes.
// Allowed for the project owner, admin tier collaborators, and the
// uploader. The metadata row goes first; a failed byte cleanup is
// logged but not surfaced.
func (s *FileService) Delete(ctx context.Context, actor *domain.User, fileID int64) error {
	file, project, err := s.fileWithProject(ctx, fileID)
	if err != nil {
		return err
	}
	if !CanViewProject(actor, project) {
		return domain.ErrFileNotFound
	}
	if !CanDeleteFile(actor, project, file) {
		return domain.ErrAccessDenied
	}

	if err := s.fileRepo.Delete(ctx, fileID); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to delete file record")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.backend.Delete(ctx, file.StorageKey); err != nil {
		s.logger.Warn().Err(err).Str("storage_key", file.StorageKey).Msg("failed to delete stored bytes")
	}

	s.logger.Info().Int64("file_id", fileID).Int64("actor_id", actor.ID).Msg("file deleted")
	return nil
}

// OpenByStorageKey streams a file's bytes without any permission check.
// Intended for share downloads, where access was already validated
// against the share itself.
func (s *FileService) OpenByStorageKey(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	reader, err := s.backend.Open(ctx, storageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return reader, nil
}

// announceUpload posts a system chat message for a fresh upload.
func (s *FileService) announceUpload(ctx context.Context, actor *domain.User, file *domain.File) {
	msg := domain.NewMessage(file.ProjectID, actor.ID, fmt.Sprintf("%s uploaded %s", actor.Username, file.Name), domain.MessageSystem, &domain.MessageFileInfo{
		Name:     file.Name,
		Size:     file.Size,
		MimeType: file.MimeType,
	})
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Int64("project_id", file.ProjectID).Msg("failed to post upload notice")
	}
}

// canViewFile applies the project view gate plus the per-file public
// override: a public file is readable by any authenticated user even
// when its project is private.
func (s *FileService) canViewFile(actor *domain.User, project *domain.Project, file *domain.File) bool {
	if CanViewProject(actor, project) {
		return true
	}
	return actor != nil && file.IsPublic
}

// fileWithProject loads a file and its owning project.
func (s *FileService) fileWithProject(ctx context.Context, fileID int64) (*domain.File, *domain.Project, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("file_id", fileID).Msg("failed to load file")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	project, err := s.projectRepo.GetByID(ctx, file.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", file.ProjectID).Msg("failed to load project for file")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return file, project, nil
}

// visibleProject loads a project and enforces the view gate.
func (s *FileService) visibleProject(ctx context.Context, actor *domain.User, projectID int64) (*domain.Project, error) {
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
	return project, nil
}
