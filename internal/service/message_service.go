package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

const maxMessageLength = 1000

// MessageService handles project chat.
type MessageService struct {
	messageRepo repository.MessageRepository
	projectRepo repository.ProjectRepository
	logger      zerolog.Logger
}

// NewMessageService creates a new MessageService.
func NewMessageService(messageRepo repository.MessageRepository, projectRepo repository.ProjectRepository, logger zerolog.Logger) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		projectRepo: projectRepo,
		logger:      logger.With().Str("service", "message").Logger(),
	}
}

// List returns the chat messages of a project, newest first.
// Any viewer of the project may read its chat.
func (s *MessageService) List(ctx context.Context, actor *domain.User, projectID int64, opts repository.ListOptions) (*repository.ListResult[domain.Message], error) {
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	opts = clampListOptions(opts)

	result, err := s.messageRepo.ListByProject(ctx, projectID, opts)
	if err != nil {
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to list messages")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return result, nil
}

// Send posts a chat message. Any viewer of the project may write;
// read-tier collaborators included.
func (s *MessageService) Send(ctx context.Context, actor *domain.User, projectID int64, content string) (*domain.Message, error) {
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxMessageLength {
		return nil, domain.ErrMessageContentLength
	}

	msg := domain.NewMessage(projectID, actor.ID, content, domain.MessageText, nil)
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.logger.Error().Err(err).Int64("project_id", projectID).Msg("failed to create message")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	msg.SenderName = actor.Username

	return msg, nil
}

// Edit changes a message's content and marks it edited.
// Allowed for the sender, global admins, and write/admin tier
// collaborators. System messages are immutable.
func (s *MessageService) Edit(ctx context.Context, actor *domain.User, messageID int64, content string) (*domain.Message, error) {
	msg, project, err := s.messageWithProject(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Type == domain.MessageSystem {
		return nil, domain.ErrSystemMessageImmutable
	}
	if !CanEditMessage(actor, project, msg) {
		return nil, domain.ErrAccessDenied
	}

	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxMessageLength {
		return nil, domain.ErrMessageContentLength
	}

	now := time.Now().UTC()
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now

	if err := s.messageRepo.Update(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		s.logger.Error().Err(err).Int64("message_id", messageID).Msg("failed to update message")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("message_id", messageID).Int64("actor_id", actor.ID).Msg("message edited")
	return msg, nil
}

// Delete removes a message. Allowed for the sender, global admins, and
// admin tier collaborators.
func (s *MessageService) Delete(ctx context.Context, actor *domain.User, messageID int64) error {
	msg, project, err := s.messageWithProject(ctx, actor, messageID)
	if err != nil {
		return err
	}
	if !CanDeleteMessage(actor, project, msg) {
		return domain.ErrAccessDenied
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return domain.ErrMessageNotFound
		}
		s.logger.Error().Err(err).Int64("message_id", messageID).Msg("failed to delete message")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("message_id", messageID).Int64("actor_id", actor.ID).Msg("message deleted")
	return nil
}

// messageWithProject loads a message and its project. The view gate
// turns invisible messages into missing ones, except for the sender
// and global admins: moderation reaches into projects they cannot
// otherwise see.
func (s *MessageService) messageWithProject(ctx context.Context, actor *domain.User, messageID int64) (*domain.Message, *domain.Project, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, nil, domain.ErrMessageNotFound
		}
		s.logger.Error().Err(err).Int64("message_id", messageID).Msg("failed to load message")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	project, err := s.projectRepo.GetByID(ctx, msg.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, nil, domain.ErrMessageNotFound
		}
		s.logger.Error().Err(err).Int64("project_id", msg.ProjectID).Msg("failed to load project")
		return nil, nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	moderator := actor != nil && (actor.ID == msg.SenderID || actor.IsAdmin)
	if !moderator && !CanViewProject(actor, project) {
		return nil, nil, domain.ErrMessageNotFound
	}
	return msg, project, nil
}

// visibleProject loads a project and enforces the view gate.
func (s *MessageService) visibleProject(ctx context.Context, actor *domain.User, projectID int64) (*domain.Project, error) {
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
