package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// sessionCacheTTL bounds how long a validated session stays cached.
// Short enough that a logout propagates quickly across instances.
const sessionCacheTTL = 30 * time.Second

// SessionService validates bearer tokens and handles logout.
type SessionService struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	cache       repository.Cache
	cacheKeys   repository.CacheKey
	logger      zerolog.Logger
}

// NewSessionService creates a new SessionService.
// The cache is optional; pass nil to always hit the database.
func NewSessionService(sessionRepo repository.SessionRepository, userRepo repository.UserRepository, cache repository.Cache, logger zerolog.Logger) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		cache:       cache,
		logger:      logger.With().Str("service", "session").Logger(),
	}
}

// Validate resolves a bearer token to its user.
// Expired sessions are deleted on sight.
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	if user := s.cachedUser(ctx, token); user != nil {
		return user, nil
	}

	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		s.logger.Error().Err(err).Msg("failed to look up session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if session.IsExpired(time.Now().UTC()) {
		_ = s.sessionRepo.Delete(ctx, token)
		return nil, domain.ErrSessionExpired
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to load session user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.cacheUser(ctx, token, user)
	return user, nil
}

// Logout invalidates a session token.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, s.cacheKeys.Session(token))
	}

	if err := s.sessionRepo.Delete(ctx, token); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}
		s.logger.Error().Err(err).Msg("failed to delete session")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Msg("session terminated")
	return nil
}

// PurgeExpired removes expired sessions. Intended for periodic cleanup.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to purge expired sessions")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("expired sessions purged")
	}
	return deleted, nil
}

// cachedUser returns the cached user for a token, if present.
func (s *SessionService) cachedUser(ctx context.Context, token string) *domain.User {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, s.cacheKeys.Session(token))
	if err != nil {
		return nil
	}

	user := &domain.User{}
	if err := json.Unmarshal(data, user); err != nil {
		return nil
	}
	return user
}

// cacheUser stores a validated session user.
func (s *SessionService) cacheUser(ctx context.Context, token string, user *domain.User) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cacheKeys.Session(token), data, sessionCacheTTL)
}
