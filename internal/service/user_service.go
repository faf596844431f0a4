package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
	"github.com/prn-tf/teamdrop/internal/pkg/crypto"
	"github.com/prn-tf/teamdrop/internal/repository"
)

// usernamePattern is the allowed username format.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// UserService handles registration, login, and admin user management.
type UserService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
	bcryptCost  int
	minPassword int
	logger      zerolog.Logger
}

// UserServiceConfig holds the tunables for UserService.
type UserServiceConfig struct {
	SessionTTL        time.Duration
	BcryptCost        int
	MinPasswordLength int
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, cfg UserServiceConfig, logger zerolog.Logger) *UserService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	return &UserService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sessionTTL:  cfg.SessionTTL,
		bcryptCost:  cfg.BcryptCost,
		minPassword: cfg.MinPasswordLength,
		logger:      logger.With().Str("service", "user").Logger(),
	}
}

// RegisterInput contains the data needed to register a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterOutput contains the result of a registration.
type RegisterOutput struct {
	User    *domain.User
	Session *domain.Session
}

// Register creates a new user account and logs it in.
// The first user ever registered becomes the bootstrap admin with
// upload rights; everyone after starts unprivileged.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check username existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: username '%s'", domain.ErrUserAlreadyExists, input.Username)
	}

	exists, err = s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email '%s'", domain.ErrUserAlreadyExists, input.Email)
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	isFirst := count == 0

	passwordHash, err := crypto.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Username, input.Email, passwordHash, isFirst)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Bool("is_admin", user.IsAdmin).
		Msg("user registered")

	return &RegisterOutput{User: user, Session: session}, nil
}

// LoginInput contains login credentials. Identifier matches either
// username or email.
type LoginInput struct {
	Identifier string
	Password   string
}

// LoginOutput contains the result of a login.
type LoginOutput struct {
	User    *domain.User
	Session *domain.Session
}

// Login verifies credentials and issues a new session.
// Unknown identity and wrong password collapse into one error to
// prevent account enumeration.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Identifier)
	if err != nil {
		user, err = s.userRepo.GetByEmail(ctx, input.Identifier)
	}
	if err != nil {
		s.logger.Debug().Str("identifier", input.Identifier).Msg("unknown identity during login")
		return nil, domain.ErrInvalidCredentials
	}

	if !crypto.VerifyPassword(user.PasswordHash, input.Password) {
		s.logger.Debug().Str("identifier", input.Identifier).Msg("invalid password during login")
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to update last login")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	user.LastLogin = &now

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user logged in")

	return &LoginOutput{User: user, Session: session}, nil
}

// issueSession creates and persists a fresh session token.
func (s *UserService) issueSession(ctx context.Context, userID int64) (*domain.Session, error) {
	token, err := crypto.GenerateSessionToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate session token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	session := domain.NewSession(userID, token, s.sessionTTL)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to create session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return session, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// GrantUpload flips a user's can_upload flag. Admin-only, idempotent,
// and never touches the admin flag.
func (s *UserService) GrantUpload(ctx context.Context, actor *domain.User, targetID int64, canUpload bool) (*domain.User, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, domain.ErrAccessDenied
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if target.CanUpload == canUpload {
		return target, nil
	}

	target.CanUpload = canUpload
	if err := s.userRepo.Update(ctx, target); err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", target.ID).
		Bool("can_upload", canUpload).
		Int64("granted_by", actor.ID).
		Msg("upload permission changed")

	return target, nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
}

// List returns all users with pagination. Admin-only.
func (s *UserService) List(ctx context.Context, actor *domain.User, input ListUsersInput) (*ListUsersOutput, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, domain.ErrAccessDenied
	}

	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}

// HasAdmin reports whether the bootstrap admin has been created yet.
func (s *UserService) HasAdmin(ctx context.Context) (bool, error) {
	has, err := s.userRepo.HasAdmin(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check for admin")
		return false, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return has, nil
}

// validateRegisterInput validates registration input.
func (s *UserService) validateRegisterInput(input RegisterInput) error {
	if !usernamePattern.MatchString(input.Username) {
		return domain.ErrUsernameFormat
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return domain.ErrInvalidEmail
	}
	if len(input.Password) < s.minPassword {
		return domain.ErrPasswordTooShort
	}
	return nil
}
