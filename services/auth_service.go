package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/models"
	"github.com/upb/calendar-api/repositories"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// timingPassword is hashed once and compared against when a login names an
// unknown email, so both failure paths cost one bcrypt comparison.
const timingPassword = "calendar-api/unknown-user"

// TokenIssuer issues access tokens for an identity
type TokenIssuer interface {
	Issue(identity auth.Identity) (token string, expiresAt time.Time, err error)
}

// RegisterInput is the payload of a registration request
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginInput is the payload of a login request
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.PublicUser
}

// AuthService handles registration, login and logout
type AuthService struct {
	users       repositories.UserRepository
	hasher      auth.PasswordHasher
	tokens      TokenIssuer
	revocations auth.RevocationRegistry
	logger      *zap.Logger

	timingOnce sync.Once
	timingHash string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users repositories.UserRepository,
	hasher auth.PasswordHasher,
	tokens TokenIssuer,
	revocations auth.RevocationRegistry,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

// Register creates a new account. The password is trimmed before hashing.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Password = strings.TrimSpace(input.Password)

	if err := validateInput(input); err != nil {
		return err
	}

	_, err := s.users.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return ErrUserExists
	case !errors.Is(err, repositories.ErrNotFound):
		s.logger.Error("failed to look up user", zap.Error(err))
		return WrapInternal(DefaultClientMessage, err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return NewValidationError("Invalid or missing password").
			WithDetail("fields", map[string]string{"password": "password must be at most 72 bytes"})
	}
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return WrapInternal(DefaultClientMessage, err)
	}

	user := models.NewUser(input.Name, input.Email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration, or the email belongs
		// to a soft deleted account.
		if errors.Is(err, repositories.ErrDuplicate) {
			return ErrUserExists
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return WrapInternal(DefaultClientMessage, err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return nil
}

// Login verifies credentials and issues an access token.
// Unknown emails and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Password = strings.TrimSpace(input.Password)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.equalizeTiming(input.Password)
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user", zap.Error(err))
		return nil, WrapInternal(DefaultClientMessage, err)
	}

	if err := s.hasher.Verify(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Debug("password mismatch", zap.String("user_id", user.ID.String()))
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to verify password", zap.Error(err))
		return nil, WrapInternal(DefaultClientMessage, err)
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{ID: user.ID.String(), Email: user.Email})
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		return nil, WrapInternal(DefaultClientMessage, err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()))
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	}, nil
}

// Logout revokes the token until its own expiry
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrUnauthorized
	}
	s.revocations.Revoke(token, expiresAt)
	s.logger.Info("token revoked", zap.Time("expires_at", expiresAt))
	return nil
}

func (s *AuthService) equalizeTiming(password string) {
	s.timingOnce.Do(func() {
		hash, err := s.hasher.Hash(timingPassword)
		if err != nil {
			s.logger.Warn("failed to prepare timing hash", zap.Error(err))
			return
		}
		s.timingHash = hash
	})
	if s.timingHash != "" {
		_ = s.hasher.Verify(s.timingHash, password)
	}
}

// validateInput runs struct validation and reports the first failing field
func validateInput(input interface{}) error {
	err := utils.ValidateStruct(input)
	if err == nil {
		return nil
	}
	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		field := validationErr.FirstField()
		return NewValidationError("Invalid or missing "+field).
			WithDetail("fields", validationErr.Fields)
	}
	return WrapInternal(DefaultClientMessage, err)
}
