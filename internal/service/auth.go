package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/dto"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// AuthService handles registration, login and token refresh.
type AuthService struct {
	users     *UserService
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates an authentication service.
func NewAuthService(users *UserService, tokens *auth.TokenService, validator *validation.Validator, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, tokens: tokens, validator: validator, logger: logger}
}

// LoginRequest contains user credentials. Login is a username or an email address.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest contains the refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse contains the tokens and the authenticated user.
type AuthResponse struct {
	User *dto.UserView `json:"user"`
	auth.TokenPair
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req CreateUserRequest) (*AuthResponse, error) {
	user, err := s.users.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Login verifies credentials and issues a token pair. Unknown users and wrong
// passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.findByLogin(ctx, req.Login)
	if errors.Is(err, store.ErrNotFound) {
		// Hash anyway so a missing account takes as long as a wrong password.
		_, _ = auth.HashPassword(req.Password)
		return nil, domainerrors.InvalidCredentials("Invalid login or password")
	}
	if err != nil {
		return nil, storeError(err, domain.KindUser, "")
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.InfoContext(ctx, "login failed", "user_id", user.ID)
		return nil, domainerrors.InvalidCredentials("Invalid login or password")
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.catalog.Users().Get(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, storeError(err, domain.KindUser, claims.UserID)
	}
	return s.issue(ctx, user)
}

// VerifyAccessToken checks an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(token string) (*auth.Claims, error) {
	return s.tokens.VerifyAccess(token)
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	pair, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue tokens")
	}
	return &AuthResponse{User: s.users.resolver.ResolveUser(ctx, user), TokenPair: *pair}, nil
}
