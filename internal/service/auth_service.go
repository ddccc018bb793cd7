package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/ids"
	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type AuthService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(users repository.UserStore, sessions repository.SessionStore, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

// Register creates an account without a tier. Tiers are assigned by
// operators, so a fresh account has no derivation rights until one is set.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, errors.New("email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}

	return s.createSession(ctx, user, "", "")
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.createSession(ctx, user, input.IPAddress, input.UserAgent)
}

type RefreshInput struct {
	UserID       string
	RefreshToken string
}

// Refresh rotates the refresh token of an existing session and mints a new
// access token.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	hash := security.HashRefreshToken(input.RefreshToken)
	session, err := s.sessions.FindByRefreshHash(ctx, user.ID, hash)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	session.RefreshTokenHash = newHash
	session.ExpiresAt = time.Now().Add(s.cfg.Security.JWTRefreshTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	err := s.sessions.DeleteByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) createSession(ctx context.Context, user models.User, ipAddress string, userAgent string) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
