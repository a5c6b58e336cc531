package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"
	"receipt-keeper/internal/repository"
	"receipt-keeper/pkg/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tokenTypeBearer = "bearer"

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotRefreshToken     = errors.New("not a refresh token")
	ErrInvalidTokenSubject = errors.New("invalid token subject")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return s.issueTokens(user)
}

// Refresh exchanges a refresh token for a new access token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.AccessTokenResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if !claims.IsRefresh() {
		return nil, ErrNotRefreshToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidTokenSubject
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &dto.AccessTokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
	}, nil
}

// Logout is stateless: tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) *dto.LogoutResponse {
	return &dto.LogoutResponse{OK: true}
}

// UserExists reports whether id still names a user row.
func (s *AuthService) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AuthService) issueTokens(user *models.User) (*dto.AuthResponse, error) {
	subject := user.ID.String()

	accessToken, err := s.jwtManager.GenerateAccessToken(subject)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(subject)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		User: dto.UserResponse{
			ID:        subject,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
