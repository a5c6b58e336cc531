package service

import (
	"context"
	"testing"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"
	"receipt-keeper/internal/repository"
	"receipt-keeper/pkg/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUserRepo struct {
	byID map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range f.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func newTestAuthService() (*AuthService, *fakeUserRepo, *auth.JWTManager) {
	repo := newFakeUserRepo()
	jwt := auth.NewJWTManager("secret", "HS256", 30*time.Minute, 7*24*time.Hour)
	return NewAuthService(repo, jwt, zap.NewNop()), repo, jwt
}

func TestRegisterAndLogin(t *testing.T) {
	svc, repo, jwt := newTestAuthService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, &dto.RegisterRequest{Email: "Test@Example.com", Password: "ChangeMe123!"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "test@example.com", resp.User.Email)

	claims, err := jwt.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAccess())
	assert.Equal(t, resp.User.ID, claims.Subject)

	_, err = svc.Register(ctx, &dto.RegisterRequest{Email: "test@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "test@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "ChangeMe123!"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err := svc.Login(ctx, &dto.LoginRequest{Email: "TEST@example.com", Password: "ChangeMe123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.RefreshToken)

	user := repo.byID[uuid.MustParse(login.User.ID)]
	require.NotNil(t, user.LastLoginAt)
}

func TestRefresh(t *testing.T) {
	svc, _, jwt := newTestAuthService()
	ctx := context.Background()

	refresh, err := jwt.GenerateRefreshToken(uuid.NewString())
	require.NoError(t, err)
	resp, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)

	claims, err := jwt.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAccess())

	access, err := jwt.GenerateAccessToken(uuid.NewString())
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, access)
	assert.ErrorIs(t, err, ErrNotRefreshToken)

	noSubject, err := jwt.GenerateRefreshToken("")
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, noSubject)
	assert.ErrorIs(t, err, ErrInvalidTokenSubject)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestUserExists(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, &dto.RegisterRequest{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)

	ok, err := svc.UserExists(ctx, uuid.MustParse(resp.User.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.UserExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, svc.Logout(ctx, "anything").OK)
}
