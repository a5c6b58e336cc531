package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessAndRefreshTokens(t *testing.T) {
	m := NewJWTManager("secret", "HS256", time.Minute, time.Hour)

	access, err := m.GenerateAccessToken("user-1")
	require.NoError(t, err)
	claims, err := m.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.True(t, claims.IsAccess())
	assert.False(t, claims.IsRefresh())

	refresh, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	claims, err = m.ValidateToken(refresh)
	require.NoError(t, err)
	assert.True(t, claims.IsRefresh())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateTokenRejects(t *testing.T) {
	m := NewJWTManager("secret", "HS256", time.Minute, time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other", "HS256", time.Minute, time.Hour)
		token, err := other.GenerateAccessToken("user-1")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewJWTManager("secret", "HS256", time.Minute, time.Hour)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
		token, err := past.GenerateAccessToken("user-1")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
			Type:             TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestUnknownAlgorithmFallsBackToHS256(t *testing.T) {
	m := NewJWTManager("secret", "RS256", time.Minute, time.Hour)
	assert.Equal(t, "HS256", m.method.Alg())
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("ChangeMe123!")
	require.NoError(t, err)
	assert.NotEqual(t, "ChangeMe123!", hash)
	assert.True(t, CheckPasswordHash("ChangeMe123!", hash))
	assert.False(t, CheckPasswordHash("WrongPass", hash))
}
