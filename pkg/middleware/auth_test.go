package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"receipt-keeper/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers map[uuid.UUID]bool

func (f fakeUsers) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return f[id], nil
}

func newAuthApp(jwt *auth.JWTManager, users UserChecker) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthMiddleware(jwt, users, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(UserIDKey).(uuid.UUID).String())
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	jwt := auth.NewJWTManager("secret", "HS256", time.Minute, time.Hour)
	known := uuid.New()
	app := newAuthApp(jwt, fakeUsers{known: true})

	access, err := jwt.GenerateAccessToken(known.String())
	require.NoError(t, err)
	refresh, err := jwt.GenerateRefreshToken(known.String())
	require.NoError(t, err)
	unknown, err := jwt.GenerateAccessToken(uuid.NewString())
	require.NoError(t, err)
	badSubject, err := jwt.GenerateAccessToken("not-a-uuid")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing header", "", fiber.StatusForbidden, "Not authenticated"},
		{"wrong scheme", "Basic abc", fiber.StatusForbidden, "Not authenticated"},
		{"garbage token", "Bearer garbage", fiber.StatusUnauthorized, "Invalid token"},
		{"refresh token", "Bearer " + refresh, fiber.StatusUnauthorized, "Invalid access token"},
		{"bad subject", "Bearer " + badSubject, fiber.StatusUnauthorized, "Invalid token subject"},
		{"unknown user", "Bearer " + unknown, fiber.StatusUnauthorized, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.message, body["error"])
		})
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = bearerToken("Bearer ")
	assert.False(t, ok)
}
