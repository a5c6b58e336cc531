package middleware

import (
	"context"
	"strings"

	"receipt-keeper/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDKey is the fiber locals key holding the authenticated uuid.UUID.
const UserIDKey = "userID"

// UserChecker confirms that a token subject still refers to an existing user.
type UserChecker interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

func AuthMiddleware(jwtManager *auth.JWTManager, users UserChecker, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Not authenticated",
			})
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Invalid token", zap.Error(err))
			return unauthorized(c, "Invalid token")
		}
		if !claims.IsAccess() {
			return unauthorized(c, "Invalid access token")
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return unauthorized(c, "Invalid token subject")
		}

		exists, err := users.UserExists(c.UserContext(), userID)
		if err != nil {
			logger.Error("Failed to look up token user", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
			})
		}
		if !exists {
			return unauthorized(c, "User not found")
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// bearerToken extracts the credentials of a "Bearer <token>" header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
	})
}
