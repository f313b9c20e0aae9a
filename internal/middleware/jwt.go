package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sol-pay/sol_backend/internal/auth"
)

// RequireUser validates the bearer token and stores the subject in
// c.Locals("user_id").
func RequireUser(tokens *auth.TokenService) fiber.Handler {
	return requireRole(tokens, auth.RoleUser)
}

// RequireAdmin validates the bearer token and accepts only admin tokens.
func RequireAdmin(tokens *auth.TokenService) fiber.Handler {
	return requireRole(tokens, auth.RoleAdmin)
}

func requireRole(tokens *auth.TokenService, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if claims.Role != role {
			return fiber.NewError(http.StatusForbidden, "insufficient privileges")
		}
		c.Locals("user_id", claims.Subject)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}
