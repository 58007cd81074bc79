package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kudi-wallet/kudi_wallet/internal/apikeys"
	"github.com/kudi-wallet/kudi_wallet/internal/auth"
	"github.com/kudi-wallet/kudi_wallet/internal/identity"
)

const apiKeyHeader = "X-API-Key"

// Auth authenticates requests by Google-session JWT (Authorization: Bearer)
// or by API key (X-API-Key). A session grants every permission; an API key
// grants only the permissions it was created with. On success the request
// carries user_id, user_email and permissions locals.
func Auth(sessions *auth.Service, keys *apikeys.Service, users *identity.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Get(apiKeyHeader); raw != "" {
			key, err := keys.Validate(c.UserContext(), raw)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid api key")
			}
			c.Locals("user_id", key.UserID)
			c.Locals("permissions", key.Permissions)
			if user, err := users.Get(c.UserContext(), key.UserID); err == nil {
				c.Locals("user_email", user.Email)
			}
			return c.Next()
		}

		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing credentials")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		userID, err := sessions.Verify(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		user, err := users.Get(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "unknown user")
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_email", user.Email)
		c.Locals("permissions", []string{apikeys.PermissionDeposit, apikeys.PermissionTransfer, apikeys.PermissionRead})
		return c.Next()
	}
}

// RequirePermission gates a route on one of the authenticated principal's
// permissions.
func RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		perms, _ := c.Locals("permissions").([]string)
		for _, p := range perms {
			if p == perm {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "missing permission: "+perm)
	}
}

// RequireSession gates a route on session authentication; API keys cannot
// manage other API keys.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(apiKeyHeader) != "" {
			return fiber.NewError(http.StatusForbidden, "api keys cannot access this resource")
		}
		return c.Next()
	}
}
