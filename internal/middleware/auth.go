package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ledgergate/ledgergate/internal/api"
	"github.com/ledgergate/ledgergate/internal/auth"
)

// RequireToken validates the Authorization bearer token and stores the
// authenticated subject in locals for downstream handlers.
func RequireToken(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return api.Unauthorized("missing bearer token")
		}
		token := strings.TrimSpace(authz[len("bearer "):])

		subject, err := svc.Validate(token)
		if err != nil {
			return api.Unauthorized(err.Error())
		}

		c.Locals(api.SubjectKey, subject)
		return c.Next()
	}
}
