package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/domain"
)

const principalLocalsKey = "auth_principal"

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c *fiber.Ctx, principal *domain.Principal) {
	c.Locals(principalLocalsKey, principal)
}

// PrincipalFromContext retrieves the caller stored by SetPrincipal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalLocalsKey).(*domain.Principal)
	return principal, ok && principal != nil
}
