package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/learning-api/internal/api/dto"
	"github.com/spec-kit/learning-api/internal/csrf"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// CSRFHandler issues double-submit token pairs.
type CSRFHandler struct {
	guard  *csrf.Guard
	secure bool
	maxAge time.Duration
}

// NewCSRFHandler constructs handler. secure marks cookies Secure, which
// browsers require for the __Host- prefix outside localhost.
func NewCSRFHandler(guard *csrf.Guard, secure bool, maxAge time.Duration) *CSRFHandler {
	return &CSRFHandler{guard: guard, secure: secure, maxAge: maxAge}
}

// Issue handles GET /api/csrf-token. Each call rotates the token; the session
// cookie is created on first contact and kept afterwards.
func (h *CSRFHandler) Issue(c *fiber.Ctx) error {
	sessionID := c.Cookies(csrf.SessionCookieName)
	if sessionID == "" {
		sessionID = uuid.NewString()
		c.Cookie(h.cookie(csrf.SessionCookieName, sessionID))
	}

	cookieValue, token, err := h.guard.Issue(sessionID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Cookie(h.cookie(csrf.CookieName, cookieValue))
	c.Set(fiber.HeaderCacheControl, "no-store")

	return c.JSON(dto.CSRFTokenResponse{CSRFToken: token})
}

func (h *CSRFHandler) cookie(name, value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.maxAge.Seconds()),
		Secure:   h.secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}
