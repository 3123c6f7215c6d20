package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/repository"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ContentHandler serves the book catalogue and premium chapters.
type ContentHandler struct {
	content repository.ContentRepository
}

// NewContentHandler constructs handler.
func NewContentHandler(content repository.ContentRepository) *ContentHandler {
	return &ContentHandler{content: content}
}

// ListBooks handles GET /api/books.
func (h *ContentHandler) ListBooks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > maxPageSize || offset < 0 {
		return apperrors.NewValidationError("invalid pagination", map[string]any{
			"limit":  "1-100",
			"offset": ">= 0",
		})
	}

	books, err := h.content.ListBooks(c.UserContext(), c.Query("level"), limit, offset)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": books})
}

// ListChapters handles GET /api/books/:id/chapters.
func (h *ContentHandler) ListChapters(c *fiber.Ctx) error {
	chapters, err := h.content.ListChapters(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if len(chapters) == 0 {
		return apperrors.NewNotFound("book", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": chapters})
}
