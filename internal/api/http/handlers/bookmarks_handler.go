package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/learning-api/internal/api/dto"
	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/repository"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

const maxNoteLength = 500

// BookmarksHandler manages the caller's bookmarks.
type BookmarksHandler struct {
	bookmarks repository.BookmarkRepository
}

// NewBookmarksHandler constructs handler.
func NewBookmarksHandler(bookmarks repository.BookmarkRepository) *BookmarksHandler {
	return &BookmarksHandler{bookmarks: bookmarks}
}

// List handles GET /api/bookmarks.
func (h *BookmarksHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(apperrors.CodeMissingCredential, "authentication required", nil)
	}

	items, err := h.bookmarks.ListByUser(c.UserContext(), principal.UserID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /api/bookmarks.
func (h *BookmarksHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(apperrors.CodeMissingCredential, "authentication required", nil)
	}

	var req dto.CreateBookmarkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.ChapterID = strings.TrimSpace(req.ChapterID)
	if _, err := uuid.Parse(req.ChapterID); err != nil {
		return apperrors.NewValidationError("chapter_id must be a uuid", nil)
	}
	if len(req.Note) > maxNoteLength {
		return apperrors.NewValidationError("note too long", map[string]any{"max": maxNoteLength})
	}

	bookmark := &domain.Bookmark{
		ID:        uuid.NewString(),
		UserID:    principal.UserID,
		ChapterID: req.ChapterID,
		Note:      req.Note,
	}
	if err := h.bookmarks.Create(c.UserContext(), bookmark); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": bookmark})
}
