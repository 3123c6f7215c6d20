package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/api/dto"
	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/cache"
	"github.com/spec-kit/learning-api/internal/observability"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// DropCounter reports discarded security events.
type DropCounter interface {
	Dropped() uint64
}

// AdminHandler exposes cache and pipeline maintenance.
type AdminHandler struct {
	cache   *cache.Cache
	metrics *observability.Metrics
	events  DropCounter
	logger  *zap.Logger
}

// NewAdminHandler constructs handler. events may be nil.
func NewAdminHandler(c *cache.Cache, metrics *observability.Metrics, events DropCounter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{cache: c, metrics: metrics, events: events, logger: logger}
}

// CacheStats handles GET /api/admin/cache/stats.
func (h *AdminHandler) CacheStats(c *fiber.Ctx) error {
	body := fiber.Map{
		"cache":   h.cache.Stats(c.UserContext()),
		"metrics": h.metrics.Snapshot(),
	}
	if h.events != nil {
		body["security_events_dropped"] = h.events.Dropped()
	}
	return c.JSON(fiber.Map{"data": body})
}

// FlushCache handles POST /api/admin/cache/flush.
func (h *AdminHandler) FlushCache(c *fiber.Ctx) error {
	h.cache.Flush(c.UserContext())
	h.audit(c, "cache flushed")
	return c.JSON(fiber.Map{"data": fiber.Map{"flushed": true}})
}

// InvalidateCache handles POST /api/admin/cache/invalidate.
func (h *AdminHandler) InvalidateCache(c *fiber.Ctx) error {
	var req dto.CacheInvalidateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !strings.HasPrefix(req.Prefix, "/") {
		return apperrors.NewValidationError("prefix must be a path starting with /", nil)
	}

	removed := h.cache.Invalidate(c.UserContext(), req.Prefix)
	h.audit(c, "cache invalidated", zap.String("prefix", req.Prefix), zap.Int("removed", removed))
	return c.JSON(fiber.Map{"data": fiber.Map{"prefix": req.Prefix, "removed": removed}})
}

func (h *AdminHandler) audit(c *fiber.Ctx, msg string, fields ...zap.Field) {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		fields = append(fields, zap.String("admin_id", principal.UserID))
	}
	h.logger.Info(msg, fields...)
}
