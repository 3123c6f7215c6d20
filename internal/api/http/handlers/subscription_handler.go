package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/api/dto"
	"github.com/spec-kit/learning-api/internal/subscription"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// SubscriptionHandler reports the caller's entitlement.
type SubscriptionHandler struct{}

// NewSubscriptionHandler constructs handler.
func NewSubscriptionHandler() *SubscriptionHandler {
	return &SubscriptionHandler{}
}

// Me handles GET /api/subscriptions/me. The route is subscription-gated, so
// the record admitted by the gate is already on the request.
func (h *SubscriptionHandler) Me(c *fiber.Ctx) error {
	record, ok := subscription.RecordFromContext(c)
	if !ok {
		return apperrors.NewForbidden(apperrors.CodeSubscriptionRequired, "an active subscription is required", nil)
	}
	return c.JSON(fiber.Map{"data": dto.SubscriptionResponse{
		ID:        record.ID,
		Plan:      record.Plan,
		Status:    string(record.Status),
		StartDate: record.StartDate,
		EndDate:   record.EndDate,
	}})
}
