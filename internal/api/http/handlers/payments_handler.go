package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/api/dto"
	"github.com/spec-kit/learning-api/internal/service"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// SignatureHeader carries hex(HMAC-SHA256(secret, body)) from the provider.
const SignatureHeader = "X-Webhook-Signature"

// PaymentsHandler receives payment provider callbacks. The route is exempt
// from CSRF; the body signature authenticates the sender instead.
type PaymentsHandler struct {
	subscriptions *service.SubscriptionService
	secret        []byte
}

// NewPaymentsHandler constructs handler.
func NewPaymentsHandler(subscriptions *service.SubscriptionService, secret string) *PaymentsHandler {
	return &PaymentsHandler{subscriptions: subscriptions, secret: []byte(secret)}
}

// Webhook handles POST /api/payments/webhook.
func (h *PaymentsHandler) Webhook(c *fiber.Ctx) error {
	body := c.Body()
	if !h.verify(body, c.Get(SignatureHeader)) {
		return apperrors.NewDomainError(apperrors.CodeInvalidSignature, "webhook signature verification failed", fiber.StatusBadRequest, nil)
	}

	var event dto.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	_, err := h.subscriptions.ApplyProviderEvent(c.UserContext(), event.ID, event.Type, event.Data.UserID)
	switch {
	case errors.Is(err, service.ErrMissingUser):
		return apperrors.NewValidationError("data.user_id required", nil)
	case err != nil:
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *PaymentsHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
