package subscription

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/domain"
)

const recordLocalsKey = "subscription_record"

// SetRecord stores the record that admitted the request.
func SetRecord(c *fiber.Ctx, record *domain.SubscriptionRecord) {
	c.Locals(recordLocalsKey, record)
}

// RecordFromContext retrieves the record stored by SetRecord.
func RecordFromContext(c *fiber.Ctx) (*domain.SubscriptionRecord, bool) {
	record, ok := c.Locals(recordLocalsKey).(*domain.SubscriptionRecord)
	return record, ok && record != nil
}
