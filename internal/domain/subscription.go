package domain

import "time"

// SubscriptionStatus mirrors the status column of the subscriptions table.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// SubscriptionRecord describes a user's entitlement.
type SubscriptionRecord struct {
	ID        string
	UserID    string
	Plan      string
	Status    SubscriptionStatus
	StartDate time.Time
	EndDate   *time.Time
}

// ActiveAt reports whether the record grants access at now.
func (s *SubscriptionRecord) ActiveAt(now time.Time) bool {
	if s == nil || s.Status != SubscriptionActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}
