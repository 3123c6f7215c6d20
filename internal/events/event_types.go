package events

import "time"

// Severity grades a security event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Security event names emitted by the request pipeline.
const (
	EventCSRFValidationFailed   = "csrf_validation_failed"
	EventAuthenticationFailed   = "authentication_failed"
	EventAuthorizationDenied    = "authorization_denied"
	EventRateLimited            = "rate_limited"
	EventEntitlementUnavailable = "entitlement_check_unavailable"
)

// Event is one security-relevant occurrence. Fields never hold credentials.
type Event struct {
	Name     string         `json:"name"`
	Severity Severity       `json:"severity"`
	Fields   map[string]any `json:"fields,omitempty"`
	At       time.Time      `json:"at"`
}
