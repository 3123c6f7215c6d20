package domain

// Principal is the authenticated caller for the duration of one request.
// It is built from verified token claims and never persisted.
type Principal struct {
	UserID string
	Email  string
	Role   Role
	// TierHint is the subscription tier embedded at issuance, if any. It is
	// informational; entitlement is always checked against the store.
	TierHint string
}
