package dto

// CacheInvalidateRequest payload for POST /api/admin/cache/invalidate.
type CacheInvalidateRequest struct {
	Prefix string `json:"prefix"`
}

// WebhookEvent is the subset of a payment provider event the service acts on.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		UserID string `json:"user_id"`
	} `json:"data"`
}
