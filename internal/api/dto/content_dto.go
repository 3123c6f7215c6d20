package dto

import "time"

// CreateBookmarkRequest payload for POST /api/bookmarks.
type CreateBookmarkRequest struct {
	ChapterID string `json:"chapter_id"`
	Note      string `json:"note"`
}

// SubscriptionResponse describes the caller's active entitlement.
type SubscriptionResponse struct {
	ID        string     `json:"id"`
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}
