package domain

import "time"

// Book is a catalogue entry.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// Chapter is premium content gated behind a subscription.
type Chapter struct {
	ID       string `json:"id"`
	BookID   string `json:"book_id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Bookmark marks a reading position for a user.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ChapterID string    `json:"chapter_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
