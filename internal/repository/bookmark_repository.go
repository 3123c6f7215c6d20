package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/learning-api/internal/domain"
)

// BookmarkRepository persists per-user bookmarks.
type BookmarkRepository interface {
	Create(ctx context.Context, bookmark *domain.Bookmark) error
	ListByUser(ctx context.Context, userID string) ([]domain.Bookmark, error)
}

type bookmarkRepository struct {
	pool *pgxpool.Pool
}

// NewBookmarkRepository returns a Postgres-backed implementation.
func NewBookmarkRepository(pool *pgxpool.Pool) BookmarkRepository {
	return &bookmarkRepository{pool: pool}
}

func (r *bookmarkRepository) Create(ctx context.Context, bookmark *domain.Bookmark) error {
	const query = `
        INSERT INTO bookmarks (id, user_id, chapter_id, note)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		bookmark.ID,
		bookmark.UserID,
		bookmark.ChapterID,
		bookmark.Note,
	).Scan(&bookmark.CreatedAt)
}

func (r *bookmarkRepository) ListByUser(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	const query = `
        SELECT id, user_id, chapter_id, note, created_at
        FROM bookmarks
        WHERE user_id=$1
        ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bookmark, error) {
		var b domain.Bookmark
		err := row.Scan(&b.ID, &b.UserID, &b.ChapterID, &b.Note, &b.CreatedAt)
		return b, err
	})
}
