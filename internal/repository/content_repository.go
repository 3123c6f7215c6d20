package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/learning-api/internal/domain"
)

// ContentRepository reads the book catalogue.
type ContentRepository interface {
	ListBooks(ctx context.Context, level string, limit, offset int) ([]domain.Book, error)
	ListChapters(ctx context.Context, bookID string) ([]domain.Chapter, error)
}

type contentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository returns a Postgres-backed implementation.
func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &contentRepository{pool: pool}
}

func (r *contentRepository) ListBooks(ctx context.Context, level string, limit, offset int) ([]domain.Book, error) {
	const query = `
        SELECT id, title, author, level, created_at
        FROM books
        WHERE ($1 = '' OR level = $1)
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, level, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Book, error) {
		var b domain.Book
		err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Level, &b.CreatedAt)
		return b, err
	})
}

func (r *contentRepository) ListChapters(ctx context.Context, bookID string) ([]domain.Chapter, error) {
	const query = `
        SELECT id, book_id, position, title, body
        FROM chapters
        WHERE book_id=$1
        ORDER BY position`

	rows, err := r.pool.Query(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Chapter, error) {
		var c domain.Chapter
		err := row.Scan(&c.ID, &c.BookID, &c.Position, &c.Title, &c.Body)
		return c, err
	})
}
