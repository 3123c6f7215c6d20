package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/learning-api/internal/domain"
)

// SubscriptionRepository reads entitlement records. It is the store behind
// the subscription gate.
type SubscriptionRepository interface {
	FindActiveSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
	// EndActive moves the user's active records to status, returning how many changed.
	EndActive(ctx context.Context, userID string, status domain.SubscriptionStatus) (int64, error)
	// ExpireLapsed marks active records with an end date at or before now as expired.
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository returns a Postgres-backed implementation.
func NewSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

// FindActiveSubscription returns the user's most recent active record, or nil
// when there is none. End dates are judged by the caller's clock, not NOW().
func (r *subscriptionRepository) FindActiveSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	if r.pool == nil {
		return nil, errors.New("subscription store not configured")
	}

	const query = `
        SELECT id, user_id, plan, status, start_date, end_date
        FROM subscriptions
        WHERE user_id=$1 AND status='active'
        ORDER BY end_date DESC NULLS FIRST
        LIMIT 1`

	var rec domain.SubscriptionRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Plan,
		&rec.Status,
		&rec.StartDate,
		&rec.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *subscriptionRepository) EndActive(ctx context.Context, userID string, status domain.SubscriptionStatus) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("subscription store not configured")
	}

	const query = `
        UPDATE subscriptions
        SET status=$2, updated_at=NOW()
        WHERE user_id=$1 AND status='active'`

	tag, err := r.pool.Exec(ctx, query, userID, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("subscription store not configured")
	}

	const query = `
        UPDATE subscriptions
        SET status='expired', updated_at=NOW()
        WHERE status='active' AND end_date IS NOT NULL AND end_date <= $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
