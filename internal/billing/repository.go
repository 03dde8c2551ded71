// AngelaMos | 2026
// repository.go

package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aguacasa/webapp-template/internal/core"
)

// Repository is the persistence surface for subscription rows.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Subscription, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	DowngradeToFree(ctx context.Context, id, planName string, canceledAt time.Time) error
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool, canceledAt *time.Time) error
}

type repository struct {
	db core.DBTX
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) GetByUserID(ctx context.Context, userID string) (*Subscription, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
		       status, plan_name, trial_start, trial_end,
		       current_period_start, current_period_end,
		       cancel_at_period_end, canceled_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1`

	var sub Subscription
	if err := r.db.GetContext(ctx, &sub, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetching subscription by user: %w", err)
	}
	return &sub, nil
}

func (r *repository) GetByCustomerID(ctx context.Context, customerID string) (*Subscription, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
		       status, plan_name, trial_start, trial_end,
		       current_period_start, current_period_end,
		       cancel_at_period_end, canceled_at, created_at, updated_at
		FROM subscriptions
		WHERE stripe_customer_id = $1`

	var sub Subscription
	if err := r.db.GetContext(ctx, &sub, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetching subscription by customer: %w", err)
	}
	return &sub, nil
}

func (r *repository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Subscription, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
		       status, plan_name, trial_start, trial_end,
		       current_period_start, current_period_end,
		       cancel_at_period_end, canceled_at, created_at, updated_at
		FROM subscriptions
		WHERE stripe_subscription_id = $1`

	var sub Subscription
	if err := r.db.GetContext(ctx, &sub, query, subscriptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetching subscription by provider id: %w", err)
	}
	return &sub, nil
}

// Upsert writes the subscription keyed on user_id. Replaying the same
// provider state produces an identical row.
func (r *repository) Upsert(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
			status, plan_name, trial_start, trial_end,
			current_period_start, current_period_end,
			cancel_at_period_end, canceled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			stripe_price_id = EXCLUDED.stripe_price_id,
			status = EXCLUDED.status,
			plan_name = EXCLUDED.plan_name,
			trial_start = EXCLUDED.trial_start,
			trial_end = EXCLUDED.trial_end,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			canceled_at = EXCLUDED.canceled_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	var row struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, query,
		sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID,
		sub.Status, sub.PlanName, sub.TrialStart, sub.TrialEnd,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}

	sub.ID = row.ID
	sub.CreatedAt = row.CreatedAt
	sub.UpdatedAt = row.UpdatedAt
	return nil
}

// DowngradeToFree resets a row to the free tier, clearing provider-side
// identifiers and period boundaries while keeping the customer id.
func (r *repository) DowngradeToFree(ctx context.Context, id, planName string, canceledAt time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = 'free',
		    plan_name = $2,
		    stripe_subscription_id = NULL,
		    stripe_price_id = NULL,
		    trial_start = NULL,
		    trial_end = NULL,
		    current_period_start = NULL,
		    current_period_end = NULL,
		    cancel_at_period_end = FALSE,
		    canceled_at = $3,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, planName, canceledAt)
	if err != nil {
		return fmt.Errorf("downgrading subscription: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *repository) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool, canceledAt *time.Time) error {
	query := `
		UPDATE subscriptions
		SET cancel_at_period_end = $2,
		    canceled_at = $3,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, cancel, canceledAt)
	if err != nil {
		return fmt.Errorf("updating subscription cancellation: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return core.ErrNotFound
	}
	return nil
}
