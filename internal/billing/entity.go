// AngelaMos | 2026
// entity.go

package billing

import (
	"time"
)

// Status is the canonical subscription lifecycle state. It mirrors the
// billing provider's status values plus "free" for users without a
// provider-side subscription.
type Status string

const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
	StatusFree              Status = "free"
)

// Subscription is the canonical billing record, one row per user.
// Rows are never deleted; cancellation downgrades the row to StatusFree.
type Subscription struct {
	ID                   string     `db:"id"`
	UserID               string     `db:"user_id"`
	StripeCustomerID     *string    `db:"stripe_customer_id"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id"`
	StripePriceID        *string    `db:"stripe_price_id"`
	Status               Status     `db:"status"`
	PlanName             string     `db:"plan_name"`
	TrialStart           *time.Time `db:"trial_start"`
	TrialEnd             *time.Time `db:"trial_end"`
	CurrentPeriodStart   *time.Time `db:"current_period_start"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end"`
	CanceledAt           *time.Time `db:"canceled_at"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// mapProviderStatus translates a provider status string into the canonical
// enumeration. Unrecognized values map to canceled so an unknown state
// never grants paid access.
func mapProviderStatus(status string) Status {
	switch status {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled":
		return StatusCanceled
	case "unpaid":
		return StatusUnpaid
	case "incomplete":
		return StatusIncomplete
	case "incomplete_expired":
		return StatusIncompleteExpired
	case "paused":
		return StatusPaused
	default:
		return StatusCanceled
	}
}
