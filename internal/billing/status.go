// AngelaMos | 2026
// status.go

package billing

import (
	"math"
	"time"
)

// IsTrialing reports whether the subscription is in an active trial.
func (s *Subscription) IsTrialing() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusTrialing && s.TrialEnd != nil && s.TrialEnd.After(time.Now())
}

// IsActive reports whether the subscription status is active. A trial
// is not active; trial access is reflected through IsPaidPlan.
func (s *Subscription) IsActive() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive
}

// IsFreePlan reports whether the user is on the free tier. A nil or
// missing subscription is treated as free.
func (s *Subscription) IsFreePlan() bool {
	if s == nil {
		return true
	}
	return s.Status == StatusFree || s.StripeSubscriptionID == nil
}

// IsPaidPlan reports whether the user holds a paid plan that is active
// or in trial.
func (s *Subscription) IsPaidPlan() bool {
	return !s.IsFreePlan() && (s.IsActive() || s.IsTrialing())
}

// IsCanceled reports whether the subscription has ended or is scheduled
// to end at the current period boundary.
func (s *Subscription) IsCanceled() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusCanceled || s.CancelAtPeriodEnd
}

// DaysUntilTrialEnd returns the whole days remaining in the trial, or nil
// when no trial end is set.
func (s *Subscription) DaysUntilTrialEnd() *int {
	if s == nil {
		return nil
	}
	return daysUntil(s.TrialEnd)
}

// DaysUntilPeriodEnd returns the whole days remaining in the current
// billing period, or nil when the boundary is unknown.
func (s *Subscription) DaysUntilPeriodEnd() *int {
	if s == nil {
		return nil
	}
	return daysUntil(s.CurrentPeriodEnd)
}

// StatusMessage returns a short human-readable description of the
// subscription state for display in account screens.
func (s *Subscription) StatusMessage() string {
	if s == nil {
		return "Free Plan"
	}
	switch s.Status {
	case StatusActive:
		if s.CancelAtPeriodEnd {
			return "Canceling at period end"
		}
		return "Active"
	case StatusTrialing:
		return "Trial Period"
	case StatusPastDue:
		return "Payment Past Due"
	case StatusCanceled:
		return "Canceled"
	case StatusUnpaid:
		return "Unpaid"
	case StatusIncomplete:
		return "Incomplete"
	case StatusIncompleteExpired:
		return "Incomplete Expired"
	case StatusPaused:
		return "Paused"
	case StatusFree:
		return "Free Plan"
	default:
		return "Unknown"
	}
}

// PlanDisplayName returns the stored plan name, falling back to the given
// default for nil or unnamed rows.
func (s *Subscription) PlanDisplayName(fallback string) string {
	if s == nil || s.PlanName == "" {
		return fallback
	}
	return s.PlanName
}

// daysUntil returns the number of whole days until t, rounded up.
// Past dates yield negative counts. Nil in, nil out.
func daysUntil(t *time.Time) *int {
	if t == nil {
		return nil
	}
	days := int(math.Ceil(time.Until(*t).Hours() / 24))
	return &days
}
