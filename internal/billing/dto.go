// AngelaMos | 2026
// dto.go

package billing

import (
	"time"
)

type CheckoutRequest struct {
	PriceID  string `json:"price_id"  validate:"required"`
	PlanName string `json:"plan_name" validate:"omitempty,max=64"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

type SubscriptionResponse struct {
	Status            Status     `json:"status"`
	Plan              string     `json:"plan"`
	StatusMessage     string     `json:"status_message"`
	IsActive          bool       `json:"is_active"`
	IsTrialing        bool       `json:"is_trialing"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	TrialEnd          *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	DaysUntilTrialEnd *int       `json:"days_until_trial_end,omitempty"`
	DaysUntilRenewal  *int       `json:"days_until_renewal,omitempty"`
}

// ToSubscriptionResponse projects a subscription row into the API shape.
// A nil row renders as the free tier.
func ToSubscriptionResponse(sub *Subscription, freePlan string) SubscriptionResponse {
	resp := SubscriptionResponse{
		Status:        StatusFree,
		Plan:          sub.PlanDisplayName(freePlan),
		StatusMessage: sub.StatusMessage(),
	}
	if sub == nil {
		return resp
	}

	resp.Status = sub.Status
	resp.IsActive = sub.IsActive()
	resp.IsTrialing = sub.IsTrialing()
	resp.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	resp.TrialEnd = sub.TrialEnd
	resp.CurrentPeriodEnd = sub.CurrentPeriodEnd
	resp.DaysUntilTrialEnd = sub.DaysUntilTrialEnd()
	resp.DaysUntilRenewal = sub.DaysUntilPeriodEnd()
	return resp
}

type EntitlementsResponse struct {
	Plan     string           `json:"plan"`
	Features []string         `json:"features"`
	Limits   map[string]Limit `json:"limits"`
}

type PlanView struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Interval    string   `json:"interval,omitempty"`
	PriceID     string   `json:"price_id,omitempty"`
	TrialDays   int      `json:"trial_days,omitempty"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

// DefaultPlans returns the public pricing catalog.
func DefaultPlans() []PlanView {
	return []PlanView{
		{
			Name:        "Starter",
			Price:       "$0",
			Interval:    "month",
			Description: "Everything you need to get started",
			Features: []string{
				"Up to 3 projects",
				"1 GB storage",
				"Basic analytics",
				"Community support",
			},
		},
		{
			Name:        "Pro",
			Price:       "$29",
			Interval:    "month",
			PriceID:     "price_pro",
			TrialDays:   14,
			Description: "For growing teams that need more",
			Features: []string{
				"Unlimited projects",
				"50 GB storage",
				"Advanced analytics",
				"Priority support",
				"Custom integrations",
			},
			Popular: true,
		},
		{
			Name:        "Enterprise",
			Price:       "Custom",
			Description: "Tailored to your organization",
			Features: []string{
				"Unlimited everything",
				"Dedicated support",
				"Advanced security",
				"Custom contracts",
			},
		},
	}
}
