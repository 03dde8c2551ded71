// AngelaMos | 2026
// provider.go

package billing

import (
	"context"
)

// Customer is the provider-side billing customer.
type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// ProviderSubscription is the provider-side view of a subscription.
// Timestamps are unix epochs; zero means unset.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Metadata           map[string]string
	CancelAtPeriodEnd  bool
	CanceledAt         int64
	TrialStart         int64
	TrialEnd           int64
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
}

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	PlanName   string
	UserID     string
	TrialDays  int
	SuccessURL string
	CancelURL  string
}

// Provider abstracts the payment provider API surface the billing
// service depends on.
type Provider interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	SetSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProviderSubscription, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (url string, err error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error)
}
