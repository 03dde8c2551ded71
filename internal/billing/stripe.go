// AngelaMos | 2026
// stripe.go

package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a Stripe-backed provider from a secret key.
func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe customer: %w", err)
	}
	return customerFromStripe(cust), nil
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	cust, err := p.api.Customers.Get(customerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching stripe customer %s: %w", customerID, err)
	}
	return customerFromStripe(cust), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	sub, err := p.api.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching stripe subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

func (p *StripeProvider) SetSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("updating stripe subscription %s metadata: %w", subscriptionID, err)
	}
	return nil
}

func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProviderSubscription, error) {
	sub, err := p.api.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(cancel),
	})
	if err != nil {
		return nil, fmt.Errorf("updating stripe subscription %s cancellation: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (string, error) {
	params := checkoutSessionParams(cp)
	params.Params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

// checkoutSessionParams builds the hosted checkout session request. The
// owning user rides on session metadata so the checkout-completed event
// can attribute the subscription; trial runs carry it on subscription_data
// as well so the subscription itself is stamped from creation.
func checkoutSessionParams(cp CheckoutParams) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(cp.CustomerID),
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(cp.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes:      stripe.Bool(true),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
	}
	params.AddMetadata("user_id", cp.UserID)
	params.AddMetadata("plan_name", cp.PlanName)
	params.AddMetadata("price_id", cp.PriceID)

	if cp.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(cp.TrialDays)),
			Metadata: map[string]string{
				"user_id":   cp.UserID,
				"plan_name": cp.PlanName,
			},
		}
	}
	return params
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	sess, err := p.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("creating stripe portal session: %w", err)
	}
	return sess.URL, nil
}

func customerFromStripe(c *stripe.Customer) *Customer {
	return &Customer{
		ID:       c.ID,
		Email:    c.Email,
		Metadata: c.Metadata,
	}
}

func subscriptionFromStripe(s *stripe.Subscription) *ProviderSubscription {
	ps := &ProviderSubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		Metadata:          s.Metadata,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CanceledAt:        s.CanceledAt,
		TrialStart:        s.TrialStart,
		TrialEnd:          s.TrialEnd,
	}
	if s.Customer != nil {
		ps.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		ps.CurrentPeriodStart = item.CurrentPeriodStart
		ps.CurrentPeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			ps.PriceID = item.Price.ID
		}
	}
	return ps
}
