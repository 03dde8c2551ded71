// AngelaMos | 2026
// stripe_test.go

package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestCheckoutSessionParamsCarryOwnerMetadata(t *testing.T) {
	params := checkoutSessionParams(CheckoutParams{
		CustomerID: "cus_1",
		PriceID:    "price_pro",
		PlanName:   "Pro",
		UserID:     "user-1",
		SuccessURL: "https://app.example/dashboard?checkout=success",
		CancelURL:  "https://app.example/dashboard?checkout=canceled",
	})

	// Session metadata attributes the checkout-completed event.
	assert.Equal(t, map[string]string{
		"user_id":   "user-1",
		"plan_name": "Pro",
		"price_id":  "price_pro",
	}, params.Metadata)

	assert.Equal(t, "subscription", *params.Mode)
	assert.Equal(t, "cus_1", *params.Customer)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_pro", *params.LineItems[0].Price)
	assert.True(t, *params.AllowPromotionCodes)
	assert.Equal(t, "auto", *params.BillingAddressCollection)

	// No trial, no subscription_data.
	assert.Nil(t, params.SubscriptionData)
}

func TestCheckoutSessionParamsTrialStampsSubscription(t *testing.T) {
	params := checkoutSessionParams(CheckoutParams{
		CustomerID: "cus_1",
		PriceID:    "price_pro",
		PlanName:   "Pro",
		UserID:     "user-1",
		TrialDays:  14,
	})

	require.NotNil(t, params.SubscriptionData)
	assert.Equal(t, int64(14), *params.SubscriptionData.TrialPeriodDays)
	assert.Equal(t, map[string]string{
		"user_id":   "user-1",
		"plan_name": "Pro",
	}, params.SubscriptionData.Metadata)

	// Session metadata is present regardless of trial.
	assert.Equal(t, "user-1", params.Metadata["user_id"])
}

func TestSubscriptionFromStripeReadsItemPeriods(t *testing.T) {
	sub := subscriptionFromStripe(&stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		Metadata: map[string]string{"user_id": "user-1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: 1764547200,
					CurrentPeriodEnd:   1767225600,
					Price:              &stripe.Price{ID: "price_pro"},
				},
			},
		},
	})

	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID)
	assert.Equal(t, int64(1764547200), sub.CurrentPeriodStart)
	assert.Equal(t, int64(1767225600), sub.CurrentPeriodEnd)
}
