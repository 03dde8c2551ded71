// AngelaMos | 2026
// status_test.go

package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]Status{
		"active":             StatusActive,
		"trialing":           StatusTrialing,
		"past_due":           StatusPastDue,
		"canceled":           StatusCanceled,
		"unpaid":             StatusUnpaid,
		"incomplete":         StatusIncomplete,
		"incomplete_expired": StatusIncompleteExpired,
		"paused":             StatusPaused,
	}
	for input, want := range cases {
		assert.Equal(t, want, mapProviderStatus(input), input)
	}
}

func TestMapProviderStatusUnknownFailsClosed(t *testing.T) {
	for _, input := range []string{"", "something_new", "ACTIVE", "trial"} {
		assert.Equal(t, StatusCanceled, mapProviderStatus(input), input)
	}
}

func TestSubscriptionIsActiveStrict(t *testing.T) {
	var nilSub *Subscription
	assert.False(t, nilSub.IsActive())

	assert.True(t, (&Subscription{Status: StatusActive}).IsActive())
	assert.False(t, (&Subscription{Status: StatusPastDue}).IsActive())
	assert.False(t, (&Subscription{Status: StatusCanceled}).IsActive())

	// A trial, valid or expired, is never active on its own.
	future := time.Now().Add(48 * time.Hour)
	assert.False(t, (&Subscription{Status: StatusTrialing, TrialEnd: &future}).IsActive())

	past := time.Now().Add(-time.Hour)
	assert.False(t, (&Subscription{Status: StatusTrialing, TrialEnd: &past}).IsActive())
}

func TestSubscriptionIsPaidPlan(t *testing.T) {
	var nilSub *Subscription
	assert.False(t, nilSub.IsPaidPlan())

	subID := "sub_123"
	assert.True(t, (&Subscription{
		Status:               StatusActive,
		StripeSubscriptionID: &subID,
	}).IsPaidPlan())

	// A valid trial counts as a paid plan even though it is not active.
	future := time.Now().Add(48 * time.Hour)
	assert.True(t, (&Subscription{
		Status:               StatusTrialing,
		TrialEnd:             &future,
		StripeSubscriptionID: &subID,
	}).IsPaidPlan())

	past := time.Now().Add(-time.Hour)
	assert.False(t, (&Subscription{
		Status:               StatusTrialing,
		TrialEnd:             &past,
		StripeSubscriptionID: &subID,
	}).IsPaidPlan())

	assert.False(t, (&Subscription{Status: StatusActive}).IsPaidPlan())
	assert.False(t, (&Subscription{
		Status:               StatusCanceled,
		StripeSubscriptionID: &subID,
	}).IsPaidPlan())
}

func TestStatusMessage(t *testing.T) {
	var nilSub *Subscription
	assert.Equal(t, "Free Plan", nilSub.StatusMessage())

	assert.Equal(t, "Active", (&Subscription{Status: StatusActive}).StatusMessage())
	assert.Equal(t, "Canceling at period end", (&Subscription{
		Status:            StatusActive,
		CancelAtPeriodEnd: true,
	}).StatusMessage())
	assert.Equal(t, "Payment Past Due", (&Subscription{Status: StatusPastDue}).StatusMessage())
	assert.Equal(t, "Unknown", (&Subscription{Status: Status("mystery")}).StatusMessage())
}

func TestDaysUntil(t *testing.T) {
	assert.Nil(t, daysUntil(nil))

	future := time.Now().Add(72*time.Hour + time.Minute)
	got := daysUntil(&future)
	require.NotNil(t, got)
	assert.Equal(t, 4, *got)

	// Expired dates count backwards, not zero.
	past := time.Now().Add(-49 * time.Hour)
	got = daysUntil(&past)
	require.NotNil(t, got)
	assert.Equal(t, -2, *got)
}

func TestPlanDisplayName(t *testing.T) {
	var nilSub *Subscription
	assert.Equal(t, "Starter", nilSub.PlanDisplayName("Starter"))
	assert.Equal(t, "Starter", (&Subscription{}).PlanDisplayName("Starter"))
	assert.Equal(t, "Pro", (&Subscription{PlanName: "Pro"}).PlanDisplayName("Starter"))
}
