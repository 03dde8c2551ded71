// AngelaMos | 2026
// service_test.go

package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aguacasa/webapp-template/internal/core"
)

type fakeRepo struct {
	rows      map[string]*Subscription
	upsertErr error
	upserts   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*Subscription{}}
}

func (r *fakeRepo) GetByUserID(_ context.Context, userID string) (*Subscription, error) {
	if row, ok := r.rows[userID]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, core.ErrNotFound
}

func (r *fakeRepo) GetByCustomerID(_ context.Context, customerID string) (*Subscription, error) {
	for _, row := range r.rows {
		if row.StripeCustomerID != nil && *row.StripeCustomerID == customerID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *fakeRepo) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Subscription, error) {
	for _, row := range r.rows {
		if row.StripeSubscriptionID != nil && *row.StripeSubscriptionID == subscriptionID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *fakeRepo) Upsert(_ context.Context, sub *Subscription) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	if existing, ok := r.rows[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = fmt.Sprintf("row_%d", len(r.rows)+1)
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	copied := *sub
	r.rows[sub.UserID] = &copied
	return nil
}

func (r *fakeRepo) DowngradeToFree(_ context.Context, id, planName string, canceledAt time.Time) error {
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = StatusFree
			row.PlanName = planName
			row.StripeSubscriptionID = nil
			row.StripePriceID = nil
			row.TrialStart = nil
			row.TrialEnd = nil
			row.CurrentPeriodStart = nil
			row.CurrentPeriodEnd = nil
			row.CancelAtPeriodEnd = false
			row.CanceledAt = &canceledAt
			return nil
		}
	}
	return core.ErrNotFound
}

func (r *fakeRepo) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool, canceledAt *time.Time) error {
	for _, row := range r.rows {
		if row.ID == id {
			row.CancelAtPeriodEnd = cancel
			row.CanceledAt = canceledAt
			return nil
		}
	}
	return core.ErrNotFound
}

type fakeProvider struct {
	subs          map[string]*ProviderSubscription
	customers     map[string]*Customer
	metadataCalls map[string]map[string]string
	cancelCalls   []bool
	checkoutURL   string
	portalURL     string
	created       []*Customer
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subs:          map[string]*ProviderSubscription{},
		customers:     map[string]*Customer{},
		metadataCalls: map[string]map[string]string{},
		checkoutURL:   "https://checkout.example/session",
		portalURL:     "https://portal.example/session",
	}
}

func (p *fakeProvider) CreateCustomer(_ context.Context, email string, metadata map[string]string) (*Customer, error) {
	cust := &Customer{
		ID:       fmt.Sprintf("cus_fake_%d", len(p.created)+1),
		Email:    email,
		Metadata: metadata,
	}
	p.created = append(p.created, cust)
	p.customers[cust.ID] = cust
	return cust, nil
}

func (p *fakeProvider) GetCustomer(_ context.Context, customerID string) (*Customer, error) {
	if cust, ok := p.customers[customerID]; ok {
		return cust, nil
	}
	return nil, errors.New("no such customer")
}

func (p *fakeProvider) GetSubscription(_ context.Context, subscriptionID string) (*ProviderSubscription, error) {
	if sub, ok := p.subs[subscriptionID]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, errors.New("no such subscription")
}

func (p *fakeProvider) SetSubscriptionMetadata(_ context.Context, subscriptionID string, metadata map[string]string) error {
	p.metadataCalls[subscriptionID] = metadata
	if sub, ok := p.subs[subscriptionID]; ok {
		if sub.Metadata == nil {
			sub.Metadata = map[string]string{}
		}
		for k, v := range metadata {
			sub.Metadata[k] = v
		}
	}
	return nil
}

func (p *fakeProvider) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) (*ProviderSubscription, error) {
	p.cancelCalls = append(p.cancelCalls, cancel)
	sub, ok := p.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	sub.CancelAtPeriodEnd = cancel
	copied := *sub
	return &copied, nil
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, _ CheckoutParams) (string, error) {
	return p.checkoutURL, nil
}

func (p *fakeProvider) CreatePortalSession(_ context.Context, _, _ string) (string, error) {
	return p.portalURL, nil
}

type fakeDirectory map[string]string

func (d fakeDirectory) EmailByID(_ context.Context, id string) (string, error) {
	if email, ok := d[id]; ok {
		return email, nil
	}
	return "", core.ErrNotFound
}

func testService(repo *fakeRepo, provider *fakeProvider) *Service {
	svc := NewService(repo, provider, fakeDirectory{"user-1": "one@example.com"},
		DefaultFeatureTable(),
		ServiceConfig{
			DefaultFreePlan: "Starter",
			DefaultPaidPlan: "Pro",
			SiteURL:         "https://app.example",
			TrialDays:       14,
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func activeProviderSub() *ProviderSubscription {
	return &ProviderSubscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "active",
		PriceID:            "price_pro",
		Metadata:           map[string]string{"user_id": "user-1", "plan_name": "Pro"},
		CurrentPeriodStart: 1764547200,
		CurrentPeriodEnd:   1767225600,
	}
}

func TestReconcileSubscriptionCreatesRow(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())

	require.NoError(t, svc.ReconcileSubscription(context.Background(), activeProviderSub()))

	row := repo.rows["user-1"]
	require.NotNil(t, row)
	assert.Equal(t, StatusActive, row.Status)
	assert.Equal(t, "Pro", row.PlanName)
	assert.Equal(t, "cus_1", *row.StripeCustomerID)
	assert.Equal(t, "sub_1", *row.StripeSubscriptionID)
	assert.Equal(t, "price_pro", *row.StripePriceID)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), *row.CurrentPeriodEnd)
}

func TestReconcileSubscriptionIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())
	ctx := context.Background()

	require.NoError(t, svc.ReconcileSubscription(ctx, activeProviderSub()))
	first := *repo.rows["user-1"]

	// Replaying the same provider state must not change the row.
	require.NoError(t, svc.ReconcileSubscription(ctx, activeProviderSub()))
	second := *repo.rows["user-1"]

	assert.Equal(t, 2, repo.upserts)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.PlanName, second.PlanName)
	assert.Equal(t, first.CurrentPeriodStart, second.CurrentPeriodStart)
	assert.Equal(t, first.CurrentPeriodEnd, second.CurrentPeriodEnd)
	assert.Len(t, repo.rows, 1)
}

func TestReconcileSubscriptionResolvesOwnerFromCustomer(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.customers["cus_1"] = &Customer{
		ID:       "cus_1",
		Metadata: map[string]string{"user_id": "user-1"},
	}
	svc := testService(repo, provider)

	psub := activeProviderSub()
	psub.Metadata = nil

	require.NoError(t, svc.ReconcileSubscription(context.Background(), psub))
	require.NotNil(t, repo.rows["user-1"])
	// Plan falls back to the default paid plan without metadata.
	assert.Equal(t, "Pro", repo.rows["user-1"].PlanName)
}

func TestReconcileSubscriptionUnresolvedOwnerIsSwallowed(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.customers["cus_1"] = &Customer{ID: "cus_1"}
	svc := testService(repo, provider)

	psub := activeProviderSub()
	psub.Metadata = nil

	require.NoError(t, svc.ReconcileSubscription(context.Background(), psub))
	assert.Empty(t, repo.rows)
}

func TestReconcilePastDueProjection(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())

	psub := activeProviderSub()
	psub.Status = "past_due"
	psub.CurrentPeriodEnd = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	require.NoError(t, svc.ReconcileSubscription(context.Background(), psub))

	row := repo.rows["user-1"]
	assert.Equal(t, StatusPastDue, row.Status)
	assert.Equal(t, "Payment Past Due", row.StatusMessage())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *row.CurrentPeriodEnd)
	assert.False(t, row.IsActive())
}

func TestReconcileSubscriptionUnknownStatusFailsClosed(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())

	psub := activeProviderSub()
	psub.Status = "brand_new_status"

	require.NoError(t, svc.ReconcileSubscription(context.Background(), psub))
	assert.Equal(t, StatusCanceled, repo.rows["user-1"].Status)
}

func TestReconcileSubscriptionMissingPeriodsDefaultToNow(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())

	psub := activeProviderSub()
	psub.CurrentPeriodStart = 0
	psub.CurrentPeriodEnd = 0

	require.NoError(t, svc.ReconcileSubscription(context.Background(), psub))

	row := repo.rows["user-1"]
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, *row.CurrentPeriodStart)
	assert.Equal(t, want, *row.CurrentPeriodEnd)
}

func TestReconcileSubscriptionPersistenceFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	repo.upsertErr = errors.New("db down")
	svc := testService(repo, newFakeProvider())

	err := svc.ReconcileSubscription(context.Background(), activeProviderSub())
	require.Error(t, err)
}

func TestReconcileCheckoutStampsMetadata(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.subs["sub_1"] = &ProviderSubscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     "trialing",
		TrialEnd:   time.Now().Add(14 * 24 * time.Hour).Unix(),
	}
	svc := testService(repo, provider)

	require.NoError(t, svc.ReconcileCheckout(context.Background(), "sub_1", "user-1", "Pro"))

	assert.Equal(t, map[string]string{
		"user_id":   "user-1",
		"plan_name": "Pro",
	}, provider.metadataCalls["sub_1"])

	row := repo.rows["user-1"]
	require.NotNil(t, row)
	assert.Equal(t, StatusTrialing, row.Status)
	assert.Equal(t, "Pro", row.PlanName)
}

func TestReconcileCheckoutWithoutSubscriptionIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := testService(repo, provider)

	require.NoError(t, svc.ReconcileCheckout(context.Background(), "", "user-1", "Pro"))
	assert.Empty(t, repo.rows)
	assert.Empty(t, provider.metadataCalls)
}

func TestReconcileSubscriptionDeletedDowngradesToFree(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())
	ctx := context.Background()

	require.NoError(t, svc.ReconcileSubscription(ctx, activeProviderSub()))
	require.NoError(t, svc.ReconcileSubscriptionDeleted(ctx, &ProviderSubscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     "canceled",
	}))

	row := repo.rows["user-1"]
	assert.Equal(t, StatusFree, row.Status)
	assert.Equal(t, "Starter", row.PlanName)
	assert.Nil(t, row.StripeSubscriptionID)
	assert.Nil(t, row.CurrentPeriodEnd)
	assert.False(t, row.CancelAtPeriodEnd)
	require.NotNil(t, row.CanceledAt)
	// Customer id survives for future checkouts.
	assert.Equal(t, "cus_1", *row.StripeCustomerID)
}

func TestReconcileSubscriptionDeletedUnknownCustomerIsSwallowed(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo, newFakeProvider())

	require.NoError(t, svc.ReconcileSubscriptionDeleted(context.Background(), &ProviderSubscription{
		ID:         "sub_x",
		CustomerID: "cus_unknown",
	}))
}

func TestReconcileInvoiceRefetchesSubscription(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	psub := activeProviderSub()
	psub.Status = "past_due"
	provider.subs["sub_1"] = psub
	svc := testService(repo, provider)

	require.NoError(t, svc.ReconcileInvoice(context.Background(), "sub_1"))
	assert.Equal(t, StatusPastDue, repo.rows["user-1"].Status)

	// Invoices without a subscription are ignored.
	require.NoError(t, svc.ReconcileInvoice(context.Background(), ""))
}

func TestGetSubscriptionMissingRowReturnsNil(t *testing.T) {
	svc := testService(newFakeRepo(), newFakeProvider())

	sub, err := svc.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestCreateCheckoutProvisionsCustomerOnce(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	svc := testService(repo, provider)
	ctx := context.Background()

	url, err := svc.CreateCheckout(ctx, "user-1", "price_pro", "Pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", url)
	require.Len(t, provider.created, 1)
	assert.Equal(t, "one@example.com", provider.created[0].Email)

	row := repo.rows["user-1"]
	require.NotNil(t, row)
	assert.Equal(t, StatusFree, row.Status)
	require.NotNil(t, row.StripeCustomerID)

	_, err = svc.CreateCheckout(ctx, "user-1", "price_pro", "Pro")
	require.NoError(t, err)
	assert.Len(t, provider.created, 1)
}

func TestCreatePortalWithoutCustomerFails(t *testing.T) {
	svc := testService(newFakeRepo(), newFakeProvider())

	_, err := svc.CreatePortal(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestCancelAndReactivate(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.subs["sub_1"] = activeProviderSub()
	svc := testService(repo, provider)
	ctx := context.Background()

	require.NoError(t, svc.ReconcileSubscription(ctx, activeProviderSub()))

	sub, err := svc.CancelAtPeriodEnd(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, []bool{true}, provider.cancelCalls)
	assert.True(t, repo.rows["user-1"].CancelAtPeriodEnd)

	sub, err = svc.Reactivate(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Nil(t, sub.CanceledAt)
	assert.False(t, repo.rows["user-1"].CancelAtPeriodEnd)
}

func TestCancelWithoutSubscriptionFails(t *testing.T) {
	svc := testService(newFakeRepo(), newFakeProvider())

	_, err := svc.CancelAtPeriodEnd(context.Background(), "user-1")
	require.Error(t, err)
}
