// AngelaMos | 2026
// handler_test.go

package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aguacasa/webapp-template/internal/middleware"
)

// stubAuth injects a fixed user id the way the JWT authenticator would.
func stubAuth(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func testRouter(repo *fakeRepo, provider *fakeProvider) chi.Router {
	svc := testService(repo, provider)
	handler := NewHandler(svc, "Starter")

	r := chi.NewRouter()
	handler.RegisterRoutes(r, stubAuth("user-1"))
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func TestGetPlansIsPublic(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)

	var plans []PlanView
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, "Starter", plans[0].Name)
	assert.True(t, plans[1].Popular)
}

func TestGetSubscriptionNeverSubscribedShowsFreeTier(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/subscription", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, StatusFree, resp.Status)
	assert.Equal(t, "Starter", resp.Plan)
	assert.False(t, resp.IsActive)
}

func TestGetSubscriptionActive(t *testing.T) {
	repo := newFakeRepo()
	router := testRouter(repo, newFakeProvider())

	end := time.Now().Add(30 * 24 * time.Hour)
	subID := "sub_1"
	require.NoError(t, repo.Upsert(context.Background(), &Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: &subID,
		Status:               StatusActive,
		PlanName:             "Pro",
		CurrentPeriodEnd:     &end,
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/subscription", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, StatusActive, resp.Status)
	assert.Equal(t, "Pro", resp.Plan)
	assert.True(t, resp.IsActive)
	require.NotNil(t, resp.DaysUntilRenewal)
}

func TestGetEntitlements(t *testing.T) {
	repo := newFakeRepo()
	router := testRouter(repo, newFakeProvider())

	subID := "sub_1"
	require.NoError(t, repo.Upsert(context.Background(), &Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: &subID,
		Status:               StatusActive,
		PlanName:             "Pro",
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/entitlements", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp struct {
		Plan     string                     `json:"plan"`
		Features []string                   `json:"features"`
		Limits   map[string]json.RawMessage `json:"limits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Pro", resp.Plan)
	assert.Contains(t, resp.Features, "advanced_analytics")
	assert.Equal(t, `"unlimited"`, string(resp.Limits["projects"]))
}

func TestGetEntitlementsFollowPlanNameNotStatus(t *testing.T) {
	repo := newFakeRepo()
	router := testRouter(repo, newFakeProvider())

	subID := "sub_1"
	require.NoError(t, repo.Upsert(context.Background(), &Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: &subID,
		Status:               StatusPastDue,
		PlanName:             "Pro",
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/entitlements", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp struct {
		Plan     string                     `json:"plan"`
		Features []string                   `json:"features"`
		Limits   map[string]json.RawMessage `json:"limits"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	// A past_due record keeps its plan's features until the provider
	// moves it off the plan.
	assert.Equal(t, "Pro", resp.Plan)
	assert.Contains(t, resp.Features, "advanced_analytics")
}

func TestGetEntitlementsNeverSubscribed(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/billing/entitlements", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp EntitlementsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Starter", resp.Plan)
	assert.Contains(t, resp.Features, "basic_analytics")
	assert.NotContains(t, resp.Features, "advanced_analytics")
}

func TestCreateCheckoutValidatesBody(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/checkout",
		strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCheckoutReturnsURL(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/checkout",
		strings.NewReader(`{"price_id":"price_pro","plan_name":"Pro"}`)))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "https://checkout.example/session", resp.URL)
}

func TestCreatePortalWithoutBillingAccount(t *testing.T) {
	router := testRouter(newFakeRepo(), newFakeProvider())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/portal", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.subs["sub_1"] = activeProviderSub()
	router := testRouter(repo, provider)

	subID := "sub_1"
	require.NoError(t, repo.Upsert(context.Background(), &Subscription{
		UserID:               "user-1",
		StripeSubscriptionID: &subID,
		Status:               StatusActive,
		PlanName:             "Pro",
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/billing/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var resp SubscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.True(t, resp.CancelAtPeriodEnd)
	assert.Equal(t, "Canceling at period end", resp.StatusMessage)
}
