// AngelaMos | 2026
// webhook_test.go

package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedRequest(t *testing.T, eventType string, object any) *http.Request {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_test_1","type":%q,"data":{"object":%s}}`,
		eventType, raw,
	))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(signed.Payload)))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func testWebhook(repo *fakeRepo, provider *fakeProvider) *WebhookHandler {
	svc := testService(repo, provider)
	return NewWebhookHandler(testWebhookSecret, svc, svc.logger)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	handler := testWebhook(repo, newFakeProvider())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe",
		strings.NewReader(`{"id":"evt_1","type":"customer.subscription.updated"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid signature")
	// A rejected delivery must leave no trace.
	assert.Empty(t, repo.rows)
}

func TestWebhookMissingSecretReturnsUnavailable(t *testing.T) {
	svc := testService(newFakeRepo(), newFakeProvider())
	handler := NewWebhookHandler("", svc, svc.logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookSubscriptionUpdatedPersistsRow(t *testing.T) {
	repo := newFakeRepo()
	handler := testWebhook(repo, newFakeProvider())

	req := signedRequest(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"customer": "cus_1",
		"status":   "active",
		"metadata": map[string]string{"user_id": "user-1", "plan_name": "Pro"},
		"items": map[string]any{
			"data": []map[string]any{
				{
					"current_period_start": 1764547200,
					"current_period_end":   1767225600,
					"price":                map[string]any{"id": "price_pro"},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	row := repo.rows["user-1"]
	require.NotNil(t, row)
	assert.Equal(t, StatusActive, row.Status)
	assert.Equal(t, "price_pro", *row.StripePriceID)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), *row.CurrentPeriodEnd)
}

func TestWebhookSubscriptionDeletedDowngrades(t *testing.T) {
	repo := newFakeRepo()
	handler := testWebhook(repo, newFakeProvider())

	seed := signedRequest(t, "customer.subscription.created", map[string]any{
		"id":       "sub_1",
		"customer": "cus_1",
		"status":   "active",
		"metadata": map[string]string{"user_id": "user-1", "plan_name": "Pro"},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, seed)
	require.Equal(t, http.StatusOK, rec.Code)

	del := signedRequest(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"customer": "cus_1",
		"status":   "canceled",
	})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, del)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusFree, repo.rows["user-1"].Status)
	assert.Equal(t, "Starter", repo.rows["user-1"].PlanName)
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	provider.subs["sub_1"] = &ProviderSubscription{
		ID:         "sub_1",
		CustomerID: "cus_1",
		Status:     "active",
	}
	handler := testWebhook(repo, provider)

	req := signedRequest(t, "checkout.session.completed", map[string]any{
		"id":           "cs_1",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     map[string]string{"user_id": "user-1", "plan_name": "Pro"},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"user_id":   "user-1",
		"plan_name": "Pro",
	}, provider.metadataCalls["sub_1"])
	require.NotNil(t, repo.rows["user-1"])
	assert.Equal(t, StatusActive, repo.rows["user-1"].Status)
}

func TestWebhookInvoiceSubscriptionUnderParent(t *testing.T) {
	repo := newFakeRepo()
	provider := newFakeProvider()
	psub := activeProviderSub()
	psub.Status = "past_due"
	provider.subs["sub_1"] = psub
	handler := testWebhook(repo, provider)

	req := signedRequest(t, "invoice.payment_failed", map[string]any{
		"id":       "in_1",
		"customer": "cus_1",
		"parent": map[string]any{
			"subscription_details": map[string]any{
				"subscription": "sub_1",
			},
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusPastDue, repo.rows["user-1"].Status)
}

func TestWebhookUnhandledEventIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	handler := testWebhook(repo, newFakeProvider())

	req := signedRequest(t, "customer.created", map[string]any{"id": "cus_1"})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Empty(t, repo.rows)
}

func TestWebhookPersistenceFailureReturnsServerError(t *testing.T) {
	repo := newFakeRepo()
	repo.upsertErr = errors.New("db down")
	handler := testWebhook(repo, newFakeProvider())

	req := signedRequest(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"customer": "cus_1",
		"status":   "active",
		"metadata": map[string]string{"user_id": "user-1"},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "processing failed")
}

func TestWebhookExpandedCustomerObject(t *testing.T) {
	repo := newFakeRepo()
	handler := testWebhook(repo, newFakeProvider())

	req := signedRequest(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"customer": map[string]any{"id": "cus_1"},
		"status":   "trialing",
		"metadata": map[string]string{"user_id": "user-1"},
		"trial_end": time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC).
			Unix(),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	row := repo.rows["user-1"]
	require.NotNil(t, row)
	assert.Equal(t, "cus_1", *row.StripeCustomerID)
	assert.Equal(t, StatusTrialing, row.Status)
}
