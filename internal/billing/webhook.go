// AngelaMos | 2026
// webhook.go

package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v82/webhook"
)

// maxWebhookBody caps inbound webhook payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler verifies and dispatches Stripe webhook events.
type WebhookHandler struct {
	secret  string
	service *Service
	logger  *slog.Logger
}

// NewWebhookHandler builds the Stripe webhook endpoint handler.
func NewWebhookHandler(secret string, service *Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, service: service, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeWebhookError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.secret == "" {
		h.logger.Error("stripe webhook secret not configured")
		writeWebhookError(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeWebhookError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("stripe webhook signature verification failed", slog.String("error", err.Error()))
		writeWebhookError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ctx := r.Context()

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess eventCheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &sess); err == nil {
			err = h.service.ReconcileCheckout(ctx, sess.subscriptionID(), sess.Metadata["user_id"], sess.Metadata["plan_name"])
		}

	case "customer.subscription.created", "customer.subscription.updated":
		var sub eventSubscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err == nil {
			err = h.service.ReconcileSubscription(ctx, sub.toProvider())
		}

	case "customer.subscription.deleted":
		var sub eventSubscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err == nil {
			err = h.service.ReconcileSubscriptionDeleted(ctx, sub.toProvider())
		}

	case "customer.subscription.trial_will_end":
		var sub eventSubscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err == nil {
			h.logger.Info("subscription trial ending soon",
				slog.String("subscription_id", sub.ID),
				slog.String("customer_id", sub.customerID()),
			)
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv eventInvoice
		if err = json.Unmarshal(event.Data.Raw, &inv); err == nil {
			err = h.service.ReconcileInvoice(ctx, inv.subscriptionID())
		}

	default:
		h.logger.Debug("unhandled stripe event", slog.String("type", string(event.Type)))
	}

	if err != nil {
		h.logger.Error("stripe webhook processing failed",
			slog.String("type", string(event.Type)),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		writeWebhookError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func writeWebhookError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// stripeID accepts a Stripe reference serialized either as a bare id
// string or as an expanded object with an "id" field.
type stripeID string

func (s *stripeID) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*s = stripeID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = stripeID(obj.ID)
	return nil
}

type eventCheckoutSession struct {
	ID           string            `json:"id"`
	Customer     stripeID          `json:"customer"`
	Subscription stripeID          `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

func (s *eventCheckoutSession) subscriptionID() string {
	return string(s.Subscription)
}

type eventSubscription struct {
	ID                 string            `json:"id"`
	Customer           stripeID          `json:"customer"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CanceledAt         int64             `json:"canceled_at"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s *eventSubscription) customerID() string {
	return string(s.Customer)
}

// toProvider flattens the wire shape, preferring top-level period fields
// and falling back to the first subscription item where newer API
// versions put them.
func (s *eventSubscription) toProvider() *ProviderSubscription {
	ps := &ProviderSubscription{
		ID:                 s.ID,
		CustomerID:         s.customerID(),
		Status:             s.Status,
		Metadata:           s.Metadata,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         s.CanceledAt,
		TrialStart:         s.TrialStart,
		TrialEnd:           s.TrialEnd,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
	}
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if ps.CurrentPeriodStart == 0 {
			ps.CurrentPeriodStart = item.CurrentPeriodStart
		}
		if ps.CurrentPeriodEnd == 0 {
			ps.CurrentPeriodEnd = item.CurrentPeriodEnd
		}
		ps.PriceID = item.Price.ID
	}
	return ps
}

type eventInvoice struct {
	ID           string   `json:"id"`
	Customer     stripeID `json:"customer"`
	Subscription stripeID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription stripeID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID handles both the legacy top-level field and the newer
// parent.subscription_details location.
func (i *eventInvoice) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	return string(i.Parent.SubscriptionDetails.Subscription)
}
