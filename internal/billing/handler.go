// AngelaMos | 2026
// handler.go

package billing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aguacasa/webapp-template/internal/core"
	"github.com/aguacasa/webapp-template/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	freePlan  string
}

func NewHandler(service *Service, freePlan string) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		freePlan:  freePlan,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/billing", func(r chi.Router) {
		r.Get("/plans", h.GetPlans)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Get("/subscription", h.GetSubscription)
			r.Get("/entitlements", h.GetEntitlements)
			r.Post("/checkout", h.CreateCheckout)
			r.Post("/portal", h.CreatePortal)
			r.Post("/cancel", h.Cancel)
			r.Post("/reactivate", h.Reactivate)
		})
	})
}

// GetPlans returns the public pricing catalog.
func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	core.OK(w, DefaultPlans())
}

// GetSubscription returns the caller's subscription state. Users who
// have never subscribed see the free tier.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.GetSubscription(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, h.freePlan))
}

// GetEntitlements returns the features and limits of the caller's plan.
func (h *Handler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.GetSubscription(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	// Access follows the stored plan name alone; billing state is the
	// provider's concern and shows up via the subscription endpoint.
	plan := sub.PlanDisplayName(h.freePlan)
	access := h.service.Features().access(plan)

	core.OK(w, EntitlementsResponse{
		Plan:     plan,
		Features: access.Features,
		Limits:   access.Limits,
	})
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	url, err := h.service.CreateCheckout(r.Context(), userID, req.PriceID, req.PlanName)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, CheckoutResponse{URL: url})
}

func (h *Handler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	url, err := h.service.CreatePortal(r.Context(), userID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, PortalResponse{URL: url})
}

// Cancel schedules the caller's subscription to end at the current
// period boundary.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.CancelAtPeriodEnd(r.Context(), userID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, h.freePlan))
}

// Reactivate clears a pending cancellation.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sub, err := h.service.Reactivate(r.Context(), userID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToSubscriptionResponse(sub, h.freePlan))
}
