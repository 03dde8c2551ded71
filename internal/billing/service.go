// AngelaMos | 2026
// service.go

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aguacasa/webapp-template/internal/core"
)

// ErrUnresolvedOwner marks a provider subscription whose owning user
// cannot be determined. It never crosses the transport boundary.
var ErrUnresolvedOwner = errors.New("subscription owner unresolved")

// UserDirectory resolves account details the billing service needs when
// provisioning provider customers.
type UserDirectory interface {
	EmailByID(ctx context.Context, id string) (string, error)
}

// ServiceConfig carries the billing service's tunables.
type ServiceConfig struct {
	DefaultFreePlan string
	DefaultPaidPlan string
	SiteURL         string
	TrialDays       int
}

// Service owns subscription reconciliation and customer-facing billing
// operations.
type Service struct {
	repo     Repository
	provider Provider
	users    UserDirectory
	features FeatureTable
	cfg      ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a billing Service.
func NewService(
	repo Repository,
	provider Provider,
	users UserDirectory,
	features FeatureTable,
	cfg ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		users:    users,
		features: features,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Features exposes the plan entitlement table.
func (s *Service) Features() FeatureTable {
	return s.features
}

// ReconcileCheckout handles a completed checkout session: it stamps the
// owning user onto the provider subscription, then reconciles it. A
// session without a subscription (one-time payment) is a no-op.
func (s *Service) ReconcileCheckout(ctx context.Context, subscriptionID, userID, planName string) error {
	if subscriptionID == "" {
		s.logger.Info("checkout session has no subscription, skipping")
		return nil
	}

	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("reconciling checkout: %w", err)
	}

	metadata := map[string]string{}
	if userID != "" {
		metadata["user_id"] = userID
	}
	if planName != "" {
		metadata["plan_name"] = planName
	}
	if len(metadata) > 0 {
		if err := s.provider.SetSubscriptionMetadata(ctx, subscriptionID, metadata); err != nil {
			return fmt.Errorf("reconciling checkout: %w", err)
		}
		if sub.Metadata == nil {
			sub.Metadata = map[string]string{}
		}
		for k, v := range metadata {
			sub.Metadata[k] = v
		}
	}

	return s.ReconcileSubscription(ctx, sub)
}

// ReconcileSubscription projects provider subscription state into the
// local row for its owning user. The write is idempotent: replaying the
// same provider state leaves the row unchanged. An unresolvable owner is
// logged and swallowed so the provider does not retry forever.
func (s *Service) ReconcileSubscription(ctx context.Context, psub *ProviderSubscription) error {
	userID, err := s.resolveOwner(ctx, psub)
	if err != nil {
		if errors.Is(err, ErrUnresolvedOwner) {
			s.logger.Warn("subscription has no resolvable owner, skipping",
				slog.String("subscription_id", psub.ID),
				slog.String("customer_id", psub.CustomerID),
			)
			return nil
		}
		return err
	}

	row := &Subscription{
		UserID:               userID,
		StripeCustomerID:     optional(psub.CustomerID),
		StripeSubscriptionID: optional(psub.ID),
		StripePriceID:        optional(psub.PriceID),
		Status:               mapProviderStatus(psub.Status),
		PlanName:             s.planNameFor(psub),
		TrialStart:           epochToTime(psub.TrialStart),
		TrialEnd:             epochToTime(psub.TrialEnd),
		CurrentPeriodStart:   s.epochOrNow(psub.CurrentPeriodStart),
		CurrentPeriodEnd:     s.epochOrNow(psub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    psub.CancelAtPeriodEnd,
		CanceledAt:           epochToTime(psub.CanceledAt),
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("reconciling subscription %s: %w", psub.ID, err)
	}

	s.logger.Info("subscription reconciled",
		slog.String("user_id", userID),
		slog.String("subscription_id", psub.ID),
		slog.String("status", string(row.Status)),
		slog.String("plan", row.PlanName),
	)
	return nil
}

// ReconcileSubscriptionDeleted downgrades the owning user to the free
// tier. The row is kept; provider identifiers and periods are cleared.
func (s *Service) ReconcileSubscriptionDeleted(ctx context.Context, psub *ProviderSubscription) error {
	row, err := s.repo.GetByCustomerID(ctx, psub.CustomerID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("deleted subscription has no local row, skipping",
				slog.String("subscription_id", psub.ID),
				slog.String("customer_id", psub.CustomerID),
			)
			return nil
		}
		return fmt.Errorf("reconciling deleted subscription %s: %w", psub.ID, err)
	}

	canceledAt := s.now()
	if t := epochToTime(psub.CanceledAt); t != nil {
		canceledAt = *t
	}

	if err := s.repo.DowngradeToFree(ctx, row.ID, s.cfg.DefaultFreePlan, canceledAt); err != nil {
		return fmt.Errorf("reconciling deleted subscription %s: %w", psub.ID, err)
	}

	s.logger.Info("subscription downgraded to free",
		slog.String("user_id", row.UserID),
		slog.String("subscription_id", psub.ID),
	)
	return nil
}

// ReconcileInvoice re-fetches the invoice's subscription from the
// provider and reconciles it, so payment outcomes land as whatever
// status the provider settled on. Invoices without a subscription are
// ignored.
func (s *Service) ReconcileInvoice(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return nil
	}

	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("reconciling invoice: %w", err)
	}
	return s.ReconcileSubscription(ctx, sub)
}

// GetSubscription returns the user's subscription row, or nil when the
// user has never subscribed.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// CreateCheckout opens a hosted checkout session for the user, creating
// a provider customer on first use.
func (s *Service) CreateCheckout(ctx context.Context, userID, priceID, planName string) (string, error) {
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	if planName == "" {
		planName = s.cfg.DefaultPaidPlan
	}

	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		PlanName:   planName,
		UserID:     userID,
		TrialDays:  s.cfg.TrialDays,
		SuccessURL: s.cfg.SiteURL + "/dashboard?checkout=success",
		CancelURL:  s.cfg.SiteURL + "/dashboard?checkout=canceled",
	})
	if err != nil {
		return "", fmt.Errorf("creating checkout for user %s: %w", userID, err)
	}
	return url, nil
}

// CreatePortal opens a provider billing portal session for the user.
func (s *Service) CreatePortal(ctx context.Context, userID string) (string, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.NewAppError(core.ErrNotFound, "No billing account found", 404, "NO_BILLING_ACCOUNT")
		}
		return "", err
	}
	if sub.StripeCustomerID == nil {
		return "", core.NewAppError(core.ErrNotFound, "No billing account found", 404, "NO_BILLING_ACCOUNT")
	}

	url, err := s.provider.CreatePortalSession(ctx, *sub.StripeCustomerID, s.cfg.SiteURL+"/dashboard")
	if err != nil {
		return "", fmt.Errorf("creating portal for user %s: %w", userID, err)
	}
	return url, nil
}

// CancelAtPeriodEnd schedules the user's subscription to end at the
// current period boundary. Access continues until then.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID string) (*Subscription, error) {
	return s.setCancellation(ctx, userID, true)
}

// Reactivate clears a pending period-end cancellation.
func (s *Service) Reactivate(ctx context.Context, userID string) (*Subscription, error) {
	return s.setCancellation(ctx, userID, false)
}

func (s *Service) setCancellation(ctx context.Context, userID string, cancel bool) (*Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewAppError(core.ErrNotFound, "No active subscription", 404, "NO_SUBSCRIPTION")
		}
		return nil, err
	}
	if sub.StripeSubscriptionID == nil {
		return nil, core.NewAppError(core.ErrInvalidInput, "No active subscription", 400, "NO_SUBSCRIPTION")
	}

	if _, err := s.provider.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, cancel); err != nil {
		return nil, fmt.Errorf("updating cancellation for user %s: %w", userID, err)
	}

	var canceledAt *time.Time
	if cancel {
		t := s.now()
		canceledAt = &t
	}
	if err := s.repo.SetCancelAtPeriodEnd(ctx, sub.ID, cancel, canceledAt); err != nil {
		return nil, fmt.Errorf("updating cancellation for user %s: %w", userID, err)
	}

	sub.CancelAtPeriodEnd = cancel
	sub.CanceledAt = canceledAt
	return sub, nil
}

// ensureCustomer returns the user's provider customer id, creating the
// customer on first use and recording it on a free-tier row.
func (s *Service) ensureCustomer(ctx context.Context, userID string) (string, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != nil {
		return *sub.StripeCustomerID, nil
	}

	email, err := s.users.EmailByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolving user %s email: %w", userID, err)
	}

	cust, err := s.provider.CreateCustomer(ctx, email, map[string]string{"user_id": userID})
	if err != nil {
		return "", fmt.Errorf("creating billing customer for user %s: %w", userID, err)
	}

	row := &Subscription{
		UserID:           userID,
		StripeCustomerID: &cust.ID,
		Status:           StatusFree,
		PlanName:         s.cfg.DefaultFreePlan,
	}
	if sub != nil {
		row.StripeSubscriptionID = sub.StripeSubscriptionID
		row.StripePriceID = sub.StripePriceID
		row.Status = sub.Status
		row.PlanName = sub.PlanName
		row.TrialStart = sub.TrialStart
		row.TrialEnd = sub.TrialEnd
		row.CurrentPeriodStart = sub.CurrentPeriodStart
		row.CurrentPeriodEnd = sub.CurrentPeriodEnd
		row.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		row.CanceledAt = sub.CanceledAt
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return "", fmt.Errorf("recording billing customer for user %s: %w", userID, err)
	}
	return cust.ID, nil
}

// resolveOwner finds the owning user id: subscription metadata first,
// then the customer's metadata. Returns ErrUnresolvedOwner when neither
// resolves.
func (s *Service) resolveOwner(ctx context.Context, psub *ProviderSubscription) (string, error) {
	if id := psub.Metadata["user_id"]; id != "" {
		return id, nil
	}
	if psub.CustomerID == "" {
		return "", ErrUnresolvedOwner
	}

	cust, err := s.provider.GetCustomer(ctx, psub.CustomerID)
	if err != nil {
		return "", fmt.Errorf("resolving subscription %s owner: %w", psub.ID, err)
	}
	if id := cust.Metadata["user_id"]; id != "" {
		return id, nil
	}
	return "", ErrUnresolvedOwner
}

func (s *Service) planNameFor(psub *ProviderSubscription) string {
	if name := psub.Metadata["plan_name"]; name != "" {
		return name
	}
	return s.cfg.DefaultPaidPlan
}

// epochOrNow converts a unix epoch to a timestamp, substituting the
// current time when the provider omitted the boundary.
func (s *Service) epochOrNow(epoch int64) *time.Time {
	if t := epochToTime(epoch); t != nil {
		return t
	}
	now := s.now()
	return &now
}

func epochToTime(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
