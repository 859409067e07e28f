package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/abdul-hamid-achik/clip.cheap/internal/logger"
	"github.com/abdul-hamid-achik/clip.cheap/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v83"
)

var ErrNotConfigured = apperror.New("billing_unavailable", "Billing is not configured on this server", 503)

type Service struct {
	client  *Client
	queries db.Querier
	baseURL string
	now     func() time.Time
}

func NewService(client *Client, queries db.Querier, baseURL string) *Service {
	return &Service{
		client:  client,
		queries: queries,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// WithQuerier returns a copy bound to q, typically a transaction.
func (s *Service) WithQuerier(q db.Querier) *Service {
	cp := *s
	cp.queries = q
	return &cp
}

func (s *Service) IsConfigured() bool {
	return s.client != nil && s.client.IsConfigured()
}

// current returns the owner's subscription, creating the FREE row on first
// use and expiring a paid period that has run out.
func (s *Service) current(ctx context.Context, ownerID uuid.UUID) (db.Subscription, error) {
	pgOwner := pgtype.UUID{Bytes: ownerID, Valid: true}

	if err := s.queries.CreateDefaultSubscription(ctx, db.CreateDefaultSubscriptionParams{
		OwnerID:      pgOwner,
		ExportsLimit: FreeExportsLimit,
	}); err != nil {
		return db.Subscription{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	sub, err := s.queries.GetSubscription(ctx, pgOwner)
	if err != nil {
		return db.Subscription{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	if sub.Status == db.SubscriptionStatusActive && sub.ValidUntil.Valid && sub.ValidUntil.Time.Before(s.now()) {
		expired, err := s.queries.ExpireSubscription(ctx, db.ExpireSubscriptionParams{
			OwnerID:      pgOwner,
			ExportsLimit: FreeExportsLimit,
		})
		switch {
		case err == nil:
			logger.FromContext(ctx).Info("subscription expired",
				"owner_id", ownerID.String(),
				"previous_tier", sub.Tier,
			)
			return expired, nil
		case errors.Is(err, pgx.ErrNoRows):
			// Someone else expired it first.
			return s.queries.GetSubscription(ctx, pgOwner)
		default:
			return db.Subscription{}, fmt.Errorf("failed to expire subscription: %w", err)
		}
	}

	return sub, nil
}

func (s *Service) GetSubscription(ctx context.Context, ownerID uuid.UUID) (*SubscriptionInfo, error) {
	sub, err := s.current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return newSubscriptionInfo(sub), nil
}

// UseExport charges one export against the owner's allowance. The increment
// is a single conditional UPDATE, so concurrent callers can never push usage
// past the limit.
func (s *Service) UseExport(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	sub, err := s.current(ctx, ownerID)
	if err != nil {
		return Usage{}, err
	}

	updated, err := s.queries.ConsumeExport(ctx, db.ConsumeExportParams{
		OwnerID:           pgtype.UUID{Bytes: ownerID, Valid: true},
		UnlimitedSentinel: UnlimitedExports,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordQuotaExceeded(string(sub.Tier))
		return Usage{Allowed: false, Remaining: 0}, nil
	}
	if err != nil {
		return Usage{}, fmt.Errorf("failed to consume export: %w", err)
	}

	metrics.RecordExportByTier(string(updated.Tier))
	if IsUnlimited(updated.ExportsLimit) {
		return Usage{Allowed: true, Remaining: -1}, nil
	}
	return Usage{Allowed: true, Remaining: int(updated.ExportsLimit - updated.ExportsUsed)}, nil
}

// UseExportTx is UseExport against q.
func (s *Service) UseExportTx(ctx context.Context, q db.Querier, ownerID uuid.UUID) (Usage, error) {
	return s.WithQuerier(q).UseExport(ctx, ownerID)
}

// Upgrade moves the owner to tier and starts a fresh period. A zero
// validUntil means the tier never lapses.
func (s *Service) Upgrade(ctx context.Context, ownerID uuid.UUID, tier db.SubscriptionTier, validUntil time.Time) (*SubscriptionInfo, error) {
	if !tier.Valid() {
		return nil, apperror.Validation("unknown tier %q", tier)
	}

	var until pgtype.Timestamptz
	if !validUntil.IsZero() {
		until = pgtype.Timestamptz{Time: validUntil, Valid: true}
	}

	sub, err := s.queries.UpgradeSubscription(ctx, db.UpgradeSubscriptionParams{
		OwnerID:      pgtype.UUID{Bytes: ownerID, Valid: true},
		Tier:         tier,
		ExportsLimit: GetTierLimits(tier).ExportsLimit,
		ValidUntil:   until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade subscription: %w", err)
	}

	logger.FromContext(ctx).Info("subscription changed",
		"owner_id", ownerID.String(),
		"tier", tier,
		"valid_until", validUntil,
	)
	return newSubscriptionInfo(sub), nil
}

// Downgrade returns the owner to FREE.
func (s *Service) Downgrade(ctx context.Context, ownerID uuid.UUID) (*SubscriptionInfo, error) {
	return s.Upgrade(ctx, ownerID, db.SubscriptionTierFree, time.Time{})
}

func (s *Service) CreateCheckoutSession(ctx context.Context, ownerID uuid.UUID, tier db.SubscriptionTier) (string, error) {
	if tier != db.SubscriptionTierCreator && tier != db.SubscriptionTierPro {
		return "", apperror.Validation("tier must be CREATOR or PRO")
	}
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}
	priceID := s.client.PriceID(tier)
	if priceID == "" {
		return "", apperror.Wrap(fmt.Errorf("no price configured for %s", tier), ErrNotConfigured)
	}

	sub, err := s.current(ctx, ownerID)
	if err != nil {
		return "", err
	}

	var customerID string
	if sub.StripeCustomerID != nil && *sub.StripeCustomerID != "" {
		customerID = *sub.StripeCustomerID
	} else {
		customerParams := &stripe.CustomerCreateParams{
			Metadata: map[string]string{
				"owner_id": ownerID.String(),
			},
		}
		customer, err := s.client.StripeClient().V1Customers.Create(ctx, customerParams)
		if err != nil {
			return "", fmt.Errorf("failed to create stripe customer: %w", err)
		}
		customerID = customer.ID

		err = s.queries.SetStripeCustomer(ctx, db.SetStripeCustomerParams{
			OwnerID:          pgtype.UUID{Bytes: ownerID, Valid: true},
			StripeCustomerID: &customerID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to save stripe customer id: %w", err)
		}
	}

	metadata := map[string]string{
		"owner_id": ownerID.String(),
		"tier":     string(tier),
	}
	params := &stripe.CheckoutSessionCreateParams{
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(ownerID.String()),
		Mode:              stripe.String("subscription"),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/billing?success=1"),
		CancelURL:  stripe.String(s.baseURL + "/billing?canceled=1"),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	session, err := s.client.StripeClient().V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return session.URL, nil
}

func (s *Service) HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	ownerStr := session.Metadata["owner_id"]
	if ownerStr == "" {
		ownerStr = session.ClientReferenceID
	}
	ownerID, err := uuid.Parse(ownerStr)
	if err != nil {
		return fmt.Errorf("checkout session %s has no owner: %w", session.ID, err)
	}

	tier, ok := ParseTier(session.Metadata["tier"])
	if !ok || tier == db.SubscriptionTierFree {
		return fmt.Errorf("checkout session %s has invalid tier %q", session.ID, session.Metadata["tier"])
	}

	if _, err := s.Upgrade(ctx, ownerID, tier, s.now().Add(PeriodLength)); err != nil {
		return err
	}

	if session.Customer != nil && session.Customer.ID != "" {
		customerID := session.Customer.ID
		if err := s.queries.SetStripeCustomer(ctx, db.SetStripeCustomerParams{
			OwnerID:          pgtype.UUID{Bytes: ownerID, Valid: true},
			StripeCustomerID: &customerID,
		}); err != nil {
			return fmt.Errorf("failed to save stripe customer id: %w", err)
		}
	}
	return nil
}

// HandleRenewal starts a new period at the current paid tier.
func (s *Service) HandleRenewal(ctx context.Context, customerID string) error {
	sub, err := s.queries.GetSubscriptionByStripeCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to find subscription for customer %s: %w", customerID, err)
	}
	if sub.Tier == db.SubscriptionTierFree {
		return nil
	}
	_, err = s.Upgrade(ctx, uuid.UUID(sub.OwnerID.Bytes), sub.Tier, s.now().Add(PeriodLength))
	return err
}

func (s *Service) HandleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	ownerID, err := s.ownerFromSubscription(ctx, sub)
	if err != nil {
		return err
	}
	_, err = s.Downgrade(ctx, ownerID)
	return err
}

func (s *Service) ownerFromSubscription(ctx context.Context, sub *stripe.Subscription) (uuid.UUID, error) {
	if ownerStr, ok := sub.Metadata["owner_id"]; ok && ownerStr != "" {
		return uuid.Parse(ownerStr)
	}

	if sub.Customer != nil {
		row, err := s.queries.GetSubscriptionByStripeCustomer(ctx, sub.Customer.ID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to find owner by customer id: %w", err)
		}
		return uuid.UUID(row.OwnerID.Bytes), nil
	}

	return uuid.Nil, fmt.Errorf("could not determine owner from subscription")
}
