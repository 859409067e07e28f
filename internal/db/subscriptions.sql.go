package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const subscriptionColumns = `owner_id, tier, status, exports_used, exports_limit, valid_until, stripe_customer_id, created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (Subscription, error) {
	var i Subscription
	err := row.Scan(
		&i.OwnerID,
		&i.Tier,
		&i.Status,
		&i.ExportsUsed,
		&i.ExportsLimit,
		&i.ValidUntil,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getSubscription = `-- name: GetSubscription :one
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE owner_id = $1`

func (q *Queries) GetSubscription(ctx context.Context, ownerID pgtype.UUID) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscription, ownerID)
	return scanSubscription(row)
}

const getSubscriptionByStripeCustomer = `-- name: GetSubscriptionByStripeCustomer :one
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE stripe_customer_id = $1`

func (q *Queries) GetSubscriptionByStripeCustomer(ctx context.Context, stripeCustomerID string) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByStripeCustomer, stripeCustomerID)
	return scanSubscription(row)
}

const createDefaultSubscription = `-- name: CreateDefaultSubscription :exec
INSERT INTO subscriptions (owner_id, tier, status, exports_limit)
VALUES ($1, 'FREE', 'ACTIVE', $2)
ON CONFLICT (owner_id) DO NOTHING`

type CreateDefaultSubscriptionParams struct {
	OwnerID      pgtype.UUID `json:"owner_id"`
	ExportsLimit int32       `json:"exports_limit"`
}

func (q *Queries) CreateDefaultSubscription(ctx context.Context, arg CreateDefaultSubscriptionParams) error {
	_, err := q.db.Exec(ctx, createDefaultSubscription, arg.OwnerID, arg.ExportsLimit)
	return err
}

const expireSubscription = `-- name: ExpireSubscription :one
UPDATE subscriptions
SET tier = 'FREE',
    status = 'EXPIRED',
    exports_limit = $2,
    exports_used = LEAST(exports_used, $2),
    updated_at = now()
WHERE owner_id = $1
  AND status = 'ACTIVE'
  AND valid_until IS NOT NULL
  AND valid_until < now()
RETURNING ` + subscriptionColumns

type ExpireSubscriptionParams struct {
	OwnerID      pgtype.UUID `json:"owner_id"`
	ExportsLimit int32       `json:"exports_limit"`
}

func (q *Queries) ExpireSubscription(ctx context.Context, arg ExpireSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, expireSubscription, arg.OwnerID, arg.ExportsLimit)
	return scanSubscription(row)
}

const consumeExport = `-- name: ConsumeExport :one
UPDATE subscriptions
SET exports_used = exports_used + 1, updated_at = now()
WHERE owner_id = $1
  AND (exports_limit >= $2 OR exports_used < exports_limit)
RETURNING ` + subscriptionColumns

type ConsumeExportParams struct {
	OwnerID           pgtype.UUID `json:"owner_id"`
	UnlimitedSentinel int32       `json:"unlimited_sentinel"`
}

// ConsumeExport increments usage only when the subscription has room left.
// pgx.ErrNoRows means the quota is exhausted (or the row does not exist).
func (q *Queries) ConsumeExport(ctx context.Context, arg ConsumeExportParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, consumeExport, arg.OwnerID, arg.UnlimitedSentinel)
	return scanSubscription(row)
}

const upgradeSubscription = `-- name: UpgradeSubscription :one
INSERT INTO subscriptions (owner_id, tier, status, exports_used, exports_limit, valid_until)
VALUES ($1, $2, 'ACTIVE', 0, $3, $4)
ON CONFLICT (owner_id) DO UPDATE
SET tier = EXCLUDED.tier,
    status = 'ACTIVE',
    exports_used = 0,
    exports_limit = EXCLUDED.exports_limit,
    valid_until = EXCLUDED.valid_until,
    updated_at = now()
RETURNING ` + subscriptionColumns

type UpgradeSubscriptionParams struct {
	OwnerID      pgtype.UUID        `json:"owner_id"`
	Tier         SubscriptionTier   `json:"tier"`
	ExportsLimit int32              `json:"exports_limit"`
	ValidUntil   pgtype.Timestamptz `json:"valid_until"`
}

func (q *Queries) UpgradeSubscription(ctx context.Context, arg UpgradeSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, upgradeSubscription,
		arg.OwnerID,
		arg.Tier,
		arg.ExportsLimit,
		arg.ValidUntil,
	)
	return scanSubscription(row)
}

const setStripeCustomer = `-- name: SetStripeCustomer :exec
UPDATE subscriptions
SET stripe_customer_id = $2, updated_at = now()
WHERE owner_id = $1`

type SetStripeCustomerParams struct {
	OwnerID          pgtype.UUID `json:"owner_id"`
	StripeCustomerID *string     `json:"stripe_customer_id"`
}

func (q *Queries) SetStripeCustomer(ctx context.Context, arg SetStripeCustomerParams) error {
	_, err := q.db.Exec(ctx, setStripeCustomer, arg.OwnerID, arg.StripeCustomerID)
	return err
}
