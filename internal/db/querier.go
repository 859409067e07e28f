package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	ClaimMediaJob(ctx context.Context, arg ClaimMediaJobParams) (MediaJob, error)
	CompleteMediaJob(ctx context.Context, arg CompleteMediaJobParams) (MediaJob, error)
	ConsumeExport(ctx context.Context, arg ConsumeExportParams) (Subscription, error)
	CountActiveMediaJobs(ctx context.Context, arg CountActiveMediaJobsParams) (int64, error)
	CreateDefaultSubscription(ctx context.Context, arg CreateDefaultSubscriptionParams) error
	CreateMediaJob(ctx context.Context, arg CreateMediaJobParams) (MediaJob, error)
	DeleteMediaJob(ctx context.Context, id pgtype.UUID) error
	ExpireSubscription(ctx context.Context, arg ExpireSubscriptionParams) (Subscription, error)
	FailMediaJob(ctx context.Context, arg FailMediaJobParams) (MediaJob, error)
	FailOrphanedStreams(ctx context.Context, arg FailOrphanedStreamsParams) ([]pgtype.UUID, error)
	FailStaleRunningJobs(ctx context.Context, arg FailStaleRunningJobsParams) ([]pgtype.UUID, error)
	GetMediaJob(ctx context.Context, id pgtype.UUID) (MediaJob, error)
	GetMediaJobForOwner(ctx context.Context, arg GetMediaJobForOwnerParams) (MediaJob, error)
	GetSubscription(ctx context.Context, ownerID pgtype.UUID) (Subscription, error)
	GetSubscriptionByStripeCustomer(ctx context.Context, stripeCustomerID string) (Subscription, error)
	ListExpiredMediaJobs(ctx context.Context, arg ListExpiredMediaJobsParams) ([]MediaJob, error)
	ListMediaJobsForOwner(ctx context.Context, arg ListMediaJobsForOwnerParams) ([]MediaJob, error)
	ListStalePendingJobs(ctx context.Context, arg ListStalePendingJobsParams) ([]MediaJob, error)
	LockOwnerJobs(ctx context.Context, key string) error
	SetStripeCustomer(ctx context.Context, arg SetStripeCustomerParams) error
	UpdateMediaJobProgress(ctx context.Context, arg UpdateMediaJobProgressParams) (int64, error)
	UpgradeSubscription(ctx context.Context, arg UpgradeSubscriptionParams) (Subscription, error)
}

var _ Querier = (*Queries)(nil)
