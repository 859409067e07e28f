package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

type JobKind string

const (
	JobKindDownload JobKind = "download"
	JobKindExport   JobKind = "export"
	JobKindLoop     JobKind = "loop"
	JobKindReaction JobKind = "reaction"
	JobKindStream   JobKind = "stream"
)

func (e *JobKind) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = JobKind(s)
	case string:
		*e = JobKind(s)
	default:
		return fmt.Errorf("unsupported scan type for JobKind: %T", src)
	}
	return nil
}

func (e JobKind) Valid() bool {
	switch e {
	case JobKindDownload,
		JobKindExport,
		JobKindLoop,
		JobKindReaction,
		JobKindStream:
		return true
	}
	return false
}

func AllJobKindValues() []JobKind {
	return []JobKind{
		JobKindDownload,
		JobKindExport,
		JobKindLoop,
		JobKindReaction,
		JobKindStream,
	}
}

type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusQueued      JobStatus = "QUEUED"
	JobStatusDownloading JobStatus = "DOWNLOADING"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusStarting    JobStatus = "STARTING"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusFailed      JobStatus = "FAILED"
	JobStatusEnded       JobStatus = "ENDED"
)

func (e *JobStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = JobStatus(s)
	case string:
		*e = JobStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for JobStatus: %T", src)
	}
	return nil
}

func (e JobStatus) Valid() bool {
	switch e {
	case JobStatusPending,
		JobStatusQueued,
		JobStatusDownloading,
		JobStatusProcessing,
		JobStatusStarting,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusEnded:
		return true
	}
	return false
}

type SubscriptionTier string

const (
	SubscriptionTierFree    SubscriptionTier = "FREE"
	SubscriptionTierCreator SubscriptionTier = "CREATOR"
	SubscriptionTierPro     SubscriptionTier = "PRO"
)

func (e *SubscriptionTier) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = SubscriptionTier(s)
	case string:
		*e = SubscriptionTier(s)
	default:
		return fmt.Errorf("unsupported scan type for SubscriptionTier: %T", src)
	}
	return nil
}

func (e SubscriptionTier) Valid() bool {
	switch e {
	case SubscriptionTierFree,
		SubscriptionTierCreator,
		SubscriptionTierPro:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired SubscriptionStatus = "EXPIRED"
)

func (e *SubscriptionStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = SubscriptionStatus(s)
	case string:
		*e = SubscriptionStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for SubscriptionStatus: %T", src)
	}
	return nil
}

type MediaJob struct {
	ID             pgtype.UUID        `json:"id"`
	OwnerID        pgtype.UUID        `json:"owner_id"`
	Kind           JobKind            `json:"kind"`
	Status         JobStatus          `json:"status"`
	Params         []byte             `json:"params"`
	Platform       *string            `json:"platform"`
	Progress       int32              `json:"progress"`
	OutputLocation *string            `json:"output_location"`
	ErrorMessage   *string            `json:"error_message"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type Subscription struct {
	OwnerID          pgtype.UUID        `json:"owner_id"`
	Tier             SubscriptionTier   `json:"tier"`
	Status           SubscriptionStatus `json:"status"`
	ExportsUsed      int32              `json:"exports_used"`
	ExportsLimit     int32              `json:"exports_limit"`
	ValidUntil       pgtype.Timestamptz `json:"valid_until"`
	StripeCustomerID *string            `json:"stripe_customer_id"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}
