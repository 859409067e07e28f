package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// MemoryStore is an in-process Store with the same guards as the SQL
// queries. It backs unit tests and local experiments.
type MemoryStore struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	jobs          map[pgtype.UUID]MediaJob
	subscriptions map[pgtype.UUID]Subscription
	seq           time.Duration

	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:          make(map[pgtype.UUID]MediaJob),
		subscriptions: make(map[pgtype.UUID]Subscription),
		Now:           time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// ExecTx serializes transactions and restores the previous state when fn fails.
func (m *MemoryStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	jobs := make(map[pgtype.UUID]MediaJob, len(m.jobs))
	for k, v := range m.jobs {
		jobs[k] = v
	}
	subs := make(map[pgtype.UUID]Subscription, len(m.subscriptions))
	for k, v := range m.subscriptions {
		subs[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.jobs = jobs
		m.subscriptions = subs
		m.mu.Unlock()
		return err
	}
	return nil
}

// Job returns a stored job without owner scoping.
func (m *MemoryStore) Job(id pgtype.UUID) (MediaJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// JobCount returns the number of stored jobs.
func (m *MemoryStore) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// PutJob stores j as-is, overwriting any job with the same id.
func (m *MemoryStore) PutJob(j MediaJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
}

// PutSubscription stores s as-is.
func (m *MemoryStore) PutSubscription(s Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.OwnerID] = s
}

func (m *MemoryStore) now() pgtype.Timestamptz {
	// Strictly increasing timestamps keep newest-first ordering stable.
	m.seq += time.Microsecond
	return pgtype.Timestamptz{Time: m.Now().Add(m.seq), Valid: true}
}

func isOpen(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusQueued, JobStatusDownloading, JobStatusProcessing, JobStatusStarting:
		return true
	}
	return false
}

func isRunning(s JobStatus) bool {
	switch s {
	case JobStatusDownloading, JobStatusProcessing, JobStatusStarting:
		return true
	}
	return false
}

func isClosed(s JobStatus) bool {
	return !isOpen(s)
}

func (m *MemoryStore) CreateMediaJob(ctx context.Context, arg CreateMediaJobParams) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	j := MediaJob{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		OwnerID:   arg.OwnerID,
		Kind:      arg.Kind,
		Status:    arg.Status,
		Params:    arg.Params,
		Platform:  arg.Platform,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *MemoryStore) GetMediaJob(ctx context.Context, id pgtype.UUID) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return MediaJob{}, pgx.ErrNoRows
	}
	return j, nil
}

func (m *MemoryStore) GetMediaJobForOwner(ctx context.Context, arg GetMediaJobForOwnerParams) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[arg.ID]
	if !ok || j.OwnerID != arg.OwnerID {
		return MediaJob{}, pgx.ErrNoRows
	}
	return j, nil
}

func (m *MemoryStore) ListMediaJobsForOwner(ctx context.Context, arg ListMediaJobsForOwnerParams) ([]MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []MediaJob{}
	for _, j := range m.jobs {
		if j.OwnerID == arg.OwnerID && j.Kind == arg.Kind {
			items = append(items, j)
		}
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].CreatedAt.Time.After(items[b].CreatedAt.Time)
	})
	if arg.Limit >= 0 && len(items) > int(arg.Limit) {
		items = items[:arg.Limit]
	}
	return items, nil
}

func (m *MemoryStore) CountActiveMediaJobs(ctx context.Context, arg CountActiveMediaJobsParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, j := range m.jobs {
		if j.OwnerID == arg.OwnerID && j.Kind == arg.Kind && isOpen(j.Status) {
			n++
		}
	}
	return n, nil
}

// LockOwnerJobs is a no-op: ExecTx already serializes transactions.
func (m *MemoryStore) LockOwnerJobs(ctx context.Context, key string) error {
	return nil
}

func (m *MemoryStore) ClaimMediaJob(ctx context.Context, arg ClaimMediaJobParams) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[arg.ID]
	if !ok || j.Status != arg.From {
		return MediaJob{}, pgx.ErrNoRows
	}
	now := m.now()
	j.Status = arg.To
	j.StartedAt = now
	j.UpdatedAt = now
	m.jobs[j.ID] = j
	return j, nil
}

func (m *MemoryStore) UpdateMediaJobProgress(ctx context.Context, arg UpdateMediaJobProgressParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[arg.ID]
	if !ok || !isRunning(j.Status) {
		return 0, nil
	}
	if arg.Progress > j.Progress {
		j.Progress = arg.Progress
	}
	j.UpdatedAt = m.now()
	m.jobs[j.ID] = j
	return 1, nil
}

func (m *MemoryStore) CompleteMediaJob(ctx context.Context, arg CompleteMediaJobParams) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[arg.ID]
	if !ok || j.Status != arg.From {
		return MediaJob{}, pgx.ErrNoRows
	}
	now := m.now()
	location := arg.OutputLocation
	j.Status = arg.To
	j.OutputLocation = &location
	j.Progress = 100
	j.CompletedAt = now
	j.UpdatedAt = now
	m.jobs[j.ID] = j
	return j, nil
}

func (m *MemoryStore) FailMediaJob(ctx context.Context, arg FailMediaJobParams) (MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[arg.ID]
	if !ok || !isRunning(j.Status) {
		return MediaJob{}, pgx.ErrNoRows
	}
	now := m.now()
	msg := arg.ErrorMessage
	j.Status = JobStatusFailed
	j.ErrorMessage = &msg
	j.CompletedAt = now
	j.UpdatedAt = now
	m.jobs[j.ID] = j
	return j, nil
}

func (m *MemoryStore) ListStalePendingJobs(ctx context.Context, arg ListStalePendingJobsParams) ([]MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []MediaJob{}
	for _, j := range m.jobs {
		if (j.Status == JobStatusPending || j.Status == JobStatusQueued) &&
			j.Kind != JobKindStream &&
			j.CreatedAt.Time.Before(arg.Before.Time) {
			items = append(items, j)
		}
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].CreatedAt.Time.Before(items[b].CreatedAt.Time)
	})
	if len(items) > int(arg.Limit) {
		items = items[:arg.Limit]
	}
	return items, nil
}

func (m *MemoryStore) failWhere(msg string, match func(MediaJob) bool) []pgtype.UUID {
	ids := []pgtype.UUID{}
	now := m.now()
	for id, j := range m.jobs {
		if !match(j) {
			continue
		}
		text := msg
		j.Status = JobStatusFailed
		j.ErrorMessage = &text
		j.CompletedAt = now
		j.UpdatedAt = now
		m.jobs[id] = j
		ids = append(ids, id)
	}
	return ids
}

func (m *MemoryStore) FailStaleRunningJobs(ctx context.Context, arg FailStaleRunningJobsParams) ([]pgtype.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.failWhere(arg.ErrorMessage, func(j MediaJob) bool {
		return (j.Status == JobStatusDownloading || j.Status == JobStatusProcessing) &&
			j.StartedAt.Valid && j.StartedAt.Time.Before(arg.Before.Time)
	}), nil
}

func (m *MemoryStore) FailOrphanedStreams(ctx context.Context, arg FailOrphanedStreamsParams) ([]pgtype.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.failWhere(arg.ErrorMessage, func(j MediaJob) bool {
		return j.Kind == JobKindStream && j.Status == JobStatusStarting &&
			j.StartedAt.Valid && j.StartedAt.Time.Before(arg.Before.Time)
	}), nil
}

func (m *MemoryStore) ListExpiredMediaJobs(ctx context.Context, arg ListExpiredMediaJobsParams) ([]MediaJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []MediaJob{}
	for _, j := range m.jobs {
		if isClosed(j.Status) && j.CompletedAt.Valid && j.CompletedAt.Time.Before(arg.Before.Time) {
			items = append(items, j)
		}
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].CompletedAt.Time.Before(items[b].CompletedAt.Time)
	})
	if len(items) > int(arg.Limit) {
		items = items[:arg.Limit]
	}
	return items, nil
}

func (m *MemoryStore) DeleteMediaJob(ctx context.Context, id pgtype.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jobs[id]; ok && isClosed(j.Status) {
		delete(m.jobs, id)
	}
	return nil
}

func (m *MemoryStore) GetSubscription(ctx context.Context, ownerID pgtype.UUID) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[ownerID]
	if !ok {
		return Subscription{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *MemoryStore) GetSubscriptionByStripeCustomer(ctx context.Context, stripeCustomerID string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.subscriptions {
		if s.StripeCustomerID != nil && *s.StripeCustomerID == stripeCustomerID {
			return s, nil
		}
	}
	return Subscription{}, pgx.ErrNoRows
}

func (m *MemoryStore) CreateDefaultSubscription(ctx context.Context, arg CreateDefaultSubscriptionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[arg.OwnerID]; ok {
		return nil
	}
	now := m.now()
	m.subscriptions[arg.OwnerID] = Subscription{
		OwnerID:      arg.OwnerID,
		Tier:         SubscriptionTierFree,
		Status:       SubscriptionStatusActive,
		ExportsLimit: arg.ExportsLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (m *MemoryStore) ExpireSubscription(ctx context.Context, arg ExpireSubscriptionParams) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[arg.OwnerID]
	if !ok || s.Status != SubscriptionStatusActive || !s.ValidUntil.Valid || !s.ValidUntil.Time.Before(m.Now()) {
		return Subscription{}, pgx.ErrNoRows
	}
	s.Tier = SubscriptionTierFree
	s.Status = SubscriptionStatusExpired
	s.ExportsLimit = arg.ExportsLimit
	if s.ExportsUsed > arg.ExportsLimit {
		s.ExportsUsed = arg.ExportsLimit
	}
	s.UpdatedAt = m.now()
	m.subscriptions[arg.OwnerID] = s
	return s, nil
}

func (m *MemoryStore) ConsumeExport(ctx context.Context, arg ConsumeExportParams) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[arg.OwnerID]
	if !ok || (s.ExportsLimit < arg.UnlimitedSentinel && s.ExportsUsed >= s.ExportsLimit) {
		return Subscription{}, pgx.ErrNoRows
	}
	s.ExportsUsed++
	s.UpdatedAt = m.now()
	m.subscriptions[arg.OwnerID] = s
	return s, nil
}

func (m *MemoryStore) UpgradeSubscription(ctx context.Context, arg UpgradeSubscriptionParams) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.subscriptions[arg.OwnerID]
	if !ok {
		s = Subscription{OwnerID: arg.OwnerID, CreatedAt: now}
	}
	s.Tier = arg.Tier
	s.Status = SubscriptionStatusActive
	s.ExportsUsed = 0
	s.ExportsLimit = arg.ExportsLimit
	s.ValidUntil = arg.ValidUntil
	s.UpdatedAt = now
	m.subscriptions[arg.OwnerID] = s
	return s, nil
}

func (m *MemoryStore) SetStripeCustomer(ctx context.Context, arg SetStripeCustomerParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscriptions[arg.OwnerID]
	if !ok {
		return nil
	}
	s.StripeCustomerID = arg.StripeCustomerID
	s.UpdatedAt = m.now()
	m.subscriptions[arg.OwnerID] = s
	return nil
}
