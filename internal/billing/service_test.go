package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/apperror"
	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v83"
)

func newTestService(t *testing.T) (*Service, *db.MemoryStore) {
	t.Helper()
	store := db.NewMemoryStore()
	return NewService(nil, store, "http://localhost:8080"), store
}

func TestGetSubscription_CreatesFreeTier(t *testing.T) {
	svc, store := newTestService(t)
	owner := uuid.New()

	info, err := svc.GetSubscription(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if info.Tier != db.SubscriptionTierFree {
		t.Errorf("Tier = %s, want FREE", info.Tier)
	}
	if info.ExportsLimit != FreeExportsLimit || info.ExportsRemaining != FreeExportsLimit {
		t.Errorf("limit/remaining = %d/%d, want %d/%d", info.ExportsLimit, info.ExportsRemaining, FreeExportsLimit, FreeExportsLimit)
	}

	if _, err := store.GetSubscription(context.Background(), pgtype.UUID{Bytes: owner, Valid: true}); err != nil {
		t.Errorf("subscription row not persisted: %v", err)
	}
}

func TestUseExport_FreeQuota(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := FreeExportsLimit - 1; i >= 0; i-- {
		usage, err := svc.UseExport(ctx, owner)
		if err != nil {
			t.Fatalf("UseExport() error = %v", err)
		}
		if !usage.Allowed || usage.Remaining != i {
			t.Fatalf("UseExport() = %+v, want allowed with %d remaining", usage, i)
		}
	}

	usage, err := svc.UseExport(ctx, owner)
	if err != nil {
		t.Fatalf("UseExport() error = %v", err)
	}
	if usage.Allowed {
		t.Error("fourth export should be rejected")
	}

	info, _ := svc.GetSubscription(ctx, owner)
	if info.ExportsUsed != FreeExportsLimit {
		t.Errorf("ExportsUsed = %d, want %d", info.ExportsUsed, FreeExportsLimit)
	}
}

func TestUseExport_Concurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	if _, err := svc.GetSubscription(ctx, owner); err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			usage, err := svc.UseExport(ctx, owner)
			if err != nil {
				t.Error(err)
				return
			}
			if usage.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != FreeExportsLimit {
		t.Errorf("allowed = %d, want %d", allowed, FreeExportsLimit)
	}
}

func TestUseExport_Unlimited(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	if _, err := svc.Upgrade(ctx, owner, db.SubscriptionTierPro, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	for i := 0; i < 50; i++ {
		usage, err := svc.UseExport(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		if !usage.Allowed || usage.Remaining != -1 {
			t.Fatalf("UseExport() = %+v, want unlimited", usage)
		}
	}
}

func TestUseExportTx_RolledBack(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	errAbort := errors.New("abort")

	err := store.ExecTx(ctx, func(q db.Querier) error {
		usage, err := svc.UseExportTx(ctx, q, owner)
		if err != nil {
			return err
		}
		if !usage.Allowed {
			t.Error("expected export to be allowed")
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("ExecTx() error = %v", err)
	}

	info, err := svc.GetSubscription(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if info.ExportsUsed != 0 {
		t.Errorf("ExportsUsed = %d after rollback, want 0", info.ExportsUsed)
	}
}

func TestUpgrade_ResetsUsage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < FreeExportsLimit; i++ {
		if _, err := svc.UseExport(ctx, owner); err != nil {
			t.Fatal(err)
		}
	}

	info, err := svc.Upgrade(ctx, owner, db.SubscriptionTierCreator, time.Now().Add(PeriodLength))
	if err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	if info.ExportsUsed != 0 || info.ExportsLimit != CreatorExportsLimit {
		t.Errorf("after upgrade used/limit = %d/%d, want 0/%d", info.ExportsUsed, info.ExportsLimit, CreatorExportsLimit)
	}
	if info.ValidUntil == nil {
		t.Error("ValidUntil should be set for paid tiers")
	}

	_, err = svc.Upgrade(ctx, owner, db.SubscriptionTier("GOLD"), time.Time{})
	if apperror.StatusCode(err) != 400 {
		t.Errorf("unknown tier error = %v, want 400", err)
	}
}

func TestGetSubscription_ExpiresLapsedTier(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	store.PutSubscription(db.Subscription{
		OwnerID:      pgtype.UUID{Bytes: owner, Valid: true},
		Tier:         db.SubscriptionTierCreator,
		Status:       db.SubscriptionStatusActive,
		ExportsUsed:  12,
		ExportsLimit: CreatorExportsLimit,
		ValidUntil:   pgtype.Timestamptz{Time: time.Now().Add(-time.Hour), Valid: true},
	})

	info, err := svc.GetSubscription(ctx, owner)
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if info.Tier != db.SubscriptionTierFree || info.Status != db.SubscriptionStatusExpired {
		t.Errorf("tier/status = %s/%s, want FREE/EXPIRED", info.Tier, info.Status)
	}
	if info.ExportsRemaining != 0 {
		t.Errorf("ExportsRemaining = %d, want 0", info.ExportsRemaining)
	}

	usage, err := svc.UseExport(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Allowed {
		t.Error("expired subscription with spent allowance should not export")
	}
}

func TestCreateCheckoutSession_Unconfigured(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCheckoutSession(context.Background(), uuid.New(), db.SubscriptionTierPro)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}

	_, err = svc.CreateCheckoutSession(context.Background(), uuid.New(), db.SubscriptionTierFree)
	if apperror.StatusCode(err) != 400 {
		t.Errorf("FREE checkout status = %d, want 400", apperror.StatusCode(err))
	}
}

func TestHandleSubscriptionDeleted_ByCustomer(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	customer := "cus_123"

	if _, err := svc.Upgrade(ctx, owner, db.SubscriptionTierPro, time.Now().Add(PeriodLength)); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStripeCustomer(ctx, db.SetStripeCustomerParams{
		OwnerID:          pgtype.UUID{Bytes: owner, Valid: true},
		StripeCustomerID: &customer,
	}); err != nil {
		t.Fatal(err)
	}

	err := svc.HandleSubscriptionDeleted(ctx, &stripe.Subscription{
		ID:       "sub_1",
		Customer: &stripe.Customer{ID: customer},
	})
	if err != nil {
		t.Fatalf("HandleSubscriptionDeleted() error = %v", err)
	}

	info, _ := svc.GetSubscription(ctx, owner)
	if info.Tier != db.SubscriptionTierFree {
		t.Errorf("Tier = %s, want FREE", info.Tier)
	}
}
