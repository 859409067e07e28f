package billing

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/clip.cheap/internal/db"
)

const (
	// UnlimitedExports is stored as exports_limit for tiers without a cap.
	UnlimitedExports = 999999

	FreeExportsLimit    = 3
	CreatorExportsLimit = 30

	PeriodLength = 30 * 24 * time.Hour
)

type TierLimits struct {
	ExportsLimit int32
}

func GetTierLimits(tier db.SubscriptionTier) TierLimits {
	switch tier {
	case db.SubscriptionTierPro:
		return TierLimits{ExportsLimit: UnlimitedExports}
	case db.SubscriptionTierCreator:
		return TierLimits{ExportsLimit: CreatorExportsLimit}
	default:
		return TierLimits{ExportsLimit: FreeExportsLimit}
	}
}

func IsUnlimited(limit int32) bool {
	return limit >= UnlimitedExports
}

// ParseTier accepts tier names case-insensitively.
func ParseTier(s string) (db.SubscriptionTier, bool) {
	tier := db.SubscriptionTier(strings.ToUpper(strings.TrimSpace(s)))
	return tier, tier.Valid()
}

type SubscriptionInfo struct {
	Tier             db.SubscriptionTier   `json:"tier"`
	Status           db.SubscriptionStatus `json:"status"`
	ExportsUsed      int                   `json:"exportsUsed"`
	ExportsLimit     int                   `json:"exportsLimit"`
	ExportsRemaining int                   `json:"exportsRemaining"`
	Unlimited        bool                  `json:"unlimited"`
	ValidUntil       *time.Time            `json:"validUntil,omitempty"`
}

func newSubscriptionInfo(sub db.Subscription) *SubscriptionInfo {
	info := &SubscriptionInfo{
		Tier:         sub.Tier,
		Status:       sub.Status,
		ExportsUsed:  int(sub.ExportsUsed),
		ExportsLimit: int(sub.ExportsLimit),
		Unlimited:    IsUnlimited(sub.ExportsLimit),
	}
	info.ExportsRemaining = info.RemainingExports()
	if sub.ValidUntil.Valid {
		t := sub.ValidUntil.Time
		info.ValidUntil = &t
	}
	return info
}

// RemainingExports returns -1 for unlimited tiers.
func (s *SubscriptionInfo) RemainingExports() int {
	if s.Unlimited {
		return -1
	}
	remaining := s.ExportsLimit - s.ExportsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *SubscriptionInfo) UsagePercent() int {
	if s.Unlimited {
		return 0
	}
	if s.ExportsLimit == 0 {
		return 100
	}
	return s.ExportsUsed * 100 / s.ExportsLimit
}

// Usage is the outcome of charging one export.
type Usage struct {
	Allowed bool `json:"allowed"`
	// Remaining is -1 when the tier is unlimited.
	Remaining int `json:"remaining"`
}
