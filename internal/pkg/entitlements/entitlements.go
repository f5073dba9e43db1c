package entitlements

import (
	"strings"
	"time"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

type Tier string

const (
	TierFree   Tier = models.TierFree
	TierPro    Tier = models.TierPro
	TierStudio Tier = models.TierStudio
)

// Monthly credit allotments per tier, applied on balance reset.
const (
	CreditsFree   int64 = 25
	CreditsPro    int64 = 500
	CreditsStudio int64 = 2000
)

// productTiers maps known store product identifiers to tiers. Unknown products
// fall back to substring heuristics in TierFromProductID.
var productTiers = map[string]Tier{
	"snapdeck_pro_monthly":     TierPro,
	"snapdeck_pro_yearly":      TierPro,
	"snapdeck_studio_monthly":  TierStudio,
	"snapdeck_studio_yearly":   TierStudio,
	"snapdeck.sub.pro.1m":      TierPro,
	"snapdeck.sub.pro.12m":     TierPro,
	"snapdeck.sub.studio.1m":   TierStudio,
	"snapdeck.sub.studio.12m":  TierStudio,
}

func NormalizeTier(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierPro):
		return TierPro
	case string(TierStudio):
		return TierStudio
	default:
		return TierFree
	}
}

// TierRank defines the total order free < pro < studio.
func TierRank(tier Tier) int {
	switch tier {
	case TierStudio:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}

// MaxTier returns the higher-ranked of two tiers.
func MaxTier(a, b Tier) Tier {
	if TierRank(a) >= TierRank(b) {
		return a
	}
	return b
}

// IsPaid reports whether the tier is above free.
func IsPaid(tier Tier) bool {
	return TierRank(tier) > 0
}

// CreditAllotment returns the monthly credit grant for a tier.
func CreditAllotment(tier Tier) int64 {
	switch tier {
	case TierStudio:
		return CreditsStudio
	case TierPro:
		return CreditsPro
	default:
		return CreditsFree
	}
}

// TierFromProductID maps a store product identifier to a tier. Exact matches
// win; otherwise substring heuristics cover renamed or regional product ids.
func TierFromProductID(productID string) Tier {
	id := strings.ToLower(strings.TrimSpace(productID))
	if id == "" {
		return TierFree
	}
	if tier, ok := productTiers[id]; ok {
		return tier
	}
	if strings.Contains(id, "studio") {
		return TierStudio
	}
	if strings.Contains(id, "pro") {
		return TierPro
	}
	return TierFree
}

// isEntitlingStatus reports whether a purchase in this status still grants
// access. Cancelled subscriptions keep access until their expiry passes.
func isEntitlingStatus(status string) bool {
	switch status {
	case models.SubscriptionStatusActive,
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusGracePeriod:
		return true
	default:
		return false
	}
}

// PurchaseTier computes the tier contributed by the billing-platform purchase
// on the subscription row. An expired or lapsed purchase contributes free.
func PurchaseTier(sub *models.UserSubscription, now time.Time) Tier {
	if sub == nil {
		return TierFree
	}
	if !isEntitlingStatus(sub.Status) {
		return TierFree
	}
	if sub.PurchaseExpiresAt != nil && !now.Before(*sub.PurchaseExpiresAt) {
		return TierFree
	}
	return TierFromProductID(sub.ProductID)
}

// AdminTier computes the tier contributed by an admin override, ignoring it
// once its expiry has passed.
func AdminTier(sub *models.UserSubscription, now time.Time) Tier {
	if sub == nil || sub.AdminTier == "" {
		return TierFree
	}
	if sub.AdminExpiresAt != nil && !now.Before(*sub.AdminExpiresAt) {
		return TierFree
	}
	return NormalizeTier(sub.AdminTier)
}

// Resolve merges the purchase-derived and admin-derived tiers into the
// effective (tier, source) pair. It is a pure function over the already
// fetched subscription row so it can be tested without I/O. The server always
// recomputes this itself; a client-asserted tier is never trusted.
func Resolve(sub *models.UserSubscription, now time.Time) (Tier, string) {
	purchase := PurchaseTier(sub, now)
	admin := AdminTier(sub, now)

	tier := MaxTier(purchase, admin)
	if TierRank(purchase) >= TierRank(admin) {
		if tier == TierFree {
			return tier, models.SubscriptionSourceNone
		}
		return tier, models.SubscriptionSourcePurchase
	}
	return tier, models.SubscriptionSourceAdmin
}

// MeetsMinimum reports whether tier satisfies the required minimum tier.
func MeetsMinimum(tier, minimum Tier) bool {
	return TierRank(tier) >= TierRank(minimum)
}
