package models

import "time"

// Subscription tiers ordered free < pro < studio.
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierStudio = "studio"
)

// Where the effective tier came from.
const (
	SubscriptionSourceNone     = "none"
	SubscriptionSourcePurchase = "purchase"
	SubscriptionSourceAdmin    = "admin"
)

const (
	SubscriptionStatusActive      = "active"
	SubscriptionStatusCancelled   = "cancelled"
	SubscriptionStatusExpired     = "expired"
	SubscriptionStatusGracePeriod = "grace_period"
)

// UserSubscription holds the single subscription row per user. Provider-sourced
// fields are last-writer-wins from billing webhooks; admin fields are only ever
// touched by explicit admin grants/revokes or an actual purchase-lifecycle event.
type UserSubscription struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex:ux_user_subscriptions_user" json:"user_id"`

	Tier   string `gorm:"type:varchar(20);not null;default:'free';index" json:"tier"`
	Source string `gorm:"type:varchar(20);not null;default:'none'" json:"source"`
	Status string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	ProductID             string     `gorm:"type:varchar(191);default:''" json:"product_id"`
	TransactionID         string     `gorm:"type:varchar(191);default:''" json:"transaction_id"`
	OriginalTransactionID string     `gorm:"type:varchar(191);default:''" json:"original_transaction_id"`
	PurchaseExpiresAt     *time.Time `gorm:"type:timestamp;default:null" json:"purchase_expires_at,omitempty"`

	AdminTier      string     `gorm:"type:varchar(20);default:''" json:"admin_tier"`
	AdminExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"admin_expires_at,omitempty"`
	AdminGrantedBy string     `gorm:"type:varchar(200);default:''" json:"admin_granted_by"`
	AdminGrantedAt *time.Time `gorm:"type:timestamp;default:null" json:"admin_granted_at,omitempty"`
	AdminNotes     string     `gorm:"type:text" json:"admin_notes"`

	RawPayloadJSON string    `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasAdminGrant reports whether an admin override is present on the row,
// regardless of whether it is still unexpired.
func (s *UserSubscription) HasAdminGrant() bool {
	return s.AdminTier != "" && s.AdminTier != TierFree
}

// ClearAdminFields removes an admin override from the row.
func (s *UserSubscription) ClearAdminFields() {
	s.AdminTier = ""
	s.AdminExpiresAt = nil
	s.AdminGrantedBy = ""
	s.AdminGrantedAt = nil
	s.AdminNotes = ""
}

// ClearPurchaseFields removes provider purchase bookkeeping, used when an
// explicit admin grant intentionally supersedes stale purchase state.
func (s *UserSubscription) ClearPurchaseFields() {
	s.ProductID = ""
	s.TransactionID = ""
	s.OriginalTransactionID = ""
	s.PurchaseExpiresAt = nil
}
