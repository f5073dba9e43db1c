package models

import "time"

// History event sources.
const (
	HistorySourceWebhook = "webhook"
	HistorySourceAdmin   = "admin"
)

// SubscriptionHistory is the append-only audit trail for subscription state.
// Rows are created once and never updated or deleted; duplicate webhook
// deliveries may produce duplicate entries, which is acceptable.
type SubscriptionHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	EventType    string    `gorm:"type:varchar(50);not null;index" json:"event_type"`
	EventSource  string    `gorm:"type:varchar(20);not null" json:"event_source"`
	TierBefore   string    `gorm:"type:varchar(20);not null;default:'free'" json:"tier_before"`
	TierAfter    string    `gorm:"type:varchar(20);not null;default:'free'" json:"tier_after"`
	StatusBefore string    `gorm:"type:varchar(20);not null;default:''" json:"status_before"`
	StatusAfter  string    `gorm:"type:varchar(20);not null;default:''" json:"status_after"`
	Actor        string    `gorm:"type:varchar(200);default:''" json:"actor"`
	RawPayload   string    `gorm:"type:longtext" json:"raw_payload"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
