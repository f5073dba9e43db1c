package models

import "time"

// CreditBalance holds a user's spendable enhancement credits. The balance is
// only ever changed through conditional atomic updates so it can never go
// negative, even under concurrent submissions from the same user.
type CreditBalance struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:ux_credit_balances_user" json:"user_id"`
	Credits     int64     `gorm:"not null;default:0" json:"credits"`
	LastResetAt time.Time `gorm:"type:timestamp;not null" json:"last_reset_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
