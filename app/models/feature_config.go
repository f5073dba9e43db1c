package models

import "time"

// FeatureConfig is the read-only table mapping an enhancement feature key to
// its provider, model and pricing. Rows are managed by operators out-of-band;
// this service only ever reads them.
type FeatureConfig struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	FeatureKey        string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_feature_configs_key" json:"feature_key"`
	Provider          string    `gorm:"type:varchar(32);not null" json:"provider"`
	ModelID           string    `gorm:"type:varchar(191);not null" json:"model_id"`
	DefaultParamsJSON string    `gorm:"type:longtext;not null;default:'{}'" json:"default_params_json"`
	CreditCost        int64     `gorm:"not null;default:1" json:"credit_cost"`
	Enabled           bool      `gorm:"not null;default:true" json:"enabled"`
	PremiumOnly       bool      `gorm:"not null;default:false" json:"premium_only"`
	MinTier           string    `gorm:"type:varchar(20);not null;default:'pro'" json:"min_tier"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
