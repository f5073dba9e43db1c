package database

import (
	"log"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"gorm.io/gorm"
)

// SeedFeatureConfigs inserts the default enhancement feature catalogue when the
// table is empty. Operators manage the rows out-of-band afterwards; the service
// itself never writes to them again.
func SeedFeatureConfigs(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.FeatureConfig{}).Count(&count).Error; err != nil {
		log.Printf("Could not count feature configs: %v", err)
		return
	}
	if count > 0 {
		return
	}

	defaults := []models.FeatureConfig{
		{
			FeatureKey:        "enhance",
			Provider:          "replicate",
			ModelID:           "snapdeck/real-esrgan-4x",
			DefaultParamsJSON: `{"scale":4,"face_enhance":false}`,
			CreditCost:        1,
			Enabled:           true,
			PremiumOnly:       false,
			MinTier:           models.TierFree,
		},
		{
			FeatureKey:        "background_remove",
			Provider:          "replicate",
			ModelID:           "snapdeck/rembg-v2",
			DefaultParamsJSON: `{"output_format":"png"}`,
			CreditCost:        2,
			Enabled:           true,
			PremiumOnly:       false,
			MinTier:           models.TierFree,
		},
		{
			FeatureKey:        "colorize",
			Provider:          "replicate",
			ModelID:           "snapdeck/deoldify-artistic",
			DefaultParamsJSON: `{"render_factor":35}`,
			CreditCost:        2,
			Enabled:           true,
			PremiumOnly:       true,
			MinTier:           models.TierPro,
		},
		{
			FeatureKey:        "style_transfer",
			Provider:          "replicate",
			ModelID:           "snapdeck/sdxl-style-v3",
			DefaultParamsJSON: `{"preset":"cinematic","strength":0.65}`,
			CreditCost:        4,
			Enabled:           true,
			PremiumOnly:       true,
			MinTier:           models.TierStudio,
		},
	}

	if err := db.Create(&defaults).Error; err != nil {
		log.Printf("Could not seed feature configs: %v", err)
		return
	}
	log.Printf("Seeded %d default feature configs", len(defaults))
}
