package billing

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

// Repository provides DB operations used by the subscription services.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserSubscription(userID uint) (*models.UserSubscription, error)
	UpsertSubscription(sub *models.UserSubscription) error
	AppendHistory(entry *models.SubscriptionHistory) error
	ListHistory(userID uint, limit int) ([]models.SubscriptionHistory, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByEmail(email string) (*models.User, error) {
	return models.FindUserByEmail(r.db, email)
}

func (r *gormRepository) GetUserSubscription(userID uint) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.UserSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier",
			"source",
			"status",
			"product_id",
			"transaction_id",
			"original_transaction_id",
			"purchase_expires_at",
			"admin_tier",
			"admin_expires_at",
			"admin_granted_by",
			"admin_granted_at",
			"admin_notes",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) AppendHistory(entry *models.SubscriptionHistory) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) ListHistory(userID uint, limit int) ([]models.SubscriptionHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.SubscriptionHistory
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
