package credits

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

// Repository provides the storage operations behind the ledger. Deduct and
// refund are single conditional updates so concurrent submissions from the
// same user cannot drive the balance negative or double-spend.
type Repository interface {
	GetOrCreateBalance(userID uint, initialCredits int64, now time.Time) (*models.CreditBalance, error)
	ResetIfStale(userID uint, allotment int64, staleBefore time.Time, now time.Time) (bool, error)
	DeductIfEnough(userID uint, amount int64) (bool, error)
	AddCredits(userID uint, amount int64) error
	GetBalance(userID uint) (*models.CreditBalance, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credits repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateBalance(userID uint, initialCredits int64, now time.Time) (*models.CreditBalance, error) {
	balance := &models.CreditBalance{
		UserID:      userID,
		Credits:     initialCredits,
		LastResetAt: now,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(balance).Error; err != nil {
		return nil, err
	}

	// Re-read so a pre-existing row wins over the insert attempt.
	var stored models.CreditBalance
	if err := r.db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) ResetIfStale(userID uint, allotment int64, staleBefore time.Time, now time.Time) (bool, error) {
	// The last_reset_at guard makes concurrent resets for the same period
	// apply exactly once.
	res := r.db.Model(&models.CreditBalance{}).
		Where("user_id = ? AND last_reset_at <= ?", userID, staleBefore).
		Updates(map[string]interface{}{
			"credits":       allotment,
			"last_reset_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) DeductIfEnough(userID uint, amount int64) (bool, error) {
	res := r.db.Model(&models.CreditBalance{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) AddCredits(userID uint, amount int64) error {
	return r.db.Model(&models.CreditBalance{}).
		Where("user_id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount)).Error
}

func (r *gormRepository) GetBalance(userID uint) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	if err := r.db.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}
