package generation

import (
	"time"

	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

// Repository is the persistence boundary for generation jobs and feature
// configuration. The terminal-transition methods carry the status guard so the
// exactly-once invariant lives at the storage layer, not in callers.
type Repository interface {
	GetFeatureConfig(featureKey string) (*models.FeatureConfig, error)
	CreateJob(job *models.Generation) error
	GetByUUID(uuid string) (*models.Generation, error)
	FindLatestCompletedDuplicate(userID uint, featureKey, inputURL, paramsJSON string) (*models.Generation, error)
	SetExternalJobID(jobID uint, externalID string) error

	// MarkTerminal transitions a job out of processing. It returns false when
	// the job was already terminal, in which case nothing was written.
	MarkTerminal(jobID uint, status, outputURL, errorCode, errorMessage string, completedAt time.Time) (bool, error)

	ListProcessingByUser(userID uint) ([]models.Generation, error)
	ListStaleProcessing(olderThan time.Time, limit int) ([]models.Generation, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetFeatureConfig(featureKey string) (*models.FeatureConfig, error) {
	var cfg models.FeatureConfig
	if err := r.db.Where("feature_key = ?", featureKey).First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *gormRepository) CreateJob(job *models.Generation) error {
	return r.db.Create(job).Error
}

func (r *gormRepository) GetByUUID(uuid string) (*models.Generation, error) {
	var job models.Generation
	if err := r.db.Where("uuid = ?", uuid).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *gormRepository) FindLatestCompletedDuplicate(userID uint, featureKey, inputURL, paramsJSON string) (*models.Generation, error) {
	var job models.Generation
	err := r.db.
		Where("user_id = ? AND feature_key = ? AND input_url = ? AND request_params_json = ? AND status = ?",
			userID, featureKey, inputURL, paramsJSON, models.GenerationStatusCompleted).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *gormRepository) SetExternalJobID(jobID uint, externalID string) error {
	return r.db.Model(&models.Generation{}).
		Where("id = ?", jobID).
		UpdateColumn("external_job_id", externalID).Error
}

func (r *gormRepository) MarkTerminal(jobID uint, status, outputURL, errorCode, errorMessage string, completedAt time.Time) (bool, error) {
	result := r.db.Model(&models.Generation{}).
		Where("id = ? AND status = ?", jobID, models.GenerationStatusProcessing).
		Updates(map[string]interface{}{
			"status":        status,
			"output_url":    outputURL,
			"error_code":    errorCode,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) ListProcessingByUser(userID uint) ([]models.Generation, error) {
	var jobs []models.Generation
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.GenerationStatusProcessing).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *gormRepository) ListStaleProcessing(olderThan time.Time, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 100
	}
	var jobs []models.Generation
	err := r.db.
		Where("status = ? AND created_at < ?", models.GenerationStatusProcessing, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
