package models

import "time"

// Generation job statuses. A job starts as processing and reaches exactly one
// terminal state (completed or failed) exactly once.
const (
	GenerationStatusProcessing = "processing"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

// Generation error codes surfaced to clients and stored on failed jobs.
const (
	GenerationErrSubmit   = "SUBMIT_ERROR"
	GenerationErrProvider = "PROVIDER_ERROR"
	GenerationErrTimeout  = "TIMEOUT"
)

// Generation tracks one request for an asynchronous image enhancement.
type Generation struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UUID       string `gorm:"type:varchar(36);not null;uniqueIndex:ux_generations_uuid" json:"uuid"`
	UserID     uint   `gorm:"not null;index:idx_generations_user_feature,priority:1" json:"user_id"`
	FeatureKey string `gorm:"type:varchar(64);not null;index:idx_generations_user_feature,priority:2" json:"feature_key"`
	Provider   string `gorm:"type:varchar(32);not null" json:"provider"`
	ModelID    string `gorm:"type:varchar(191);not null" json:"model_id"`

	// InputURL plus RequestParamsJSON form the duplicate-detection key together
	// with UserID and FeatureKey.
	InputURL          string `gorm:"type:varchar(1024);not null" json:"input_url"`
	RequestParamsJSON string `gorm:"type:longtext;not null" json:"request_params_json"`

	Status         string     `gorm:"type:varchar(20);not null;default:'processing';index" json:"status"`
	OutputURL      string     `gorm:"type:varchar(1024);default:''" json:"output_url"`
	CreditsCharged int64      `gorm:"not null;default:0" json:"credits_charged"`
	ErrorCode      string     `gorm:"type:varchar(50);default:''" json:"error_code"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	ExternalJobID  string     `gorm:"type:varchar(191);default:'';index" json:"external_job_id"`
	DraftID        string     `gorm:"type:varchar(64);default:''" json:"draft_id"`
	SlotID         string     `gorm:"type:varchar(64);default:''" json:"slot_id"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	CompletedAt    *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the job already reached a terminal state.
func (g *Generation) IsTerminal() bool {
	return g.Status == GenerationStatusCompleted || g.Status == GenerationStatusFailed
}
