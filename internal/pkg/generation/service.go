package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/snapdeckhq/snapdeck-api/app/models"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/aiprovider"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/realtime"
)

var (
	ErrUnknownFeature  = errors.New("unknown or disabled feature")
	ErrMissingInput    = errors.New("input image reference is required")
	ErrPremiumRequired = errors.New("feature requires a premium subscription")
	ErrJobNotFound     = errors.New("generation job not found")
)

// ProviderUnavailableError signals that the provider hand-off failed after the
// job record was created. Credits were refunded and the job marked failed; the
// id lets the caller correlate with logs and retry safely.
type ProviderUnavailableError struct {
	JobUUID string
	Err     error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable for job %s: %v", e.JobUUID, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// CreditLedger is the slice of the credits service the job manager needs.
type CreditLedger interface {
	EnsureFreshBalance(userID uint, tier entitlements.Tier) (*models.CreditBalance, error)
	Deduct(userID uint, amount int64) error
	Refund(userID uint, amount int64) error
}

// TierResolver resolves the caller's effective tier server-side. Premium
// gating never trusts a client-asserted tier.
type TierResolver interface {
	ResolveForUser(userID uint) (entitlements.Tier, string, error)
}

// Service orchestrates the generation job lifecycle: gated submission,
// provider hand-off, and exactly-once terminal reconciliation.
type Service struct {
	repo            Repository
	ledger          CreditLedger
	tiers           TierResolver
	providers       *aiprovider.Registry
	notifier        realtime.Notifier
	callbackBaseURL string
}

func NewService(repo Repository, ledger CreditLedger, tiers TierResolver, providers *aiprovider.Registry, notifier realtime.Notifier, callbackBaseURL string) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{
		repo:            repo,
		ledger:          ledger,
		tiers:           tiers,
		providers:       providers,
		notifier:        notifier,
		callbackBaseURL: callbackBaseURL,
	}
}

type SubmitInput struct {
	UserID     uint
	FeatureKey string
	InputURL   string
	Overrides  Overrides
	DraftID    string
	SlotID     string
}

type SubmitResult struct {
	JobUUID          string `json:"job_id"`
	ExternalJobID    string `json:"external_job_id,omitempty"`
	Status           string `json:"status"`
	OutputURL        string `json:"output_url,omitempty"`
	CreditsCharged   int64  `json:"credits_charged"`
	Cached           bool   `json:"cached"`
	EstimatedSeconds int    `json:"estimated_seconds,omitempty"`
}

// Submit runs the full submission pipeline. The call returns as soon as the
// provider has accepted the work; the result arrives later via the completion
// callback or polling.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.InputURL == "" {
		return nil, ErrMissingInput
	}

	cfg, err := s.repo.GetFeatureConfig(in.FeatureKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownFeature
		}
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrUnknownFeature
	}

	input, paramsJSON, modelID, err := buildRequest(cfg, in.InputURL, in.Overrides)
	if err != nil {
		return nil, err
	}

	// An identical completed job short-circuits the whole pipeline: the caller
	// gets the stored output and the ledger is never touched.
	if dup, err := s.repo.FindLatestCompletedDuplicate(in.UserID, cfg.FeatureKey, in.InputURL, paramsJSON); err == nil {
		return &SubmitResult{
			JobUUID:        dup.UUID,
			Status:         models.GenerationStatusCompleted,
			OutputURL:      dup.OutputURL,
			CreditsCharged: 0,
			Cached:         true,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tier, _, err := s.tiers.ResolveForUser(in.UserID)
	if err != nil {
		return nil, err
	}
	if cfg.PremiumOnly && !entitlements.MeetsMinimum(tier, entitlements.NormalizeTier(cfg.MinTier)) {
		return nil, ErrPremiumRequired
	}

	if _, err := s.ledger.EnsureFreshBalance(in.UserID, tier); err != nil {
		return nil, err
	}
	if err := s.ledger.Deduct(in.UserID, cfg.CreditCost); err != nil {
		return nil, err
	}

	job := &models.Generation{
		UUID:              uuid.NewString(),
		UserID:            in.UserID,
		FeatureKey:        cfg.FeatureKey,
		Provider:          cfg.Provider,
		ModelID:           modelID,
		InputURL:          in.InputURL,
		RequestParamsJSON: paramsJSON,
		Status:            models.GenerationStatusProcessing,
		CreditsCharged:    cfg.CreditCost,
		DraftID:           in.DraftID,
		SlotID:            in.SlotID,
	}
	if err := s.repo.CreateJob(job); err != nil {
		// No job record exists, so the charge must be returned here.
		s.ledger.Refund(in.UserID, cfg.CreditCost)
		return nil, err
	}

	provider, err := s.providers.Get(cfg.Provider)
	if err != nil {
		return nil, s.failSubmission(job, err)
	}

	submission, err := provider.Submit(ctx, aiprovider.Request{
		ModelID:     modelID,
		Input:       input,
		CallbackURL: s.callbackURL(job.UUID),
	})
	if err != nil {
		return nil, s.failSubmission(job, err)
	}

	if err := s.repo.SetExternalJobID(job.ID, submission.ExternalID); err != nil {
		return nil, s.failSubmission(job, err)
	}

	log.Infof("[Generation] Submitted job %s (feature=%s user=%d external=%s)", job.UUID, cfg.FeatureKey, in.UserID, submission.ExternalID)
	return &SubmitResult{
		JobUUID:          job.UUID,
		ExternalJobID:    submission.ExternalID,
		Status:           models.GenerationStatusProcessing,
		CreditsCharged:   cfg.CreditCost,
		EstimatedSeconds: submission.EstimatedSeconds,
	}, nil
}

// failSubmission refunds the charge, marks the job failed with SUBMIT_ERROR
// and wraps the cause so callers can tell the client to retry.
func (s *Service) failSubmission(job *models.Generation, cause error) error {
	log.Errorf("[Generation] Provider hand-off failed for job %s: %v", job.UUID, cause)
	applied, err := s.repo.MarkTerminal(job.ID, models.GenerationStatusFailed, "", models.GenerationErrSubmit, cause.Error(), time.Now())
	if err != nil {
		log.Errorf("[Generation] Could not mark job %s failed: %v", job.UUID, err)
	}
	if applied {
		s.ledger.Refund(job.UserID, job.CreditsCharged)
		s.notifier.NotifyJobUpdate(job.UserID, realtime.JobUpdate{
			JobID:     job.UUID,
			Status:    models.GenerationStatusFailed,
			ErrorCode: models.GenerationErrSubmit,
		})
	}
	return &ProviderUnavailableError{JobUUID: job.UUID, Err: cause}
}

// GetJob returns a job owned by the given user.
func (s *Service) GetJob(userID uint, jobUUID string) (*models.Generation, error) {
	job, err := s.repo.GetByUUID(jobUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// HandleCompletion applies a provider result to the job the callback names.
// Replayed deliveries and results for already-terminal jobs are no-ops.
func (s *Service) HandleCompletion(jobUUID string, result *aiprovider.Result) (*models.Generation, error) {
	job, err := s.repo.GetByUUID(jobUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if !result.Terminal {
		return job, nil
	}

	if err := s.applyTerminal(job, result, models.GenerationErrProvider); err != nil {
		return nil, err
	}
	return s.repo.GetByUUID(jobUUID)
}

// applyTerminal performs the status-guarded transition and, when this call is
// the one that actually flipped the row, settles the ledger and notifies the
// user. A lost guard means another delivery won the race; nothing more to do.
func (s *Service) applyTerminal(job *models.Generation, result *aiprovider.Result, failureCode string) error {
	now := time.Now()

	if result.Succeeded {
		applied, err := s.repo.MarkTerminal(job.ID, models.GenerationStatusCompleted, result.OutputURL, "", "", now)
		if err != nil {
			return err
		}
		if applied {
			log.Infof("[Generation] Job %s completed", job.UUID)
			s.notifier.NotifyJobUpdate(job.UserID, realtime.JobUpdate{
				JobID:     job.UUID,
				Status:    models.GenerationStatusCompleted,
				OutputURL: result.OutputURL,
			})
		}
		return nil
	}

	applied, err := s.repo.MarkTerminal(job.ID, models.GenerationStatusFailed, "", failureCode, result.ErrorMessage, now)
	if err != nil {
		return err
	}
	if applied {
		log.Warnf("[Generation] Job %s failed: %s", job.UUID, result.ErrorMessage)
		s.ledger.Refund(job.UserID, job.CreditsCharged)
		s.notifier.NotifyJobUpdate(job.UserID, realtime.JobUpdate{
			JobID:     job.UUID,
			Status:    models.GenerationStatusFailed,
			ErrorCode: failureCode,
		})
	}
	return nil
}

// HandleCallback decodes a raw provider callback payload for the job named in
// the callback URL and applies it through HandleCompletion.
func (s *Service) HandleCallback(jobUUID string, payload []byte) (*models.Generation, error) {
	job, err := s.repo.GetByUUID(jobUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	provider, err := s.providers.Get(job.Provider)
	if err != nil {
		return nil, err
	}
	result, err := provider.ParseResult(payload)
	if err != nil {
		return nil, err
	}
	return s.HandleCompletion(jobUUID, result)
}

// PollPending is the client-driven fallback for missed callbacks: it asks the
// provider for the current state of each of the user's in-flight jobs and
// applies any terminal results it learns about.
func (s *Service) PollPending(ctx context.Context, userID uint) ([]models.Generation, error) {
	jobs, err := s.repo.ListProcessingByUser(userID)
	if err != nil {
		return nil, err
	}

	for i := range jobs {
		job := &jobs[i]
		if job.ExternalJobID == "" {
			continue
		}
		provider, err := s.providers.Get(job.Provider)
		if err != nil {
			log.Warnf("[Generation] No provider %q for job %s", job.Provider, job.UUID)
			continue
		}
		result, err := provider.Poll(ctx, job.ExternalJobID)
		if err != nil {
			log.Warnf("[Generation] Poll failed for job %s: %v", job.UUID, err)
			continue
		}
		if !result.Terminal {
			continue
		}
		if err := s.applyTerminal(job, result, models.GenerationErrProvider); err != nil {
			log.Errorf("[Generation] Could not apply polled result for job %s: %v", job.UUID, err)
		}
	}

	return s.repo.ListProcessingByUser(userID)
}

// SweepStale fails and refunds jobs stuck in processing longer than maxAge.
// Returns the number of jobs it transitioned.
func (s *Service) SweepStale(maxAge time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	jobs, err := s.repo.ListStaleProcessing(cutoff, limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range jobs {
		job := &jobs[i]
		result := &aiprovider.Result{
			ExternalID:   job.ExternalJobID,
			Terminal:     true,
			Succeeded:    false,
			ErrorMessage: fmt.Sprintf("no terminal update after %s", maxAge),
		}
		if err := s.applyTerminal(job, result, models.GenerationErrTimeout); err != nil {
			log.Errorf("[Generation] Sweep could not fail job %s: %v", job.UUID, err)
			continue
		}
		swept++
	}
	if swept > 0 {
		log.Infof("[Generation] Sweep failed and refunded %d stale jobs", swept)
	}
	return swept, nil
}

func (s *Service) callbackURL(jobUUID string) string {
	return fmt.Sprintf("%s/api/internal/generations/callback/%s", s.callbackBaseURL, jobUUID)
}
