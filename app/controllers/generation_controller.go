package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/credits"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/generation"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/imageref"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/usercontext"
)

// GenerationController exposes the enhancement job lifecycle over HTTP.
type GenerationController struct {
	generations *generation.Service
	images      imageref.Resolver
	ledger      *credits.Ledger
	tiers       *entitlements.Resolver
}

func NewGenerationController(generations *generation.Service, images imageref.Resolver, ledger *credits.Ledger, tiers *entitlements.Resolver) *GenerationController {
	return &GenerationController{generations: generations, images: images, ledger: ledger, tiers: tiers}
}

type createGenerationRequest struct {
	FeatureKey   string `json:"feature_key"`
	ImageRef     string `json:"image_ref"`
	PresetID     string `json:"preset_id"`
	Prompt       string `json:"prompt"`
	Color        string `json:"color"`
	ModelVariant string `json:"model_variant"`
	DraftID      string `json:"draft_id"`
	SlotID       string `json:"slot_id"`
}

// HandleCreate submits a new generation job for the authenticated user.
func (gc *GenerationController) HandleCreate(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req createGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if req.FeatureKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "feature_key is required"})
	}

	inputURL, err := gc.images.Resolve(c.Context(), req.ImageRef)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "image_ref could not be resolved"})
	}

	result, err := gc.generations.Submit(c.Context(), generation.SubmitInput{
		UserID:     userID,
		FeatureKey: req.FeatureKey,
		InputURL:   inputURL,
		Overrides: generation.Overrides{
			PresetID:     req.PresetID,
			Prompt:       req.Prompt,
			Color:        req.Color,
			ModelVariant: req.ModelVariant,
		},
		DraftID: req.DraftID,
		SlotID:  req.SlotID,
	})
	if err != nil {
		return gc.submitError(c, err)
	}

	status := fiber.StatusAccepted
	if result.Cached {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(result)
}

func (gc *GenerationController) submitError(c *fiber.Ctx, err error) error {
	var unavailable *generation.ProviderUnavailableError
	switch {
	case errors.Is(err, generation.ErrUnknownFeature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "UNKNOWN_FEATURE", "message": "Unknown or disabled feature"})
	case errors.Is(err, generation.ErrMissingInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "An input image reference is required"})
	case errors.Is(err, generation.ErrPremiumRequired):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "PREMIUM_REQUIRED", "message": "This feature requires a premium subscription"})
	case errors.Is(err, credits.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "INSUFFICIENT_CREDITS", "message": "Not enough credits for this feature"})
	case errors.As(err, &unavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "PROVIDER_UNAVAILABLE",
			"message": "The enhancement service is temporarily unavailable, please retry",
			"job_id":  unavailable.JobUUID,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to submit generation"})
	}
}

// HandleGet returns the current state of one of the caller's jobs.
func (gc *GenerationController) HandleGet(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	job, err := gc.generations.GetJob(userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Generation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load generation"})
	}
	return c.JSON(job)
}

// HandlePoll asks the provider about the caller's in-flight jobs and returns
// the ones still processing. Fallback for missed completion callbacks.
func (gc *GenerationController) HandlePoll(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	pending, err := gc.generations.PollPending(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to poll generations"})
	}
	return c.JSON(fiber.Map{"pending": pending})
}

// HandleGetCredits returns the caller's current balance, refreshed against the
// reset period first so a stale allotment never leaks to the client.
func (gc *GenerationController) HandleGetCredits(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	tier, source, err := gc.tiers.ResolveForUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve subscription"})
	}
	balance, err := gc.ledger.EnsureFreshBalance(userID, tier)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load balance"})
	}

	return c.JSON(fiber.Map{
		"credits":       balance.Credits,
		"allotment":     entitlements.CreditAllotment(tier),
		"tier":          tier,
		"source":        source,
		"last_reset_at": balance.LastResetAt,
	})
}
