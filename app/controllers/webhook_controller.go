package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/billing"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/env"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/generation"
)

// WebhookController receives the two inbound webhooks: provider completion
// callbacks and billing-platform subscription events. Both verify the
// id/timestamp/signature header triple before any write.
type WebhookController struct {
	generations    *generation.Service
	billing        *billing.Service
	billingSecret  string
	callbackSecret string
}

func NewWebhookController(generations *generation.Service, billingSvc *billing.Service) *WebhookController {
	return &WebhookController{
		generations:    generations,
		billing:        billingSvc,
		billingSecret:  env.GetEnv("BILLING_WEBHOOK_SECRET", ""),
		callbackSecret: env.GetEnv("GENERATION_WEBHOOK_SECRET", ""),
	}
}

func verifySignature(c *fiber.Ctx, secret string) bool {
	return billing.VerifyWebhookSignature(
		c.Body(),
		c.Get(billing.HeaderWebhookID),
		c.Get(billing.HeaderWebhookTimestamp),
		c.Get(billing.HeaderWebhookSignature),
		secret,
	)
}

// HandleGenerationCallback applies a provider completion notification to the
// job named in the callback URL.
func (wc *WebhookController) HandleGenerationCallback(c *fiber.Ctx) error {
	if !verifySignature(c, wc.callbackSecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
	}

	jobUUID := c.Params("uuid")
	job, err := wc.generations.HandleCallback(jobUUID, c.Body())
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			// Acknowledge so the provider stops retrying a callback we can
			// never correlate; keep the payload in the logs for follow-up.
			log.Warnf("[Webhook] Completion callback for unknown job %s", jobUUID)
			return c.SendStatus(fiber.StatusOK)
		}
		log.Errorf("[Webhook] Completion callback for job %s failed: %v", jobUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to apply completion"})
	}

	return c.JSON(fiber.Map{"job_id": job.UUID, "status": job.Status})
}

// HandleBillingWebhook ingests one subscription lifecycle event.
func (wc *WebhookController) HandleBillingWebhook(c *fiber.Ctx) error {
	if !verifySignature(c, wc.billingSecret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
	}

	result, err := wc.billing.ProcessWebhook(c.Body())
	if err != nil {
		log.Errorf("[Webhook] Billing event processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process event"})
	}

	return c.JSON(fiber.Map{"applied": result.Applied})
}
