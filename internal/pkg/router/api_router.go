package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/snapdeckhq/snapdeck-api/app/controllers"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/middleware"
)

type ApiRouter struct {
	deps *Dependencies
}

func NewApiRouter(deps *Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	generationCtrl := controllers.NewGenerationController(h.deps.Generations, h.deps.Images, h.deps.Ledger, h.deps.Tiers)
	webhookCtrl := controllers.NewWebhookController(h.deps.Generations, h.deps.Billing)
	adminCtrl := controllers.NewAdminController(h.deps.Admin)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"message": "snapdeck api"})
	})

	v1 := api.Group("/v1")
	v1.Post("/auth/register", controllers.HandleRegister)
	v1.Post("/auth/login", controllers.HandleLogin)

	authed := v1.Group("", middleware.JWTAuthMiddleware())
	authed.Post("/generations", generationCtrl.HandleCreate)
	authed.Post("/generations/poll", generationCtrl.HandlePoll)
	authed.Get("/generations/:id", generationCtrl.HandleGet)
	authed.Get("/credits", generationCtrl.HandleGetCredits)

	admin := api.Group("/admin", middleware.JWTAuthMiddleware(), middleware.RequireAdmin())
	admin.Post("/subscriptions/grant", adminCtrl.HandleGrant)
	admin.Post("/subscriptions/revoke", adminCtrl.HandleRevoke)
	admin.Get("/subscriptions", adminCtrl.HandleQuery)

	// Webhooks authenticate through their signature headers, never JWT.
	internal := api.Group("/internal")
	internal.Post("/generations/callback/:uuid", webhookCtrl.HandleGenerationCallback)
	internal.Post("/billing/webhook", webhookCtrl.HandleBillingWebhook)
}
