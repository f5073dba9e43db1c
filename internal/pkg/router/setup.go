package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/billing"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/credits"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/generation"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/imageref"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the wired services the API routes need.
type Dependencies struct {
	Generations *generation.Service
	Billing     *billing.Service
	Admin       *billing.AdminService
	Ledger      *credits.Ledger
	Tiers       *entitlements.Resolver
	Images      imageref.Resolver
}

// InstallRouter registers all route groups on the app.
func InstallRouter(app *fiber.App, deps *Dependencies) {
	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
