package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/snapdeckhq/snapdeck-api/internal/pkg/aiprovider"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/billing"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/cache"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/credits"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/database"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/entitlements"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/env"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/generation"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/imageref"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/realtime"
	"github.com/snapdeckhq/snapdeck-api/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	deps := buildDependencies()

	app := fiber.New(fiber.Config{
		AppName:   "Snapdeck API",
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app, deps)

	sweeper := generation.NewSweeper(deps.Generations)
	if err := sweeper.Start(); err != nil {
		log.Printf("Warning: could not start generation sweeper: %v", err)
	}

	return app
}

func buildDependencies() *router.Dependencies {
	db := database.GetDB()

	tierCache := entitlements.NewRedisTierCache(0, cache.Set, cache.Get, cache.Delete)
	billingRepo := billing.NewRepository(db)
	tiers := entitlements.NewResolver(billingRepo, tierCache)
	ledger := credits.NewLedgerFromDB(db)

	billingSvc := billing.NewService(billingRepo, tiers)
	adminSvc := billing.NewAdminService(billingRepo, tiers, operatorAllowList())

	providers := aiprovider.NewRegistry(aiprovider.NewReplicateClientFromEnv())
	notifier := realtime.NewRedisNotifier(func(channel, message string) error {
		return cache.Publish(channel, message)
	})

	generationSvc := generation.NewService(
		generation.NewRepository(db),
		ledger,
		tiers,
		providers,
		notifier,
		env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000"),
	)

	return &router.Dependencies{
		Generations: generationSvc,
		Billing:     billingSvc,
		Admin:       adminSvc,
		Ledger:      ledger,
		Tiers:       tiers,
		Images:      imageResolver(),
	}
}

// imageResolver falls back to passing references through untouched when
// object storage is not configured.
func imageResolver() imageref.Resolver {
	cfg, err := imageref.LoadConfig()
	if err != nil {
		log.Printf("Warning: object storage not configured (%v), using passthrough image references", err)
		return imageref.PassthroughResolver{}
	}
	resolver, err := imageref.NewS3Resolver(cfg)
	if err != nil {
		log.Printf("Warning: S3 resolver unavailable (%v), using passthrough image references", err)
		return imageref.PassthroughResolver{}
	}
	return resolver
}

func operatorAllowList() []string {
	raw := env.GetEnv("ADMIN_OPERATOR_EMAILS", "")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
