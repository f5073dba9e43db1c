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

	db := database.GetDB()

	tierCache := entitlements.NewRedisTierCache(0, cache.Set, cache.Get, cache.Delete)
	billingRepo := billing.NewRepository(db)
	tiers := entitlements.NewResolver(billingRepo, tierCache)
	ledger := credits.NewLedgerFromDB(db)

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

	var images imageref.Resolver = imageref.PassthroughResolver{}
	if cfg, err := imageref.LoadConfig(); err == nil {
		if resolver, err := imageref.NewS3Resolver(cfg); err == nil {
			images = resolver
		} else {
			log.Printf("Warning: S3 resolver unavailable (%v), using passthrough image references", err)
		}
	}

	deps := &router.Dependencies{
		Generations: generationSvc,
		Billing:     billing.NewService(billingRepo, tiers),
		Admin:       billing.NewAdminService(billingRepo, tiers, strings.Split(env.GetEnv("ADMIN_OPERATOR_EMAILS", ""), ",")),
		Ledger:      ledger,
		Tiers:       tiers,
		Images:      images,
	}

	app := fiber.New(fiber.Config{
		AppName:   "Snapdeck API",
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app, deps)

	sweeper := generation.NewSweeper(generationSvc)
	if err := sweeper.Start(); err != nil {
		log.Printf("Warning: could not start generation sweeper: %v", err)
	}

	return app
}
