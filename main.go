package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stacksgate/stacksgate/app/controllers"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/cache"
	"github.com/stacksgate/stacksgate/internal/pkg/chain"
	"github.com/stacksgate/stacksgate/internal/pkg/database"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/poller"
	"github.com/stacksgate/stacksgate/internal/pkg/router"
	"github.com/stacksgate/stacksgate/internal/pkg/webhook"
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
	repository.InitializeFactory(database.GetDB())

	// Domain services
	config := assets.NewConfigService()
	client := chain.NewNodeClient(config)
	repos := repository.GetGlobalFactory().GetRepositories()

	deduper := webhook.NewRedisDeduper(webhook.DefaultInflightTTL)
	dispatcher := webhook.NewDispatcher(repos.WebhookLog, repos.Store, deduper, webhook.DefaultWorkers)
	dispatcher.Start()

	notifier := webhook.NewNotifier(repos.WebhookLog, dispatcher)
	reconciler := poller.NewReconciler(repos.Invoice, repos.Subscription, client, notifier)
	reconciler.Start()

	controllers.InitializeControllers(client, dispatcher)

	app := fiber.New(fiber.Config{
		AppName: "StacksGate",
	})
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
