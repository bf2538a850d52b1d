package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/stacksgate/stacksgate/app/controllers"
	"github.com/stacksgate/stacksgate/internal/pkg/constants"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Explicit per-origin allow-list. With no configured origins the browser
	// gets no Access-Control-Allow-Origin header at all.
	if origins := env.GetEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type,X-API-Key,Authorization",
		}))
	}

	// Public payment-page endpoints.
	app.Post("/create-tx", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	}), controllers.HandleCreateTx)
	app.Get(constants.InvoiceViewRoute+"/:invoiceId", controllers.HandleInvoiceView)
	app.Get(constants.PayRoute+"/:blob", controllers.HandlePayBlob)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
