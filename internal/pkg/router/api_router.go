package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/stacksgate/stacksgate/app/controllers"
	"github.com/stacksgate/stacksgate/internal/pkg/constants"
	"github.com/stacksgate/stacksgate/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	// Merchant API v1
	v1 := api.Group("/v1")
	v1.Get("/stores/:id/public-profile", controllers.HandleStorePublicProfile)

	stores := v1.Group("/stores/:id", middleware.APIKeyAuthMiddleware(), middleware.RequireStoreParam())
	stores.Post("/invoices", controllers.HandleCreateInvoice)
	stores.Get("/invoices/:invoiceId", controllers.HandleInvoiceDetail)
	stores.Post("/invoices/:invoiceId/magic-link", controllers.HandleSendMagicLink)
	stores.Post("/refunds/create-tx", controllers.HandleRefundCreateTx)
	stores.Post("/subscriptions", controllers.HandleCreateSubscription)
	stores.Post("/subscriptions/:subId/create-tx", controllers.HandleSubscriptionCreateTx)

	// Operator API
	admin := app.Group(constants.AdminAPIPrefix, middleware.AdminAuthMiddleware())
	admin.Post("/set-sbtc-token", controllers.HandleSetSBTCToken)
	admin.Post("/stores/:id/sync-onchain", controllers.HandleSyncOnchain)
	admin.Post("/stores/:id/rotate-keys", controllers.HandleRotateKeys)
	admin.Post("/webhooks/retry", controllers.HandleWebhookRetry)
	admin.Get("/webhooks/failed", controllers.HandleListFailedWebhooks)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
