package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
	"github.com/stacksgate/stacksgate/internal/pkg/syncplan"
	"github.com/stacksgate/stacksgate/internal/pkg/webhook"
)

type setSBTCTokenRequest struct {
	Token string `json:"token" validate:"required,min=3"`
}

// HandleSetSBTCToken stores the settlement token identity and returns the
// unsigned set-sbtc-token call for the admin wallet to sign.
// POST /api/admin/set-sbtc-token
func HandleSetSBTCToken(c *fiber.Ctx) error {
	var req setSBTCTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	asset, err := clarity.ParseAssetInfo(req.Token)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Token must be address.contract::asset"})
	}

	settings := repository.GetGlobalFactory().GetSettingRepository()
	current, err := settings.Get()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load settings"})
	}
	updated := &models.AppSettings{
		SBTCTokenContract: asset.String(),
		GatewayContract:   current.GetGatewayContract(),
		PaymentsEnabled:   current.ArePaymentsEnabled(),
	}
	if err := settings.Save(updated); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not save settings"})
	}

	call, err := callBuilder.SetSBTCToken(asset.ContractAddress, asset.ContractName)
	if err != nil {
		return writeBuildError(c, err)
	}
	return c.JSON(fiber.Map{"token": asset.String(), "unsignedCall": call})
}

// HandleSyncOnchain diffs a store's merchant projection against the chain and
// returns the minimal call set to converge them.
// POST /api/admin/stores/:id/sync-onchain
func HandleSyncOnchain(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invalid store id"})
	}

	plan, err := syncPlanner.PlanForStore(c.Context(), uint(id))
	if err != nil {
		if errors.Is(err, syncplan.ErrStoreNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown store"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "chain_unavailable", "message": err.Error()})
	}
	return c.JSON(plan)
}

// HandleRotateKeys issues a fresh API key and webhook secret for a store. The
// raw values appear in this response exactly once; only hashes stay at rest.
// POST /api/admin/stores/:id/rotate-keys
func HandleRotateKeys(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invalid store id"})
	}

	repo := repository.GetGlobalFactory().GetStoreRepository()
	store, err := repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown store"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Store lookup failed"})
	}

	apiKey, err := store.IssueAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not issue API key"})
	}
	webhookSecret, err := store.RotateWebhookSecret()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not rotate webhook secret"})
	}
	if err := repo.Update(store); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not persist new keys"})
	}

	return c.JSON(fiber.Map{
		"apiKey":        apiKey,
		"apiKeyPrefix":  store.APIKeyPrefix,
		"webhookSecret": webhookSecret,
	})
}

type webhookRetryRequest struct {
	WebhookLogID uint `json:"webhookLogId" validate:"required"`
}

// HandleWebhookRetry requeues a failed webhook delivery.
// POST /api/admin/webhooks/retry
func HandleWebhookRetry(c *fiber.Ctx) error {
	var req webhookRetryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	switch err := retryService.Retry(req.WebhookLogID); {
	case err == nil:
		return c.JSON(fiber.Map{"status": "queued"})
	case errors.Is(err, webhook.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown webhook log"})
	case errors.Is(err, webhook.ErrAlreadyDelivered):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already-delivered", "message": "Event was already delivered"})
	case errors.Is(err, webhook.ErrInFlight):
		return c.JSON(fiber.Map{"status": "in_flight"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Retry failed"})
	}
}

// HandleListFailedWebhooks lists deliveries awaiting operator action.
// GET /api/admin/webhooks/failed
func HandleListFailedWebhooks(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	logs, err := repository.GetGlobalFactory().GetWebhookLogRepository().ListFailed(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not list deliveries"})
	}
	return c.JSON(fiber.Map{"logs": logs, "offset": offset, "limit": limit})
}
