package controllers

import (
	"math/big"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/chain"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/magiclink"
	"github.com/stacksgate/stacksgate/internal/pkg/syncplan"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
	"github.com/stacksgate/stacksgate/internal/pkg/webhook"
)

// Shared controller dependencies, wired once at boot.
var (
	chainClient   chain.Client
	configService assets.ConfigService
	payAssembler  *txbuilder.PayInvoiceAssembler
	refundBuilder *txbuilder.RefundAssembler
	subBuilder    *txbuilder.DirectSubscriptionPaymentBuilder
	callBuilder   *txbuilder.CallBuilder
	syncPlanner   *syncplan.Planner
	linkCodec     *magiclink.Codec
	retryService  *webhook.AdminRetryService
	dispatcher    *webhook.Dispatcher

	initOnce sync.Once
)

// InitializeControllers wires the controller-layer services. The repository
// factory must be initialized first.
func InitializeControllers(client chain.Client, hooks *webhook.Dispatcher) {
	initOnce.Do(func() {
		repos := repository.GetGlobalFactory().GetRepositories()

		chainClient = client
		configService = assets.NewConfigService()
		payAssembler = txbuilder.NewPayInvoiceAssembler(client, configService)
		refundBuilder = txbuilder.NewRefundAssembler(configService)
		subBuilder = txbuilder.NewDirectSubscriptionPaymentBuilder(client, configService)
		callBuilder = txbuilder.NewCallBuilder(configService)
		syncPlanner = syncplan.NewPlanner(repos.Store, client, callBuilder)
		dispatcher = hooks
		retryService = webhook.NewAdminRetryService(repos.WebhookLog, hooks)

		if secret := env.GetEnv("MAGIC_LINK_SECRET", ""); secret != "" {
			codec, err := magiclink.NewCodec(secret)
			if err == nil {
				linkCodec = codec
			}
		}
	})
}

// writeBuildError maps the assembler error taxonomy onto HTTP statuses. The
// body is always {error, message} with the kind as the error code.
func writeBuildError(c *fiber.Ctx, err error) error {
	be, ok := txbuilder.AsBuildError(err)
	if !ok {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "chain_unavailable",
			"message": err.Error(),
		})
	}

	status := fiber.StatusConflict
	switch be.Kind {
	case txbuilder.KindInvalidID:
		status = fiber.StatusBadRequest
	case txbuilder.KindNotFound:
		status = fiber.StatusNotFound
	case txbuilder.KindMerchantInactive, txbuilder.KindInvalidPayer:
		status = fiber.StatusForbidden
	case txbuilder.KindExpired:
		status = fiber.StatusGone
	case txbuilder.KindMissingToken:
		status = fiber.StatusServiceUnavailable
	case txbuilder.KindInvalidState, txbuilder.KindBadStatus,
		txbuilder.KindTooEarly, txbuilder.KindRefundCap:
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   string(be.Kind),
		"message": be.Message,
	})
}

// btcDisplay renders a sat amount as a fixed-point BTC string.
func btcDisplay(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -8).StringFixed(8)
}

// publicInvoiceDTO is the camelCase payment-page view of an invoice. It never
// carries secrets or merchant-internal fields.
type publicInvoiceDTO struct {
	InvoiceID      string `json:"invoiceId"`
	StoreID        uint   `json:"storeId"`
	AmountSats     uint64 `json:"amountSats"`
	AmountBTC      string `json:"amountBtc"`
	Status         string `json:"status"`
	QuoteExpiresAt int64  `json:"quoteExpiresAt"`
	Memo           string `json:"memo,omitempty"`
}

func toPublicInvoiceDTO(inv *models.Invoice, displayStatus models.InvoiceStatus) publicInvoiceDTO {
	return publicInvoiceDTO{
		InvoiceID:      inv.IDHex,
		StoreID:        inv.StoreID,
		AmountSats:     inv.AmountSats,
		AmountBTC:      btcDisplay(inv.AmountSats),
		Status:         string(displayStatus),
		QuoteExpiresAt: inv.QuoteExpiresAt,
		Memo:           inv.Memo,
	}
}
