package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/constants"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
	"github.com/stacksgate/stacksgate/internal/pkg/magiclink"
	"github.com/stacksgate/stacksgate/internal/pkg/mail"
	"github.com/stacksgate/stacksgate/internal/pkg/storecontext"
)

var validate = validator.New()

type createInvoiceRequest struct {
	AmountSats uint64 `json:"amount_sats" validate:"required,gt=0"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"required,gt=0,lte=604800"`
	Memo       string `json:"memo" validate:"omitempty,max=255"`
	WebhookURL string `json:"webhook_url" validate:"omitempty,url"`
}

// HandleCreateInvoice creates a new invoice quote for the authenticated store.
// POST /api/v1/stores/:id/invoices
func HandleCreateInvoice(c *fiber.Ctx) error {
	store := storecontext.GetStore(c)

	var req createInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	idHex, err := invoiceid.New()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not generate invoice id"})
	}

	invoice := &models.Invoice{
		IDHex:             idHex,
		StoreID:           store.ID,
		MerchantPrincipal: store.MerchantPrincipal,
		AmountSats:        req.AmountSats,
		Status:            models.InvoiceStatusUnpaid,
		QuoteExpiresAt:    time.Now().Add(time.Duration(req.TTLSeconds) * time.Second).UnixMilli(),
		Memo:              req.Memo,
		WebhookURL:        req.WebhookURL,
	}
	if err := repository.GetGlobalFactory().GetInvoiceRepository().Create(invoice); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create invoice"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"invoiceId":      invoice.IDHex,
		"amountSats":     invoice.AmountSats,
		"amountBtc":      btcDisplay(invoice.AmountSats),
		"status":         string(invoice.Status),
		"quoteExpiresAt": invoice.QuoteExpiresAt,
		"paymentPath":    constants.InvoiceViewRoute + "/" + invoice.IDHex,
	})
}

// HandleInvoiceDetail returns the merchant view of one invoice.
// GET /api/v1/stores/:id/invoices/:invoiceId
func HandleInvoiceDetail(c *fiber.Ctx) error {
	inv := findStoreInvoice(c)
	if inv == nil {
		return nil
	}
	return c.JSON(fiber.Map{
		"invoiceId":      inv.IDHex,
		"amountSats":     inv.AmountSats,
		"amountBtc":      btcDisplay(inv.AmountSats),
		"refundSats":     inv.RefundAmount,
		"status":         string(inv.Status),
		"quoteExpiresAt": inv.QuoteExpiresAt,
		"memo":           inv.Memo,
		"webhookUrl":     inv.WebhookURL,
		"paidAtHeight":   inv.PaidAtHeight,
		"createdAt":      inv.CreatedAt,
	})
}

type refundRequest struct {
	InvoiceID  string `json:"invoiceId" validate:"required"`
	AmountSats uint64 `json:"amount_sats" validate:"required,gt=0"`
}

// HandleRefundCreateTx assembles an unsigned refund-invoice call.
// POST /api/v1/stores/:id/refunds/create-tx
func HandleRefundCreateTx(c *fiber.Ctx) error {
	store := storecontext.GetStore(c)

	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	id, err := invoiceid.Normalize(req.InvoiceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invoice id must be 32 bytes of hex"})
	}

	inv, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByIDHex(id)
	if err != nil || inv.StoreID != store.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown invoice"})
	}

	call, err := refundBuilder.BuildUnsignedRefund(inv, req.AmountSats)
	if err != nil {
		return writeBuildError(c, err)
	}
	return c.JSON(call)
}

type createSubscriptionRequest struct {
	Subscriber     string `json:"subscriber" validate:"required"`
	AmountSats     uint64 `json:"amount_sats" validate:"required,gt=0"`
	IntervalBlocks uint64 `json:"interval_blocks" validate:"required,gt=0"`
	Mode           string `json:"mode" validate:"required,oneof=invoice direct"`
}

// HandleCreateSubscription creates a subscription row for the store. The first
// due height is the current tip plus one interval.
// POST /api/v1/stores/:id/subscriptions
func HandleCreateSubscription(c *fiber.Ctx) error {
	store := storecontext.GetStore(c)

	var req createSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	tip, err := chainClient.TipHeight(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "chain_unavailable", "message": "Could not read chain tip height"})
	}

	idHex, err := invoiceid.New()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not generate subscription id"})
	}

	sub := &models.Subscription{
		IDHex:             idHex,
		StoreID:           store.ID,
		MerchantPrincipal: store.MerchantPrincipal,
		Subscriber:        req.Subscriber,
		AmountSats:        req.AmountSats,
		IntervalBlocks:    req.IntervalBlocks,
		Mode:              models.SubscriptionMode(req.Mode),
		Active:            true,
		NextInvoiceAt:     tip + req.IntervalBlocks,
	}
	if err := repository.GetGlobalFactory().GetSubscriptionRepository().Create(sub); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create subscription"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"subscriptionId": sub.IDHex,
		"amountSats":     sub.AmountSats,
		"intervalBlocks": sub.IntervalBlocks,
		"mode":           string(sub.Mode),
		"nextInvoiceAt":  sub.NextInvoiceAt,
	})
}

type subscriptionPayRequest struct {
	PayerPrincipal string `json:"payerPrincipal" validate:"required"`
}

// HandleSubscriptionCreateTx assembles an unsigned pay-subscription call for a
// direct-mode subscription.
// POST /api/v1/stores/:id/subscriptions/:subId/create-tx
func HandleSubscriptionCreateTx(c *fiber.Ctx) error {
	store := storecontext.GetStore(c)

	var req subscriptionPayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	id, err := invoiceid.Normalize(c.Params("subId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Subscription id must be 32 bytes of hex"})
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetByIDHex(id)
	if err != nil || sub.StoreID != store.ID {
		sub = nil
	}

	call, err := subBuilder.Assemble(c.Context(), sub, req.PayerPrincipal)
	if err != nil {
		return writeBuildError(c, err)
	}
	return c.JSON(call)
}

type magicLinkRequest struct {
	Email      string `json:"email" validate:"required,email"`
	TTLSeconds int64  `json:"ttl_seconds" validate:"omitempty,gt=0,lte=604800"`
}

// HandleSendMagicLink creates a signed payment bundle and emails it.
// POST /api/v1/stores/:id/invoices/:invoiceId/magic-link
func HandleSendMagicLink(c *fiber.Ctx) error {
	if linkCodec == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "links_disabled", "message": "Magic links are not configured"})
	}
	store := storecontext.GetStore(c)

	var req magicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	inv := findStoreInvoice(c)
	if inv == nil {
		return nil
	}

	call, err := payAssembler.BuildUnsignedPayInvoice(c.Context(), inv, store, "")
	if err != nil {
		return writeBuildError(c, err)
	}

	exp := magicLinkExpiry(time.Now().Unix(), req.TTLSeconds, inv.QuoteExpiresAt)

	blob, err := linkCodec.Serialize(magiclink.Bundle{
		StoreID:      store.ID,
		InvoiceID:    inv.IDHex,
		UnsignedCall: call,
		Exp:          exp,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not build magic link"})
	}

	link := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000") + constants.PayRoute + "/" + blob

	name := store.DisplayName
	if name == "" {
		name = store.Name
	}
	if err := mail.SendPaymentLink(req.Email, name, link); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "mail_failed", "message": "Could not send magic link email"})
	}

	return c.JSON(fiber.Map{"link": link, "exp": exp})
}

// magicLinkExpiry picks the bundle expiry. A link must never outlive the
// quote it carries, so a caller-supplied TTL is clamped to the quote window.
func magicLinkExpiry(nowUnix, ttlSeconds, quoteExpiresAtMs int64) int64 {
	quoteExp := quoteExpiresAtMs / 1000
	if ttlSeconds <= 0 {
		return quoteExp
	}
	exp := nowUnix + ttlSeconds
	if exp > quoteExp {
		return quoteExp
	}
	return exp
}

// findStoreInvoice resolves :invoiceId scoped to the authenticated store. On
// failure the error response has already been written and nil is returned.
func findStoreInvoice(c *fiber.Ctx) *models.Invoice {
	store := storecontext.GetStore(c)

	id, err := invoiceid.Normalize(c.Params("invoiceId"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invoice id must be 32 bytes of hex"})
		return nil
	}

	inv, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByIDHex(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown invoice"})
		} else {
			_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Invoice lookup failed"})
		}
		return nil
	}
	if inv.StoreID != store.ID {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown invoice"})
		return nil
	}
	return inv
}
