package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/invoiceid"
	"github.com/stacksgate/stacksgate/internal/pkg/magiclink"
	"github.com/stacksgate/stacksgate/internal/pkg/status"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
)

type createTxRequest struct {
	InvoiceID      string `json:"invoiceId"`
	PayerPrincipal string `json:"payerPrincipal"`
}

// HandleCreateTx assembles an unsigned pay-invoice call for the payment page.
// POST /create-tx
func HandleCreateTx(c *fiber.Ctx) error {
	var req createTxRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Malformed request body"})
	}

	id, err := invoiceid.Normalize(req.InvoiceID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invoice id must be 32 bytes of hex"})
	}

	inv, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByIDHex(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown invoice"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Invoice lookup failed"})
	}

	call, err := payAssembler.BuildUnsignedPayInvoice(c.Context(), inv, inv.Store, req.PayerPrincipal)
	if err != nil {
		return writeBuildError(c, err)
	}
	return c.JSON(call)
}

// HandleInvoiceView returns the public payment-page view of an invoice.
// GET /i/:invoiceId
func HandleInvoiceView(c *fiber.Ctx) error {
	id, err := invoiceid.Normalize(c.Params("invoiceId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invoice id must be 32 bytes of hex"})
	}

	inv, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByIDHex(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown invoice"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Invoice lookup failed"})
	}

	// Best-effort on-chain read; an unreachable node falls back to the local
	// projection rather than failing the page.
	display := inv.Status
	resolver := status.NewResolver(chainClient)
	if onchain, err := resolver.ReadOnchainStatus(c.Context(), inv.IDHex); err == nil {
		display = status.ComputeDisplayStatus(inv, onchain, time.Now().UnixMilli())
	} else if inv.QuoteExpired(time.Now().UnixMilli()) && !inv.Status.IsTerminal() {
		display = models.InvoiceStatusExpired
	}

	return c.JSON(toPublicInvoiceDTO(inv, display))
}

// HandleStorePublicProfile returns the merchant's public branding profile.
// GET /api/v1/stores/:id/public-profile
func HandleStorePublicProfile(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid-id", "message": "Invalid store id"})
	}

	store, err := repository.GetGlobalFactory().GetStoreRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not-found", "message": "Unknown store"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Store lookup failed"})
	}

	return c.JSON(fiber.Map{
		"displayName":  store.DisplayName,
		"logoUrl":      store.LogoURL,
		"brandColor":   store.BrandColor,
		"supportEmail": store.SupportEmail,
		"supportUrl":   store.SupportURL,
	})
}

// HandlePayBlob decodes a magic-link bundle for wallet handoff.
// GET /pay/:blob
func HandlePayBlob(c *fiber.Ctx) error {
	if linkCodec == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "links_disabled", "message": "Magic links are not configured"})
	}

	asset, err := configService.SettlementAsset()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "missing-token", "message": "Settlement token is not configured"})
	}

	bundle, err := linkCodec.Parse(c.Params("blob"), txbuilder.FnPayInvoice, asset, time.Now().Unix())
	if err != nil {
		return writeMagicLinkError(c, err)
	}
	return c.JSON(bundle)
}

// writeMagicLinkError maps each parse stage failure to a distinct error code.
func writeMagicLinkError(c *fiber.Ctx, err error) error {
	code := "bad_bundle"
	status := fiber.StatusBadRequest
	switch {
	case errors.Is(err, magiclink.ErrBadEncoding):
		code = "bad_encoding"
	case errors.Is(err, magiclink.ErrBadJSON):
		code = "bad_json"
	case errors.Is(err, magiclink.ErrBadStructure):
		code = "bad_structure"
	case errors.Is(err, magiclink.ErrBadSignature):
		code = "bad_signature"
		status = fiber.StatusUnauthorized
	case errors.Is(err, magiclink.ErrExpired):
		code = "expired"
		status = fiber.StatusGone
	case errors.Is(err, magiclink.ErrUnauthorizedFunction):
		code = "unauthorized_function"
		status = fiber.StatusForbidden
	case errors.Is(err, magiclink.ErrUnsafePostConditions):
		code = "unsafe_post_conditions"
		status = fiber.StatusForbidden
	case errors.Is(err, magiclink.ErrMissingPostCondition):
		code = "missing_post_condition"
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}
