package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create creates a new invoice in the database
func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// GetByID retrieves an invoice by its numeric ID
func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Preload("Store").First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByIDHex retrieves an invoice by its 32-byte hex identifier
func (r *invoiceRepository) GetByIDHex(idHex string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Preload("Store").Where("id_hex = ?", strings.ToLower(strings.TrimSpace(idHex))).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetByStoreID retrieves invoices belonging to a store with pagination
func (r *invoiceRepository) GetByStoreID(storeID uint, offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("store_id = ?", storeID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// Update saves changes to an existing invoice
func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}

// UpdateStatus performs a guarded status transition. The WHERE clause pins the
// previous status so a concurrent writer or a terminal row can never be
// overwritten; the returned bool reports whether the transition was applied.
func (r *invoiceRepository) UpdateStatus(id uint, from, to models.InvoiceStatus) (bool, error) {
	result := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordRefund applies an observed refund: the cumulative refunded amount and
// the resulting status land in one UPDATE guarded on the previous status, so
// concurrent observers can never double-apply the same refund.
func (r *invoiceRepository) RecordRefund(id uint, from, to models.InvoiceStatus, refundSats uint64) (bool, error) {
	result := r.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ? AND refund_amount < ?", id, from, refundSats).
		Updates(map[string]interface{}{
			"status":        to,
			"refund_amount": refundSats,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListOpen returns invoices that still need reconciliation against the chain.
func (r *invoiceRepository) ListOpen(limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Preload("Store").
		Where("status IN ?", []models.InvoiceStatus{models.InvoiceStatusUnpaid, models.InvoiceStatusPending}).
		Order("created_at ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// ListRefundWatch returns paid invoices whose refund state may still move.
func (r *invoiceRepository) ListRefundWatch(limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Preload("Store").
		Where("status IN ?", []models.InvoiceStatus{models.InvoiceStatusPaid, models.InvoiceStatusPartiallyRefunded}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

// CountByStoreID returns the number of invoices for a store
func (r *invoiceRepository) CountByStoreID(storeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("store_id = ?", storeID).Count(&count).Error
	return count, err
}
