package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// Create creates a new webhook log row
func (r *webhookLogRepository) Create(log *models.WebhookLog) error {
	return r.db.Create(log).Error
}

// GetByID retrieves a webhook log by its ID
func (r *webhookLogRepository) GetByID(id uint) (*models.WebhookLog, error) {
	var log models.WebhookLog
	err := r.db.First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// HasSuccessFor reports whether a successful delivery already exists for the
// same (store, subject, event type) tuple.
func (r *webhookLogRepository) HasSuccessFor(storeID uint, invoiceID, subscriptionID *uint, eventType string) (bool, error) {
	query := r.db.Model(&models.WebhookLog{}).
		Where("store_id = ? AND event_type = ? AND success = ?", storeID, eventType, true)
	if invoiceID != nil {
		query = query.Where("invoice_id = ?", *invoiceID)
	} else {
		query = query.Where("invoice_id IS NULL")
	}
	if subscriptionID != nil {
		query = query.Where("subscription_id = ?", *subscriptionID)
	} else {
		query = query.Where("subscription_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// RecordAttempt increments the attempt counter and stores the outcome.
func (r *webhookLogRepository) RecordAttempt(id uint, success bool, statusCode *int, attemptErr string, at time.Time) error {
	updates := map[string]any{
		"attempts":        gorm.Expr("attempts + 1"),
		"success":         success,
		"last_error":      attemptErr,
		"last_attempt_at": at,
	}
	if statusCode != nil {
		updates["last_status_code"] = *statusCode
	}
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).Updates(updates).Error
}

// ListFailed returns unsuccessful deliveries for operator review
func (r *webhookLogRepository) ListFailed(offset, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.Where("success = ?", false).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, err
}
