package models

import (
	"strconv"
	"time"
)

// Webhook event types delivered to merchants.
const (
	WebhookEventInvoicePaid          = "invoice.paid"
	WebhookEventInvoiceExpired       = "invoice.expired"
	WebhookEventInvoiceCanceled      = "invoice.canceled"
	WebhookEventInvoiceRefunded      = "invoice.refunded"
	WebhookEventSubscriptionPaid     = "subscription.paid"
	WebhookEventSubscriptionCanceled = "subscription.canceled"
)

// MaxWebhookAttempts caps automatic delivery attempts per log row. After the
// cap the row stays unsuccessful and requires manual operator retry.
const MaxWebhookAttempts = 5

// WebhookLog records merchant webhook delivery state. At most one successful
// delivery is ever recorded per (store, subject, event type) tuple.
type WebhookLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	StoreID        uint       `gorm:"not null;index:idx_webhook_logs_subject,priority:1" json:"store_id"`
	InvoiceID      *uint      `gorm:"index:idx_webhook_logs_subject,priority:2" json:"invoice_id,omitempty"`
	SubscriptionID *uint      `gorm:"index:idx_webhook_logs_subject,priority:3" json:"subscription_id,omitempty"`
	EventType      string     `gorm:"type:varchar(64);not null;index:idx_webhook_logs_subject,priority:4" json:"event_type"`
	URL            string     `gorm:"type:varchar(512);not null" json:"url"`
	Payload        string     `gorm:"type:longtext;not null" json:"payload"`
	Success        bool       `gorm:"default:false;index" json:"success"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	LastStatusCode *int       `json:"last_status_code,omitempty"`
	LastError      string     `gorm:"type:text" json:"last_error"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SubjectKey returns the logical delivery key used for in-flight deduplication
// and the one-success-per-event rule.
func (w *WebhookLog) SubjectKey() string {
	key := "store:" + itoa(w.StoreID)
	if w.InvoiceID != nil {
		key += ":invoice:" + itoa(*w.InvoiceID)
	}
	if w.SubscriptionID != nil {
		key += ":subscription:" + itoa(*w.SubscriptionID)
	}
	return key + ":" + w.EventType
}

// Exhausted reports whether automatic retries are spent.
func (w *WebhookLog) Exhausted() bool {
	return w.Attempts >= MaxWebhookAttempts
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
