package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

// StoreRepository defines the interface for merchant store database operations
type StoreRepository interface {
	Create(store *models.Store) error
	GetByID(id uint) (*models.Store, error)
	GetByMerchantPrincipal(principal string) (*models.Store, error)
	GetByAPIKeyHash(hash string) (*models.Store, error)
	Update(store *models.Store) error
	TouchAPIKeyUsage(id uint, at time.Time) error
	List(offset, limit int) ([]models.Store, error)
	Count() (int64, error)
}

// InvoiceRepository defines the interface for invoice database operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByIDHex(idHex string) (*models.Invoice, error)
	GetByStoreID(storeID uint, offset, limit int) ([]models.Invoice, error)
	Update(invoice *models.Invoice) error
	// UpdateStatus writes a status transition; it must refuse to leave a
	// terminal state and reports whether a row changed.
	UpdateStatus(id uint, from, to models.InvoiceStatus) (bool, error)
	// RecordRefund writes a refund observation (cumulative amount plus the
	// matching status) in one guarded update, pinned to the previous status.
	RecordRefund(id uint, from, to models.InvoiceStatus, refundSats uint64) (bool, error)
	ListOpen(limit int) ([]models.Invoice, error)
	ListRefundWatch(limit int) ([]models.Invoice, error)
	CountByStoreID(storeID uint) (int64, error)
}

// SubscriptionRepository defines the interface for subscription database operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByIDHex(idHex string) (*models.Subscription, error)
	GetByStoreID(storeID uint, offset, limit int) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
	ListActiveDirect(limit int) ([]models.Subscription, error)
}

// WebhookLogRepository defines the interface for webhook delivery log operations
type WebhookLogRepository interface {
	Create(log *models.WebhookLog) error
	GetByID(id uint) (*models.WebhookLog, error)
	// HasSuccessFor reports whether a successful delivery already exists for
	// the same (store, subject, event type) tuple.
	HasSuccessFor(storeID uint, invoiceID, subscriptionID *uint, eventType string) (bool, error)
	RecordAttempt(id uint, success bool, statusCode *int, attemptErr string, at time.Time) error
	ListFailed(offset, limit int) ([]models.WebhookLog, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Store        StoreRepository
	Invoice      InvoiceRepository
	Subscription SubscriptionRepository
	WebhookLog   WebhookLogRepository
	Setting      SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Store:        NewStoreRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Subscription: NewSubscriptionRepository(db),
		WebhookLog:   NewWebhookLogRepository(db),
		Setting:      NewSettingRepository(db),
	}
}
