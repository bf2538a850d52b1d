package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription in the database
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription by its numeric ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Store").First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByIDHex retrieves a subscription by its 32-byte hex identifier
func (r *subscriptionRepository) GetByIDHex(idHex string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Store").Where("id_hex = ?", strings.ToLower(strings.TrimSpace(idHex))).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByStoreID retrieves subscriptions belonging to a store with pagination
func (r *subscriptionRepository) GetByStoreID(storeID uint, offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("store_id = ?", storeID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&subs).Error
	return subs, err
}

// Update saves changes to an existing subscription
func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// ListActiveDirect returns active direct-pay subscriptions for reconciliation.
func (r *subscriptionRepository) ListActiveDirect(limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Store").
		Where("active = ? AND mode = ?", true, models.SubscriptionModeDirect).
		Order("next_invoice_at ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
