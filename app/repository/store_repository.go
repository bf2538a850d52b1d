package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

// storeRepository implements the StoreRepository interface
type storeRepository struct {
	db *gorm.DB
}

// NewStoreRepository creates a new store repository instance
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

// Create creates a new store in the database
func (r *storeRepository) Create(store *models.Store) error {
	return r.db.Create(store).Error
}

// GetByID retrieves a store by its ID
func (r *storeRepository) GetByID(id uint) (*models.Store, error) {
	var store models.Store
	err := r.db.First(&store, id).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// GetByMerchantPrincipal retrieves a store by its on-chain principal
func (r *storeRepository) GetByMerchantPrincipal(principal string) (*models.Store, error) {
	var store models.Store
	err := r.db.Where("merchant_principal = ?", strings.TrimSpace(principal)).First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// GetByAPIKeyHash resolves an active API key hash to its store.
func (r *storeRepository) GetByAPIKeyHash(hash string) (*models.Store, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var store models.Store
	query := r.db.Where("api_key_hash = ? AND api_key_hash <> '' AND api_key_revoked_at IS NULL", trimmed)
	if err := query.First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// Update saves changes to an existing store
func (r *storeRepository) Update(store *models.Store) error {
	return r.db.Save(store).Error
}

// TouchAPIKeyUsage refreshes the last-used timestamp best-effort.
func (r *storeRepository) TouchAPIKeyUsage(id uint, at time.Time) error {
	return r.db.Model(&models.Store{}).
		Where("id = ?", id).
		Updates(map[string]any{"api_key_last_used_at": at}).Error
}

// List retrieves stores with pagination
func (r *storeRepository) List(offset, limit int) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&stores).Error
	return stores, err
}

// Count returns the total number of stores
func (r *storeRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Store{}).Count(&count).Error
	return count, err
}
