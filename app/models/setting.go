package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys used by the gateway.
const (
	SettingKeySBTCTokenContract = "sbtc_token_contract"
	SettingKeyGatewayContract   = "gateway_contract"
	SettingKeyPaymentsEnabled   = "payments_enabled"
)

// AppSettings represents the application settings structure
type AppSettings struct {
	// SBTCTokenContract is the settlement token identity in
	// "<address>.<contract>::<asset>" form. Empty means unconfigured and all
	// payment assembly fails closed.
	SBTCTokenContract string `json:"sbtc_token_contract" validate:"omitempty,min=3,max=255"`
	// GatewayContract is the "<address>.<contract>" of the payment gateway contract.
	GatewayContract string `json:"gateway_contract" validate:"omitempty,min=3,max=255"`
	PaymentsEnabled bool   `json:"payments_enabled"`
	mu              sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	appSettings = &AppSettings{
		PaymentsEnabled: true,
	}

	// Load settings from database
	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Apply loaded settings
	for _, setting := range settings {
		switch setting.Key {
		case SettingKeySBTCTokenContract:
			appSettings.SBTCTokenContract = setting.Value
		case SettingKeyGatewayContract:
			appSettings.GatewayContract = setting.Value
		case SettingKeyPaymentsEnabled:
			appSettings.PaymentsEnabled = setting.Value == "true"
		}
	}

	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Validate settings
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]string{
		SettingKeySBTCTokenContract: settings.SBTCTokenContract,
		SettingKeyGatewayContract:   settings.GatewayContract,
		SettingKeyPaymentsEnabled:   fmt.Sprintf("%t", settings.PaymentsEnabled),
	}

	// Save each setting
	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: value,
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = value
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	// Update global settings
	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case SettingKeyPaymentsEnabled:
		return "boolean"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// GetSBTCTokenContract returns the configured settlement token identity.
func (s *AppSettings) GetSBTCTokenContract() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SBTCTokenContract
}

// GetGatewayContract returns the configured gateway contract identity.
func (s *AppSettings) GetGatewayContract() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GatewayContract
}

// ArePaymentsEnabled reports whether payment assembly is globally enabled.
func (s *AppSettings) ArePaymentsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PaymentsEnabled
}

// SetSBTCTokenContract updates the settlement token identity in memory.
func (s *AppSettings) SetSBTCTokenContract(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SBTCTokenContract = v
}
