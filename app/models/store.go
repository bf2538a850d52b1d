package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Store represents a merchant account that owns invoices and subscriptions.
// The on-chain identity is the merchant principal; registration state on the
// ledger is reconciled separately by the sync planner.
type Store struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=1,max=100"`
	MerchantPrincipal string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"merchant_principal" validate:"required"`
	Active            bool           `gorm:"default:true;index" json:"active"`
	DisplayName       string         `gorm:"type:varchar(100)" json:"display_name"`
	LogoURL           string         `gorm:"type:varchar(512)" json:"logo_url"`
	BrandColor        string         `gorm:"type:varchar(16)" json:"brand_color"`
	SupportEmail      string         `gorm:"type:varchar(255)" json:"support_email" validate:"omitempty,email"`
	SupportURL        string         `gorm:"type:varchar(512)" json:"support_url"`
	WebhookURL        string         `gorm:"type:varchar(512)" json:"webhook_url" validate:"omitempty,url"`
	WebhookSecret     string         `gorm:"type:char(64)" json:"-"`
	APIKeyHash        string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix      string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt   *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt  *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt   *time.Time     `json:"api_key_revoked_at"`
	WebhookAttempts   uint64         `gorm:"default:0" json:"webhook_attempts"`
	WebhookSuccesses  uint64         `gorm:"default:0" json:"webhook_successes"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "sgk_"

// HasActiveAPIKey reports whether the store has an active API key configured
func (s *Store) HasActiveAPIKey() bool {
	return s != nil && s.APIKeyHash != "" && s.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and returns the raw secret.
// Callers must persist the struct via the database after invoking this method.
// The raw key is revealed exactly once; only its hash is stored.
func (s *Store) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	s.APIKeyHash = hash
	s.APIKeyPrefix = prefix
	s.APIKeyCreatedAt = &now
	s.APIKeyRevokedAt = nil
	s.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata without deleting the record.
func (s *Store) RevokeAPIKey() {
	s.APIKeyHash = ""
	s.APIKeyPrefix = ""
	now := time.Now()
	s.APIKeyRevokedAt = &now
	s.APIKeyLastUsedAt = nil
}

// RotateWebhookSecret replaces the shared webhook signing secret and returns it.
func (s *Store) RotateWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(b)
	s.WebhookSecret = secret
	return secret, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 16)]
	hash := HashAPIKey(rawKey)
	return rawKey, prefix, hash, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
