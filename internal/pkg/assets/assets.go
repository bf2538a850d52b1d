package assets

import (
	"errors"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
)

// ErrTokenNotConfigured is returned when no settlement token has been set by
// an operator. Payment assembly fails closed on it.
var ErrTokenNotConfigured = errors.New("settlement token is not configured")

// ErrGatewayNotConfigured is returned when the gateway contract identity is unset.
var ErrGatewayNotConfigured = errors.New("gateway contract is not configured")

// ConfigService resolves the configured settlement-token and gateway-contract
// identities. Implementations must fail closed when unset.
type ConfigService interface {
	SettlementAsset() (clarity.AssetInfo, error)
	GatewayContract() (address, name string, err error)
}

// SettingsConfigService reads identities from the loaded application settings.
type SettingsConfigService struct{}

// NewConfigService returns the settings-backed ConfigService.
func NewConfigService() *SettingsConfigService {
	return &SettingsConfigService{}
}

// SettlementAsset resolves the configured sBTC asset identity.
func (s *SettingsConfigService) SettlementAsset() (clarity.AssetInfo, error) {
	settings := models.GetAppSettings()
	if settings == nil {
		return clarity.AssetInfo{}, ErrTokenNotConfigured
	}
	raw := settings.GetSBTCTokenContract()
	if raw == "" {
		return clarity.AssetInfo{}, ErrTokenNotConfigured
	}
	asset, err := clarity.ParseAssetInfo(raw)
	if err != nil {
		// A malformed stored value is treated the same as no value at all.
		return clarity.AssetInfo{}, ErrTokenNotConfigured
	}
	return asset, nil
}

// GatewayContract resolves the configured payment gateway contract identity.
func (s *SettingsConfigService) GatewayContract() (string, string, error) {
	settings := models.GetAppSettings()
	if settings == nil {
		return "", "", ErrGatewayNotConfigured
	}
	raw := settings.GetGatewayContract()
	if raw == "" {
		return "", "", ErrGatewayNotConfigured
	}
	addr, name, err := clarity.ParseContractID(raw)
	if err != nil {
		return "", "", ErrGatewayNotConfigured
	}
	return addr, name, nil
}

// StaticConfigService is a fixed-identity ConfigService for tests and tools.
type StaticConfigService struct {
	Asset           clarity.AssetInfo
	GatewayAddress  string
	GatewayName     string
	TokenConfigured bool
}

// SettlementAsset returns the fixed asset or fails closed when unconfigured.
func (s *StaticConfigService) SettlementAsset() (clarity.AssetInfo, error) {
	if !s.TokenConfigured {
		return clarity.AssetInfo{}, ErrTokenNotConfigured
	}
	return s.Asset, nil
}

// GatewayContract returns the fixed gateway contract identity.
func (s *StaticConfigService) GatewayContract() (string, string, error) {
	if s.GatewayAddress == "" || s.GatewayName == "" {
		return "", "", ErrGatewayNotConfigured
	}
	return s.GatewayAddress, s.GatewayName, nil
}
