package gate

import (
	"context"

	"keygate/internal/database/models"
)

// Messages shown to the visitor when no admin-authored text is configured
const (
	DefaultVPNBanMessage      = "Access denied: VPN and proxy connections are not allowed. Please disconnect and reload the page."
	DefaultGeoBanMessage      = "Sorry, our store is not available in your region."
	DefaultIPBanMessage       = "Access from your network has been blocked."
	DefaultCustomerBanMessage = "We are unable to process orders for this account. Please contact support."
)

// DefaultSettings are seeded into site_settings on first start. Every
// blocking flag starts disabled.
func DefaultSettings() map[string]string {
	return map[string]string{
		models.SettingBlockVPN:                "false",
		models.SettingBlockTimezoneMismatch:   "false",
		models.SettingBlockAdvancedProtection: "false",
		models.SettingVPNBanMessage:           DefaultVPNBanMessage,
		models.SettingGeoBanMessage:           DefaultGeoBanMessage,
		models.SettingIPBanMessage:            DefaultIPBanMessage,
		models.SettingCustomerBanMessage:      DefaultCustomerBanMessage,
	}
}

// siteConfig is the gate's view of site_settings for one decision.
type siteConfig struct {
	blockVPN                bool
	blockTimezoneMismatch   bool
	blockAdvancedProtection bool
	vpnMessage              string
	geoMessage              string
	ipMessage               string
}

var decisionKeys = []string{
	models.SettingBlockVPN,
	models.SettingBlockTimezoneMismatch,
	models.SettingBlockAdvancedProtection,
	models.SettingVPNBanMessage,
	models.SettingGeoBanMessage,
	models.SettingIPBanMessage,
}

// loadConfig reads every key the decision needs in one query. A failed read
// leaves all flags disabled.
func (s *Service) loadConfig(ctx context.Context) siteConfig {
	values, err := s.settings.GetMany(ctx, decisionKeys...)
	if err != nil {
		s.logger.Warn("Failed to read gate settings, no blocking flags active", s.logger.Args("error", err))
		values = nil
	}
	return siteConfig{
		blockVPN:                values[models.SettingBlockVPN] == "true",
		blockTimezoneMismatch:   values[models.SettingBlockTimezoneMismatch] == "true",
		blockAdvancedProtection: values[models.SettingBlockAdvancedProtection] == "true",
		vpnMessage:              orDefault(values[models.SettingVPNBanMessage], DefaultVPNBanMessage),
		geoMessage:              orDefault(values[models.SettingGeoBanMessage], DefaultGeoBanMessage),
		ipMessage:               orDefault(values[models.SettingIPBanMessage], DefaultIPBanMessage),
	}
}

func (s *Service) customerMessage(ctx context.Context) string {
	value, _, err := s.settings.Get(ctx, models.SettingCustomerBanMessage)
	if err != nil {
		s.logger.Warn("Failed to read customer ban message", s.logger.Args("error", err))
	}
	return orDefault(value, DefaultCustomerBanMessage)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
