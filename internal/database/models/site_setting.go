package models

import (
	"time"
)

// Keys read by the access gate from site_settings
const (
	SettingBlockVPN                = "block_vpn"
	SettingBlockTimezoneMismatch   = "block_timezone_mismatch"
	SettingBlockAdvancedProtection = "block_advanced_protection"
	SettingVPNBanMessage           = "vpn_ban_message"
	SettingGeoBanMessage           = "geo_ban_message"
	SettingIPBanMessage            = "ip_ban_message"
	SettingCustomerBanMessage      = "customer_ban_message"
)

type SiteSetting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SiteSetting) TableName() string {
	return "site_settings"
}
