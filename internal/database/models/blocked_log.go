package models

import (
	"time"
)

// BlockedLog records a denied access attempt. One row per session and reason.
type BlockedLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IPAddress    string    `gorm:"not null;index:idx_blocked_ip" json:"ip_address"`
	Country      string    `gorm:"index:idx_blocked_country" json:"country,omitempty"`
	City         string    `json:"city,omitempty"`
	Reason       string    `gorm:"not null" json:"reason"`
	UserAgent    string    `json:"user_agent,omitempty"`
	AttemptedURL string    `json:"attempted_url,omitempty"`
	BlockedAt    time.Time `gorm:"not null;index:idx_blocked_at" json:"blocked_at"`
}

func (BlockedLog) TableName() string {
	return "blocked_logs"
}
