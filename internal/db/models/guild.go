package models

import "time"

// Guild is a chat server that owns accounts and receives their notifications.
type Guild struct {
	ID         string `gorm:"primaryKey"`
	Name       string
	WebhookURL string
	IsActive   bool `gorm:"default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GuildSetting is a per-guild key/value option, e.g. channel_checkin.
type GuildSetting struct {
	GuildID   string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
