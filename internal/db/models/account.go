package models

import "time"

// Account stores one registered game account and its encrypted session token.
// (GuildID, UserID, GameID, Name) is the natural key.
type Account struct {
	ID              string `gorm:"primaryKey"` // UUID
	GuildID         string `gorm:"uniqueIndex:idx_account_natural;not null"`
	UserID          string `gorm:"uniqueIndex:idx_account_natural;not null"`
	GameID          string `gorm:"uniqueIndex:idx_account_natural;index;not null"`
	Name            string `gorm:"uniqueIndex:idx_account_natural;not null"`
	Token           string `gorm:"type:text;not null"` // sealed by internal/secret
	ExternalUID     *string
	Nickname        *string
	Rank            *int
	Region          *string
	IsActive        bool `gorm:"default:true"`
	CredentialStale bool `gorm:"default:false"`
	StaleReason     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
