package models

import "time"

// CheckinLog is the outcome of one account's check-in for one calendar day.
// Re-running a day overwrites the row.
type CheckinLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AccountID     string    `gorm:"uniqueIndex:idx_log_account_day;not null" json:"account_id"`
	CheckinDate   string    `gorm:"uniqueIndex:idx_log_account_day;not null" json:"checkin_date"` // 2006-01-02
	RunID         string    `json:"run_id"`
	Success       bool      `json:"success"`
	AlreadySigned bool      `json:"already_signed"`
	RewardName    string    `json:"reward_name,omitempty"`
	RewardCount   *int      `json:"reward_count,omitempty"`
	RewardIcon    string    `json:"reward_icon,omitempty"`
	TotalDays     *int      `json:"total_days,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Error         string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
