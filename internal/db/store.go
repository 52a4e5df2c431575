package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/db/models"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/secret"
	"github.com/pysugar/checkin-nexus/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingCheckinChannel names the guild setting holding the bot channel for
// check-in notifications.
const SettingCheckinChannel = "channel_checkin"

var ErrAccountNotFound = errors.New("account not found")

// Store implements the orchestrator's credential store on gorm.
type Store struct {
	db      *gorm.DB
	catalog *games.Catalog
	box     *secret.Box
}

func NewStore(db *gorm.DB, catalog *games.Catalog, box *secret.Box) *Store {
	return &Store{db: db, catalog: catalog, box: box}
}

// Registration is the input of RegisterAccount.
type Registration struct {
	Scope  checkin.Scope
	GameID string
	Name   string
	Token  string
}

// Destination is where a guild's notifications go.
type Destination struct {
	ChannelID  string
	WebhookURL string
}

// GetAccountsForCheckin returns active accounts grouped by game. Accounts
// flagged with a stale credential are left out until re-registered.
func (s *Store) GetAccountsForCheckin(ctx context.Context) (map[string][]checkin.Account, error) {
	var rows []models.Account
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND credential_stale = ?", true, false).
		Order("game_id, created_at, id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	batches := make(map[string][]checkin.Account)
	for _, row := range rows {
		acc := s.toAccount(row)
		batches[acc.GameID] = append(batches[acc.GameID], acc)
	}
	return batches, nil
}

// UpsertCheckinLog writes the (account, day) row so it reflects entry.
func (s *Store) UpsertCheckinLog(ctx context.Context, entry checkin.LogEntry) error {
	row := models.CheckinLog{
		AccountID:     entry.AccountID,
		CheckinDate:   entry.Day,
		RunID:         entry.RunID,
		Success:       entry.Success,
		AlreadySigned: entry.AlreadySigned,
		TotalDays:     entry.TotalDays,
		ErrorKind:     string(entry.ErrorKind),
		Error:         entry.Error,
	}
	columns := []string{"run_id", "success", "already_signed", "total_days", "error_kind", "error", "updated_at"}
	if entry.Reward != nil {
		count := entry.Reward.Count
		row.RewardName = entry.Reward.Name
		row.RewardCount = &count
		row.RewardIcon = entry.Reward.Icon
	}
	// A successful entry without a reward (already signed) keeps the day's
	// reward. A failure clears it.
	if entry.Reward != nil || !entry.Success {
		columns = append(columns, "reward_name", "reward_count", "reward_icon")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "checkin_date"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert check-in log: %w", err)
	}
	return nil
}

func (s *Store) UpdateProfileFields(ctx context.Context, accountID string, p checkin.Profile) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Updates(map[string]any{
		"external_uid": p.ExternalUID,
		"nickname":     p.Nickname,
		"rank":         p.Rank,
		"region":       p.Region,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *Store) GetGameDescriptor(ctx context.Context, gameID string) (games.Descriptor, bool, error) {
	if s.catalog == nil {
		return games.Descriptor{}, false, errors.New("game catalog is not loaded")
	}
	d, ok := s.catalog.Get(gameID)
	return d, ok, nil
}

func (s *Store) FlagStaleCredential(ctx context.Context, accountID, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Updates(map[string]any{
		"credential_stale": true,
		"stale_reason":     reason,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to flag credential: %w", err)
	}
	return nil
}

// RegisterAccount creates an account, or rotates the token of the account
// with the same natural key and reactivates it.
func (s *Store) RegisterAccount(ctx context.Context, r Registration) (checkin.Account, error) {
	gameID := strings.ToLower(strings.TrimSpace(r.GameID))
	if _, ok, _ := s.GetGameDescriptor(ctx, gameID); !ok {
		return checkin.Account{}, fmt.Errorf("unknown game %q", r.GameID)
	}
	if r.Scope.GuildID == "" || r.Scope.UserID == "" || strings.TrimSpace(r.Name) == "" {
		return checkin.Account{}, errors.New("guild, user and account name are required")
	}
	if strings.TrimSpace(r.Token) == "" {
		return checkin.Account{}, errors.New("session token is required")
	}
	sealed, err := s.box.Seal(strings.TrimSpace(r.Token))
	if err != nil {
		return checkin.Account{}, err
	}

	var row models.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("guild_id = ? AND user_id = ? AND game_id = ? AND name = ?",
			r.Scope.GuildID, r.Scope.UserID, gameID, r.Name).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Account{
				ID:       uuid.New().String(),
				GuildID:  r.Scope.GuildID,
				UserID:   r.Scope.UserID,
				GameID:   gameID,
				Name:     r.Name,
				Token:    sealed,
				IsActive: true,
			}
			return tx.Create(&row).Error
		case err != nil:
			return err
		}
		row.Token = sealed
		row.IsActive = true
		row.CredentialStale = false
		row.StaleReason = ""
		return tx.Model(&row).Select("token", "is_active", "credential_stale", "stale_reason").Updates(&row).Error
	})
	if err != nil {
		return checkin.Account{}, fmt.Errorf("failed to register account: %w", err)
	}
	log.Printf("✅ Registered %s account %q for user %s (token %s)", gameID, r.Name, r.Scope.UserID, util.MaskToken(r.Token))
	return s.toAccount(row), nil
}

// RemoveAccount deactivates an account. Rows are never deleted.
func (s *Store) RemoveAccount(ctx context.Context, accountID string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to remove account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RecentLogs returns the newest log rows of an account.
func (s *Store) RecentLogs(ctx context.Context, accountID string, limit int) ([]models.CheckinLog, error) {
	if limit <= 0 {
		limit = 30
	}
	var logs []models.CheckinLog
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("checkin_date DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// RegisterGuild creates or updates a guild.
func (s *Store) RegisterGuild(ctx context.Context, guild models.Guild) error {
	guild.IsActive = true
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "webhook_url", "is_active", "updated_at"}),
	}).Create(&guild).Error
	if err != nil {
		return fmt.Errorf("failed to register guild: %w", err)
	}
	return nil
}

func (s *Store) SetGuildSetting(ctx context.Context, guildID, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.GuildSetting{GuildID: guildID, Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to save guild setting: %w", err)
	}
	return nil
}

// GuildSetting returns the value of key, or "" when unset.
func (s *Store) GuildSetting(ctx context.Context, guildID, key string) (string, error) {
	var setting models.GuildSetting
	err := s.db.WithContext(ctx).Where("guild_id = ? AND key = ?", guildID, key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// ResolveDestination looks up where notifications for guildID go. Unknown
// or inactive guilds resolve to an empty Destination.
func (s *Store) ResolveDestination(ctx context.Context, guildID string) (Destination, error) {
	var guild models.Guild
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", guildID, true).First(&guild).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Destination{}, nil
	}
	if err != nil {
		return Destination{}, fmt.Errorf("failed to load guild: %w", err)
	}
	channel, err := s.GuildSetting(ctx, guildID, SettingCheckinChannel)
	if err != nil {
		return Destination{}, fmt.Errorf("failed to load guild settings: %w", err)
	}
	return Destination{ChannelID: channel, WebhookURL: guild.WebhookURL}, nil
}

// toAccount converts a row, opening the sealed token. A token that cannot be
// opened is left empty so the run reports it as malformed.
func (s *Store) toAccount(row models.Account) checkin.Account {
	token, err := s.box.Open(row.Token)
	if err != nil {
		log.Printf("⚠️ Account %s: cannot open session token: %v", row.ID, err)
		token = ""
	}
	acc := checkin.Account{
		ID:     row.ID,
		Scope:  checkin.Scope{GuildID: row.GuildID, UserID: row.UserID},
		GameID: row.GameID,
		Name:   row.Name,
		Token:  token,
		Active: row.IsActive,
	}
	if row.ExternalUID != nil {
		acc.Profile = &checkin.Profile{ExternalUID: *row.ExternalUID}
		if row.Nickname != nil {
			acc.Profile.Nickname = *row.Nickname
		}
		if row.Rank != nil {
			acc.Profile.Rank = *row.Rank
		}
		if row.Region != nil {
			acc.Profile.Region = *row.Region
		}
	}
	return acc
}
