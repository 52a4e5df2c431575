package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/pysugar/checkin-nexus/internal/games"
)

// Scope identifies who owns an account.
type Scope struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
}

// Profile is the in-game identity fetched from upstream.
type Profile struct {
	ExternalUID string `json:"external_uid"`
	Nickname    string `json:"nickname"`
	Rank        int    `json:"rank"`
	Region      string `json:"region"`
}

// Account is one registered game account, with its session token decrypted.
type Account struct {
	ID     string
	Scope  Scope
	GameID string
	Name   string
	Token  string
	// Profile is nil until the first successful check-in.
	Profile *Profile
	Active  bool
}

// Destination returns the opaque notification destination for the account.
func (a Account) Destination() string {
	return a.Scope.GuildID
}

type Reward struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Icon  string `json:"icon,omitempty"`
}

type SignStatus struct {
	IsSignedToday   bool
	TotalDaysSigned int
}

// Outcome is the result of processing one account in one run.
type Outcome struct {
	AccountID     string    `json:"account_id"`
	AccountName   string    `json:"account_name"`
	GameID        string    `json:"game_id"`
	State         State     `json:"state"`
	Success       bool      `json:"success"`
	AlreadySigned bool      `json:"already_signed"`
	Reward        *Reward   `json:"reward,omitempty"`
	TotalDays     int       `json:"total_days"`
	ErrorKind     Kind      `json:"error_kind,omitempty"`
	Message       string    `json:"message,omitempty"`
	Profile       *Profile  `json:"profile,omitempty"`
	FinishedAt    time.Time `json:"finished_at"`
}

// LogEntry is the per-account per-day record handed to the store.
type LogEntry struct {
	AccountID     string
	Day           string // 2006-01-02 in the configured timezone
	RunID         string
	Success       bool
	AlreadySigned bool
	Reward        *Reward
	TotalDays     *int
	ErrorKind     Kind
	Error         string
}

// GameResult aggregates one game's batch. Error is set when the whole batch
// was skipped.
type GameResult struct {
	GameID   string    `json:"game_id"`
	Outcomes []Outcome `json:"outcomes"`
	Error    string    `json:"error,omitempty"`
}

type RunSummary struct {
	RunID              string                 `json:"run_id"`
	StartedAt          time.Time              `json:"started_at"`
	FinishedAt         time.Time              `json:"finished_at"`
	TotalSuccesses     int                    `json:"total_successes"`
	TotalAlreadySigned int                    `json:"total_already_signed"`
	TotalFailures      int                    `json:"total_failures"`
	Canceled           bool                   `json:"canceled"`
	PerGame            map[string]*GameResult `json:"per_game"`
}

// Adapter speaks one game's check-in protocol. An adapter lives for one run
// and serves every account of its game in that run.
type Adapter interface {
	FetchSignStatus(ctx context.Context, token string) (SignStatus, error)
	// FetchRewardCatalog hits the upstream at most once per adapter.
	FetchRewardCatalog(ctx context.Context, token string) ([]Reward, error)
	FetchProfile(ctx context.Context, token string) (Profile, error)
	// SubmitSignin returns false without error when the upstream reports the
	// account was already signed in.
	SubmitSignin(ctx context.Context, token string) (bool, error)
}

// ClaimReporter is implemented by adapters whose sign-in response names the
// granted reward. A reported reward replaces the catalog prediction.
type ClaimReporter interface {
	ClaimedReward(token string) (Reward, bool)
}

// AdapterFactory builds the adapter for a game descriptor.
type AdapterFactory func(d games.Descriptor) (Adapter, error)

// CredentialStore is the persistence collaborator of a run.
type CredentialStore interface {
	GetAccountsForCheckin(ctx context.Context) (map[string][]Account, error)
	UpsertCheckinLog(ctx context.Context, entry LogEntry) error
	UpdateProfileFields(ctx context.Context, accountID string, p Profile) error
	GetGameDescriptor(ctx context.Context, gameID string) (games.Descriptor, bool, error)
}

// CredentialFlagger is implemented by stores that can mark a token as
// needing replacement.
type CredentialFlagger interface {
	FlagStaleCredential(ctx context.Context, accountID, reason string) error
}

// NotificationSink delivers a rendered outcome. Delivery is best effort.
type NotificationSink interface {
	Notify(ctx context.Context, destination string, r Rendering) (bool, error)
}

// RewardForDay picks the reward for an account that has signed totalDays
// times this period.
func RewardForDay(catalog []Reward, totalDays int) (Reward, error) {
	if totalDays < 0 || totalDays >= len(catalog) {
		return Reward{}, MalformedResponseError("reward lookup",
			"total days signed outside reward catalog", fmt.Errorf("index %d, catalog length %d", totalDays, len(catalog)))
	}
	return catalog[totalDays], nil
}
