package checkin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/logging"
	"github.com/pysugar/checkin-nexus/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAccountDelay  = 2 * time.Second
	DefaultNotifyTimeout = 10 * time.Second

	dayLayout     = "2006-01-02"
	maxMessageLen = 500
)

// Config wires an Orchestrator. Store and Adapters are required.
type Config struct {
	Store    CredentialStore
	Sink     NotificationSink
	Adapters AdapterFactory
	Renderer Renderer

	// AccountDelay is slept between two accounts of the same game. Zero
	// disables the pause.
	AccountDelay  time.Duration
	NotifyTimeout time.Duration

	NotifyAlreadySigned bool
	NotifyFailures      bool
	// ParallelGames runs game batches concurrently. Accounts of one game are
	// always processed one at a time.
	ParallelGames bool

	// Location decides the calendar day a log row belongs to.
	Location *time.Location
	Now      func() time.Time
}

// Orchestrator drives the daily check-in over every registered account.
type Orchestrator struct {
	cfg    Config
	tracer trace.Tracer
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator: credential store is required")
	}
	if cfg.Adapters == nil {
		return nil, fmt.Errorf("orchestrator: adapter factory is required")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = DefaultRenderer
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/pysugar/checkin-nexus/internal/checkin"),
	}, nil
}

// RunAll loads the account batch from the store and runs it.
func (o *Orchestrator) RunAll(ctx context.Context) (RunSummary, error) {
	batches, err := o.cfg.Store.GetAccountsForCheckin(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to load accounts: %w", err)
	}
	return o.Run(ctx, batches), nil
}

// Run processes every account in batches, keyed by game ID. It never fails as
// a whole; per-game and per-account failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, batches map[string][]Account) RunSummary {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.WithRunID(ctx, runID)
	}
	ctx, span := o.tracer.Start(ctx, "checkin.run", trace.WithAttributes(
		attribute.String("checkin.run_id", runID),
		attribute.Int("checkin.games", len(batches)),
	))
	defer span.End()

	summary := RunSummary{
		RunID:     runID,
		StartedAt: o.cfg.Now(),
		PerGame:   make(map[string]*GameResult, len(batches)),
	}

	gameIDs := make([]string, 0, len(batches))
	for id := range batches {
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)
	logging.Printf(ctx, "🔄 Check-in run started (%d games)", len(gameIDs))

	results := make([]*GameResult, len(gameIDs))
	canceled := make([]bool, len(gameIDs))
	if o.cfg.ParallelGames {
		var g errgroup.Group
		for i, id := range gameIDs {
			g.Go(func() error {
				results[i], canceled[i] = o.runGame(ctx, id, batches[id])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, id := range gameIDs {
			if ctx.Err() != nil {
				canceled[i] = true
				break
			}
			results[i], canceled[i] = o.runGame(ctx, id, batches[id])
		}
	}

	for i, res := range results {
		if canceled[i] {
			summary.Canceled = true
		}
		if res == nil {
			continue
		}
		summary.PerGame[res.GameID] = res
		for _, out := range res.Outcomes {
			switch out.State {
			case StateLoggedSuccess:
				summary.TotalSuccesses++
			case StateAlreadySigned:
				summary.TotalAlreadySigned++
			default:
				summary.TotalFailures++
			}
		}
	}
	summary.FinishedAt = o.cfg.Now()

	span.SetAttributes(
		attribute.Int("checkin.successes", summary.TotalSuccesses),
		attribute.Int("checkin.already_signed", summary.TotalAlreadySigned),
		attribute.Int("checkin.failures", summary.TotalFailures),
		attribute.Bool("checkin.canceled", summary.Canceled),
	)
	logging.Printf(ctx, "✅ Check-in run finished: %d signed, %d already signed, %d failed (canceled=%v)",
		summary.TotalSuccesses, summary.TotalAlreadySigned, summary.TotalFailures, summary.Canceled)
	return summary
}

// runGame processes one game's batch with a single adapter. The second
// return value reports whether the run was canceled before the batch ended.
func (o *Orchestrator) runGame(ctx context.Context, gameID string, accounts []Account) (*GameResult, bool) {
	ctx, span := o.tracer.Start(ctx, "checkin.game", trace.WithAttributes(
		attribute.String("checkin.game", gameID),
		attribute.Int("checkin.accounts", len(accounts)),
	))
	defer span.End()

	result := &GameResult{GameID: gameID}
	desc, adapter, err := o.prepareGame(ctx, gameID)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "game skipped")
		logging.Printf(ctx, "❌ [%s] Skipping %d accounts: %v", gameID, len(accounts), err)
		return result, false
	}

	logging.Printf(ctx, "🔄 [%s] Checking in %d accounts", gameID, len(accounts))
	for i, acc := range accounts {
		if ctx.Err() != nil {
			logging.Printf(ctx, "⚠️ [%s] Run canceled, %d accounts left unprocessed", gameID, len(accounts)-i)
			return result, true
		}
		if i > 0 && o.cfg.AccountDelay > 0 {
			if err := sleepContext(ctx, o.cfg.AccountDelay); err != nil {
				logging.Printf(ctx, "⚠️ [%s] Run canceled, %d accounts left unprocessed", gameID, len(accounts)-i)
				return result, true
			}
		}
		// Once started, an account runs to completion even if the run is canceled.
		result.Outcomes = append(result.Outcomes, o.processAccount(context.WithoutCancel(ctx), adapter, desc, acc))
	}
	return result, false
}

func (o *Orchestrator) prepareGame(ctx context.Context, gameID string) (games.Descriptor, Adapter, error) {
	desc, ok, err := o.cfg.Store.GetGameDescriptor(ctx, gameID)
	if err != nil {
		return games.Descriptor{}, nil, ConfigurationError(fmt.Sprintf("failed to load game %q", gameID), err)
	}
	if !ok {
		return games.Descriptor{}, nil, ConfigurationError(fmt.Sprintf("unknown game %q", gameID), nil)
	}
	if !desc.Enabled {
		return games.Descriptor{}, nil, ConfigurationError(fmt.Sprintf("game %q is disabled", gameID), nil)
	}
	adapter, err := o.cfg.Adapters(desc)
	if err != nil {
		return games.Descriptor{}, nil, ConfigurationError(fmt.Sprintf("no adapter for game %q", gameID), err)
	}
	return desc, adapter, nil
}

type attempt struct {
	status  SignStatus
	profile *Profile
	reward  *Reward
}

// processAccount runs the state machine for one account. Nothing that
// happens inside escapes as an error or panic.
func (o *Orchestrator) processAccount(ctx context.Context, adapter Adapter, desc games.Descriptor, acc Account) (out Outcome) {
	ctx, span := o.tracer.Start(ctx, "checkin.account", trace.WithAttributes(
		attribute.String("checkin.game", desc.ID),
		attribute.String("checkin.account_id", acc.ID),
	))
	out = Outcome{AccountID: acc.ID, AccountName: acc.Name, GameID: desc.ID, State: StatePending}
	defer func() {
		if r := recover(); r != nil {
			err := &Error{Kind: KindInternal, Op: "process account", Message: fmt.Sprintf("panic: %v", r)}
			out = o.finishFailed(ctx, desc, acc, out, err)
		}
		span.SetAttributes(attribute.String("checkin.state", string(out.State)))
		if out.State == StateFailed {
			span.SetStatus(codes.Error, out.Message)
		}
		span.End()
	}()

	m := newMachine()
	a, err := o.attempt(ctx, adapter, acc, m)
	if err != nil {
		return o.finishFailed(ctx, desc, acc, out, err)
	}

	switch m.state {
	case StateAlreadySigned:
		return o.finishAlreadySigned(ctx, desc, acc, out, a)
	case StateSignedIn:
		return o.finishSignedIn(ctx, desc, acc, out, a, m)
	default:
		return o.finishFailed(ctx, desc, acc, out, &Error{Kind: KindInternal, Op: "process account", Message: "ended in state " + string(m.state)})
	}
}

// attempt performs the upstream steps: status, then profile, catalog and
// sign-in for accounts that still need it.
func (o *Orchestrator) attempt(ctx context.Context, adapter Adapter, acc Account, m *machine) (attempt, error) {
	var a attempt

	status, err := adapter.FetchSignStatus(ctx, acc.Token)
	if err != nil {
		return a, err
	}
	a.status = status
	if err := m.advance(StateStatusChecked); err != nil {
		return a, err
	}
	if status.IsSignedToday {
		return a, m.advance(StateAlreadySigned)
	}

	profile, err := adapter.FetchProfile(ctx, acc.Token)
	if err != nil {
		return a, err
	}
	a.profile = &profile

	catalog, err := adapter.FetchRewardCatalog(ctx, acc.Token)
	if err != nil {
		return a, err
	}
	reward, err := RewardForDay(catalog, status.TotalDaysSigned)
	if err != nil {
		return a, err
	}
	a.reward = &reward
	if err := m.advance(StateRewardDetermined); err != nil {
		return a, err
	}

	signed, err := adapter.SubmitSignin(ctx, acc.Token)
	if err != nil {
		return a, err
	}
	if !signed {
		a.reward = nil
		return a, m.advance(StateAlreadySigned)
	}
	if reporter, ok := adapter.(ClaimReporter); ok {
		if claimed, ok := reporter.ClaimedReward(acc.Token); ok {
			a.reward = &claimed
		}
	}
	return a, m.advance(StateSignedIn)
}

func (o *Orchestrator) finishAlreadySigned(ctx context.Context, desc games.Descriptor, acc Account, out Outcome, a attempt) Outcome {
	total := a.status.TotalDaysSigned
	out.State = StateAlreadySigned
	out.Success = true
	out.AlreadySigned = true
	out.TotalDays = total
	out.Message = desc.SignedMessage
	out.FinishedAt = o.cfg.Now()

	if err := o.persistLog(ctx, LogEntry{
		AccountID:     acc.ID,
		Success:       true,
		AlreadySigned: true,
		TotalDays:     &total,
	}, out.FinishedAt); err != nil {
		logging.Printf(ctx, "⚠️ [%s] %s: failed to record already-signed log: %v", desc.ID, acc.Name, err)
	}
	logging.Printf(ctx, "⚠️ [%s] %s: already signed in today (%d days)", desc.ID, acc.Name, total)

	if o.cfg.NotifyAlreadySigned {
		o.notify(ctx, desc, acc, out)
	}
	return out
}

func (o *Orchestrator) finishSignedIn(ctx context.Context, desc games.Descriptor, acc Account, out Outcome, a attempt, m *machine) Outcome {
	total := a.status.TotalDaysSigned + 1
	out.Reward = a.reward
	out.Profile = a.profile
	out.TotalDays = total
	out.FinishedAt = o.cfg.Now()

	if err := o.persistLog(ctx, LogEntry{
		AccountID: acc.ID,
		Success:   true,
		Reward:    a.reward,
		TotalDays: &total,
	}, out.FinishedAt); err != nil {
		return o.finishFailed(ctx, desc, acc, out, &Error{Kind: KindInternal, Op: "record check-in", Message: "signed in but the log could not be written", Cause: err})
	}
	if a.profile != nil {
		if err := o.cfg.Store.UpdateProfileFields(ctx, acc.ID, *a.profile); err != nil {
			logging.Printf(ctx, "⚠️ [%s] %s: failed to update profile: %v", desc.ID, acc.Name, err)
		}
	}
	if err := m.advance(StateLoggedSuccess); err != nil {
		return o.finishFailed(ctx, desc, acc, out, err)
	}

	out.State = StateLoggedSuccess
	out.Success = true
	out.Message = desc.SuccessMessage
	logging.Printf(ctx, "✅ [%s] %s: checked in, reward %s x%d (%d days)", desc.ID, acc.Name, a.reward.Name, a.reward.Count, total)
	o.notify(ctx, desc, acc, out)
	return out
}

func (o *Orchestrator) finishFailed(ctx context.Context, desc games.Descriptor, acc Account, out Outcome, err error) Outcome {
	out.State = StateFailed
	out.Success = false
	out.AlreadySigned = false
	out.Reward = nil
	out.ErrorKind = KindOf(err)
	out.Message = util.TruncateLog(err.Error(), maxMessageLen)
	out.FinishedAt = o.cfg.Now()

	if perr := o.persistLog(ctx, LogEntry{
		AccountID: acc.ID,
		Success:   false,
		ErrorKind: out.ErrorKind,
		Error:     out.Message,
	}, out.FinishedAt); perr != nil {
		logging.Printf(ctx, "⚠️ [%s] %s: failed to record failure log: %v", desc.ID, acc.Name, perr)
	}
	logging.Printf(ctx, "❌ [%s] %s: check-in failed (%s): %s", desc.ID, acc.Name, out.ErrorKind, out.Message)

	if IsStaleCredential(err) {
		if flagger, ok := o.cfg.Store.(CredentialFlagger); ok {
			if ferr := flagger.FlagStaleCredential(ctx, acc.ID, out.Message); ferr != nil {
				logging.Printf(ctx, "⚠️ [%s] %s: failed to flag stale credential: %v", desc.ID, acc.Name, ferr)
			} else {
				logging.Printf(ctx, "🔒 [%s] %s: credential flagged as stale", desc.ID, acc.Name)
			}
		}
	}

	if o.cfg.NotifyFailures {
		o.notify(ctx, desc, acc, out)
	}
	return out
}

// persistLog writes the day's row for the calendar day of at.
func (o *Orchestrator) persistLog(ctx context.Context, entry LogEntry, at time.Time) error {
	entry.Day = at.In(o.cfg.Location).Format(dayLayout)
	entry.RunID = logging.RunID(ctx)
	return o.cfg.Store.UpsertCheckinLog(ctx, entry)
}

// notify makes one delivery attempt. Errors and panics stop here.
func (o *Orchestrator) notify(ctx context.Context, desc games.Descriptor, acc Account, out Outcome) {
	if o.cfg.Sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Printf(ctx, "❌ [%s] %s: notification panicked: %v", desc.ID, acc.Name, r)
		}
	}()

	nctx, cancel := context.WithTimeout(ctx, o.cfg.NotifyTimeout)
	defer cancel()

	delivered, err := o.cfg.Sink.Notify(nctx, acc.Destination(), o.cfg.Renderer(out, desc, acc))
	switch {
	case err != nil:
		logging.Printf(ctx, "⚠️ [%s] %s: notification failed: %v", desc.ID, acc.Name, err)
	case !delivered:
		logging.Printf(ctx, "⚠️ [%s] %s: notification not delivered (no destination)", desc.ID, acc.Name)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
