package checkin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pysugar/checkin-nexus/internal/games"
)

var testCatalog = []Reward{
	{Name: "Mora", Count: 5000},
	{Name: "Hero's Wit", Count: 2},
	{Name: "Fine Enhancement Ore", Count: 3},
	{Name: "Crystal", Count: 20, Icon: "crystal.png"},
	{Name: "Mora", Count: 8000},
}

func newTestOrchestrator(t *testing.T, store *fakeStore, sink *fakeSink, factory AdapterFactory, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{
		Store:    store,
		Adapters: factory,
		Now:      func() time.Time { return time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC) },
	}
	if sink != nil {
		cfg.Sink = sink
	}
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func twoAccountScenario() (*fakeStore, *fakeAdapter, map[string][]Account) {
	store := newFakeStore(testGame("genshin"))
	adapter := &fakeAdapter{
		status: map[string]SignStatus{
			"token-a": {IsSignedToday: false, TotalDaysSigned: 3},
			"token-b": {IsSignedToday: true, TotalDaysSigned: 7},
		},
		catalog: testCatalog,
		profile: map[string]Profile{"token-a": {ExternalUID: "800000001", Nickname: "Aether", Rank: 58, Region: "EU"}},
	}
	batches := map[string][]Account{
		"genshin": {
			{ID: "acc-a", Name: "A", GameID: "genshin", Token: "token-a", Scope: Scope{GuildID: "g1", UserID: "u1"}, Active: true},
			{ID: "acc-b", Name: "B", GameID: "genshin", Token: "token-b", Scope: Scope{GuildID: "g1", UserID: "u2"}, Active: true},
		},
	}
	return store, adapter, batches
}

func TestRun_EndToEndTwoAccounts(t *testing.T) {
	tests := []struct {
		name                string
		notifyAlreadySigned bool
		wantNotifications   int
	}{
		{name: "already-signed notifications off", notifyAlreadySigned: false, wantNotifications: 1},
		{name: "already-signed notifications on", notifyAlreadySigned: true, wantNotifications: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, adapter, batches := twoAccountScenario()
			sink := &fakeSink{}
			o := newTestOrchestrator(t, store, sink, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), func(c *Config) {
				c.NotifyAlreadySigned = tt.notifyAlreadySigned
			})

			summary := o.Run(context.Background(), batches)

			if summary.TotalSuccesses != 1 || summary.TotalAlreadySigned != 1 || summary.TotalFailures != 0 {
				t.Fatalf("unexpected totals %+v", summary)
			}
			if summary.RunID == "" || summary.Canceled {
				t.Fatalf("unexpected run metadata %+v", summary)
			}

			logA, ok := store.logFor("acc-a")
			if !ok || !logA.Success || logA.AlreadySigned || logA.Reward == nil {
				t.Fatalf("unexpected log for A: %+v", logA)
			}
			if logA.Reward.Name != "Crystal" || logA.Reward.Count != 20 || *logA.TotalDays != 4 {
				t.Fatalf("expected Crystal x20 on day 4, got %+v total=%d", logA.Reward, *logA.TotalDays)
			}
			if logA.Day != "2026-03-04" || logA.RunID != summary.RunID {
				t.Fatalf("unexpected day or run id: %+v", logA)
			}

			logB, ok := store.logFor("acc-b")
			if !ok || !logB.Success || !logB.AlreadySigned || logB.Reward != nil || *logB.TotalDays != 7 {
				t.Fatalf("unexpected log for B: %+v", logB)
			}

			if got := sink.count(); got != tt.wantNotifications {
				t.Fatalf("expected %d notifications, got %d", tt.wantNotifications, got)
			}
			first := sink.sent[0]
			if first.destination != "g1" || first.rendering.Color != ColorSuccess || first.rendering.ThumbnailURL != "crystal.png" {
				t.Fatalf("unexpected first notification: %+v", first)
			}

			outcomes := summary.PerGame["genshin"].Outcomes
			if outcomes[0].State != StateLoggedSuccess || outcomes[1].State != StateAlreadySigned {
				t.Fatalf("unexpected states %s, %s", outcomes[0].State, outcomes[1].State)
			}
			if store.profiles["acc-a"].Nickname != "Aether" {
				t.Fatalf("expected profile to be stored, got %+v", store.profiles)
			}
		})
	}
}

func TestRun_AlreadySignedSkipsSubmission(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	batches["genshin"] = batches["genshin"][1:]
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	o.Run(context.Background(), batches)

	if adapter.signCalls != 0 || adapter.profileCalls != 0 || adapter.catalogCalls != 0 {
		t.Fatalf("expected only a status check, got sign=%d profile=%d catalog=%d",
			adapter.signCalls, adapter.profileCalls, adapter.catalogCalls)
	}
}

func TestRun_SubmitReportingAlreadySigned(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	adapter.signed = map[string]bool{"token-a": false}
	batches["genshin"] = batches["genshin"][:1]
	o := newTestOrchestrator(t, store, &fakeSink{}, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	summary := o.Run(context.Background(), batches)

	out := summary.PerGame["genshin"].Outcomes[0]
	if out.State != StateAlreadySigned || out.Reward != nil || !out.AlreadySigned {
		t.Fatalf("expected already-signed without reward, got %+v", out)
	}
	if log, _ := store.logFor("acc-a"); log.Reward != nil || !log.AlreadySigned {
		t.Fatalf("expected already-signed log, got %+v", log)
	}
}

func TestRun_AdapterBuiltOncePerGame(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	adapter.status["token-b"] = SignStatus{TotalDaysSigned: 1}
	calls := map[string]int{}
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, calls), nil)

	summary := o.Run(context.Background(), batches)

	if summary.TotalSuccesses != 2 {
		t.Fatalf("expected two check-ins, got %+v", summary)
	}
	if calls["genshin"] != 1 {
		t.Fatalf("expected one adapter per game, got %d", calls["genshin"])
	}
}

func TestRun_UnknownGameSkipsBatch(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	batches["retired"] = []Account{{ID: "acc-x", Token: "t"}, {ID: "acc-y", Token: "t"}}
	calls := map[string]int{}
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, calls), nil)

	summary := o.Run(context.Background(), batches)

	res := summary.PerGame["retired"]
	if res == nil || !strings.Contains(res.Error, `unknown game "retired"`) || len(res.Outcomes) != 0 {
		t.Fatalf("expected one aggregated configuration error, got %+v", res)
	}
	if calls["retired"] != 0 {
		t.Fatal("no adapter should be built for an unknown game")
	}
	if _, ok := store.logFor("acc-x"); ok {
		t.Fatal("skipped accounts must not get log rows")
	}
	if summary.TotalSuccesses != 1 || summary.TotalAlreadySigned != 1 {
		t.Fatalf("other games must still run, got %+v", summary)
	}
}

func TestRun_DisabledGameAndFactoryError(t *testing.T) {
	disabled := testGame("honkai")
	disabled.Enabled = false
	store := newFakeStore(disabled, testGame("zenless"))
	batches := map[string][]Account{
		"honkai":  {{ID: "h1", Token: "t"}},
		"zenless": {{ID: "z1", Token: "t"}},
	}
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{}, nil), nil)

	summary := o.Run(context.Background(), batches)

	if !strings.Contains(summary.PerGame["honkai"].Error, "disabled") {
		t.Fatalf("expected disabled error, got %q", summary.PerGame["honkai"].Error)
	}
	if !strings.Contains(summary.PerGame["zenless"].Error, "no adapter") {
		t.Fatalf("expected factory error, got %q", summary.PerGame["zenless"].Error)
	}
}

func TestRun_PanicIsIsolated(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	adapter.panicOn = "token-a"
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	summary := o.Run(context.Background(), batches)

	outcomes := summary.PerGame["genshin"].Outcomes
	if len(outcomes) != 2 {
		t.Fatalf("expected both accounts processed, got %d", len(outcomes))
	}
	if outcomes[0].State != StateFailed || outcomes[0].ErrorKind != KindInternal {
		t.Fatalf("expected internal failure for A, got %+v", outcomes[0])
	}
	if outcomes[1].State != StateAlreadySigned {
		t.Fatalf("expected B to proceed, got %+v", outcomes[1])
	}
}

func TestRun_MalformedTokenFlagsCredential(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	adapter.errs = map[string]error{"profile:token-a": MalformedTokenError("profile", "cookie carries no ltuid_v2")}
	sink := &fakeSink{}
	o := newTestOrchestrator(t, store, sink, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	summary := o.Run(context.Background(), batches)

	out := summary.PerGame["genshin"].Outcomes[0]
	if out.State != StateFailed || out.ErrorKind != KindMalformedToken {
		t.Fatalf("expected malformed token failure, got %+v", out)
	}
	if adapter.signCalls != 0 {
		t.Fatal("sign-in must not be attempted when the profile fetch fails")
	}
	if _, ok := store.flagged["acc-a"]; !ok {
		t.Fatal("expected the credential to be flagged as stale")
	}
	if _, ok := store.profiles["acc-a"]; ok {
		t.Fatal("a malformed token must leave the cached profile untouched")
	}
	log, _ := store.logFor("acc-a")
	if log.Success || log.ErrorKind != KindMalformedToken || !strings.Contains(log.Error, "ltuid_v2") {
		t.Fatalf("unexpected failure log %+v", log)
	}
	if sink.count() != 0 {
		t.Fatalf("failures are not notified by default, got %d", sink.count())
	}
	if summary.TotalFailures != 1 {
		t.Fatalf("expected one failure, got %+v", summary)
	}
}

func TestRun_ClaimedRewardReplacesCatalogPrediction(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	batches["genshin"] = batches["genshin"][:1]
	claiming := &claimingAdapter{
		fakeAdapter: adapter,
		claimed:     map[string]Reward{"token-a": {Name: "Oroberyl", Count: 150, Icon: "o.png"}},
	}
	o := newTestOrchestrator(t, store, nil, func(d games.Descriptor) (Adapter, error) { return claiming, nil }, nil)

	out := o.Run(context.Background(), batches).PerGame["genshin"].Outcomes[0]
	if out.State != StateLoggedSuccess || out.Reward == nil || out.Reward.Name != "Oroberyl" || out.Reward.Count != 150 {
		t.Fatalf("expected the claimed reward, got %+v", out)
	}
	log, _ := store.logFor("acc-a")
	if log.Reward == nil || log.Reward.Name != "Oroberyl" {
		t.Fatalf("expected the claimed reward to be logged, got %+v", log)
	}

	// Without a claim the catalog prediction stands.
	store, adapter, batches = twoAccountScenario()
	batches["genshin"] = batches["genshin"][:1]
	claiming = &claimingAdapter{fakeAdapter: adapter}
	o = newTestOrchestrator(t, store, nil, func(d games.Descriptor) (Adapter, error) { return claiming, nil }, nil)
	out = o.Run(context.Background(), batches).PerGame["genshin"].Outcomes[0]
	if out.Reward == nil || *out.Reward != testCatalog[3] {
		t.Fatalf("expected the catalog reward, got %+v", out.Reward)
	}
}

func TestRun_FailureNotificationsWhenEnabled(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	batches["genshin"] = batches["genshin"][:1]
	adapter.errs = map[string]error{"sign:token-a": TransportError("sign-in", errors.New("connection reset"))}
	sink := &fakeSink{}
	o := newTestOrchestrator(t, store, sink, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), func(c *Config) {
		c.NotifyFailures = true
	})

	o.Run(context.Background(), batches)

	if sink.count() != 1 || sink.sent[0].rendering.Color != ColorFailed {
		t.Fatalf("expected one failure notification, got %+v", sink.sent)
	}
	if _, ok := store.flagged["acc-a"]; ok {
		t.Fatal("transport failures must not flag the credential")
	}
}

func TestRun_RewardOutsideCatalogFails(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	adapter.status["token-a"] = SignStatus{TotalDaysSigned: len(testCatalog)}
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	summary := o.Run(context.Background(), batches)

	out := summary.PerGame["genshin"].Outcomes[0]
	if out.State != StateFailed || out.ErrorKind != KindMalformedResponse {
		t.Fatalf("expected malformed response, got %+v", out)
	}
	if adapter.signCalls != 0 {
		t.Fatal("sign-in must not be attempted without a reward")
	}
}

func TestRun_PersistFailureAfterSigninIsFailure(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	batches["genshin"] = batches["genshin"][:1]
	store.upsertErr = errors.New("disk full")
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)

	summary := o.Run(context.Background(), batches)

	out := summary.PerGame["genshin"].Outcomes[0]
	if out.State != StateFailed || out.ErrorKind != KindInternal {
		t.Fatalf("expected internal failure, got %+v", out)
	}
	if summary.TotalSuccesses != 0 {
		t.Fatalf("an unrecorded sign-in is not a success: %+v", summary)
	}
}

func TestRun_NotificationErrorsDoNotFailOutcome(t *testing.T) {
	for _, sink := range []*fakeSink{{err: errors.New("webhook down")}, {panic: true}} {
		store, adapter, batches := twoAccountScenario()
		o := newTestOrchestrator(t, store, sink, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)
		summary := o.Run(context.Background(), batches)
		if summary.TotalSuccesses != 1 {
			t.Fatalf("expected the sign-in to count despite the sink, got %+v", summary)
		}
	}
}

func TestRun_CancellationStopsBetweenAccounts(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter.onSign = func(string) { cancel() }
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), func(c *Config) {
		c.AccountDelay = time.Hour
	})

	done := make(chan RunSummary, 1)
	go func() { done <- o.Run(ctx, batches) }()

	select {
	case summary := <-done:
		if !summary.Canceled {
			t.Fatal("expected the run to report cancellation")
		}
		outcomes := summary.PerGame["genshin"].Outcomes
		if len(outcomes) != 1 || outcomes[0].State != StateLoggedSuccess {
			t.Fatalf("expected the in-flight account to complete, got %+v", outcomes)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRun_ParallelGames(t *testing.T) {
	store := newFakeStore(testGame("genshin"), testGame("starrail"))
	adapters := map[string]*fakeAdapter{
		"genshin":  {status: map[string]SignStatus{"g": {TotalDaysSigned: 0}}, catalog: testCatalog},
		"starrail": {status: map[string]SignStatus{"s": {TotalDaysSigned: 1}}, catalog: testCatalog},
	}
	batches := map[string][]Account{
		"genshin":  {{ID: "g1", Token: "g"}},
		"starrail": {{ID: "s1", Token: "s"}},
	}
	o := newTestOrchestrator(t, store, nil, factoryFor(adapters, nil), func(c *Config) { c.ParallelGames = true })

	summary := o.Run(context.Background(), batches)

	if summary.TotalSuccesses != 2 || len(summary.PerGame) != 2 {
		t.Fatalf("expected both games signed, got %+v", summary)
	}
}

func TestRun_DayUsesConfiguredLocation(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	loc := time.FixedZone("UTC+8", 8*3600)
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), func(c *Config) {
		c.Location = loc
	})

	o.Run(context.Background(), batches)

	if log, _ := store.logFor("acc-a"); log.Day != "2026-03-05" {
		t.Fatalf("expected the next day in UTC+8, got %s", log.Day)
	}
}

func TestRunAll(t *testing.T) {
	store, adapter, batches := twoAccountScenario()
	o := newTestOrchestrator(t, store, nil, factoryFor(map[string]*fakeAdapter{"genshin": adapter}, nil), nil)
	if _, err := o.RunAll(context.Background()); err == nil {
		t.Fatal("expected the store error to surface")
	}

	store.accounts = batches
	summary, err := o.RunAll(context.Background())
	if err != nil || summary.TotalSuccesses != 1 {
		t.Fatalf("unexpected result %+v %v", summary, err)
	}
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	if _, err := NewOrchestrator(Config{}); err == nil {
		t.Fatal("expected missing store error")
	}
	if _, err := NewOrchestrator(Config{Store: newFakeStore()}); err == nil {
		t.Fatal("expected missing adapter factory error")
	}
}
