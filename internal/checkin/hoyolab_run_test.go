package checkin_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/upstream"
	"github.com/pysugar/checkin-nexus/internal/upstream/registry"
)

type memStore struct {
	mu   sync.Mutex
	desc games.Descriptor
	logs []checkin.LogEntry
}

func (s *memStore) GetAccountsForCheckin(ctx context.Context) (map[string][]checkin.Account, error) {
	return nil, nil
}

func (s *memStore) UpsertCheckinLog(ctx context.Context, entry checkin.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *memStore) UpdateProfileFields(ctx context.Context, accountID string, p checkin.Profile) error {
	return nil
}

func (s *memStore) GetGameDescriptor(ctx context.Context, gameID string) (games.Descriptor, bool, error) {
	if gameID != s.desc.ID {
		return games.Descriptor{}, false, nil
	}
	return s.desc, true, nil
}

func TestRun_HoyolabCatalogFetchedOncePerRun(t *testing.T) {
	var homeHits, signHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			w.Write([]byte(`{"retcode":0,"message":"OK","data":{"total_sign_day":1,"is_sign":false}}`))
		case "/home":
			homeHits.Add(1)
			w.Write([]byte(`{"retcode":0,"message":"OK","data":{"awards":[{"name":"Stellar Jade","cnt":20},{"name":"Credit","cnt":5000}]}}`))
		case "/profile":
			fmt.Fprintf(w, `{"retcode":0,"message":"OK","data":{"list":[{"game_id":6,"game_role_id":"%s","nickname":"Trailblazer","level":70,"region":"prod_official_usa"}]}}`, r.URL.Query().Get("uid"))
		case "/sign":
			signHits.Add(1)
			w.Write([]byte(`{"retcode":0,"message":"OK","data":{"code":"ok"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := &memStore{desc: games.Descriptor{
		ID:             "starrail",
		DisplayName:    "Honkai: Star Rail",
		Protocol:       games.ProtocolHoyolab,
		Enabled:        true,
		ActID:          "e202303301540311",
		GameID:         6,
		SignGameHeader: "hkrpg",
		URLs:           games.URLs{Info: srv.URL + "/info", Home: srv.URL + "/home", Sign: srv.URL + "/sign", Profile: srv.URL + "/profile"},
		Codes:          games.Codes{AlreadySigned: []int{-5003}},
	}}
	o, err := checkin.NewOrchestrator(checkin.Config{
		Store:    store,
		Adapters: registry.Factory(upstream.NewClient(time.Second), time.Millisecond),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	accounts := make([]checkin.Account, 3)
	for i := range accounts {
		accounts[i] = checkin.Account{
			ID:     fmt.Sprintf("acc-%d", i),
			Name:   fmt.Sprintf("account %d", i),
			GameID: "starrail",
			Token:  fmt.Sprintf("ltoken_v2=tok; ltuid_v2=%d", 100+i),
		}
	}
	summary := o.Run(context.Background(), map[string][]checkin.Account{"starrail": accounts})

	if summary.TotalSuccesses != 3 {
		t.Fatalf("expected 3 check-ins, got %+v", summary.PerGame["starrail"])
	}
	if homeHits.Load() != 1 {
		t.Fatalf("expected the reward catalog once per run, got %d", homeHits.Load())
	}
	if signHits.Load() != 3 {
		t.Fatalf("expected one sign request per account, got %d", signHits.Load())
	}
	for _, out := range summary.PerGame["starrail"].Outcomes {
		if out.Reward == nil || out.Reward.Name != "Credit" || out.Profile.Region != "NA" {
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
}
