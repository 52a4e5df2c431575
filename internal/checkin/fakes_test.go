package checkin

import (
	"context"
	"errors"
	"sync"

	"github.com/pysugar/checkin-nexus/internal/games"
)

// fakeAdapter serves per-token answers and counts every call.
type fakeAdapter struct {
	mu      sync.Mutex
	status  map[string]SignStatus
	catalog []Reward
	profile map[string]Profile
	errs    map[string]error
	signed  map[string]bool
	onSign  func(token string)
	panicOn string

	statusCalls  int
	catalogCalls int
	profileCalls int
	signCalls    int
}

func (f *fakeAdapter) FetchSignStatus(ctx context.Context, token string) (SignStatus, error) {
	if token == f.panicOn {
		panic("adapter exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if err := f.errs["status:"+token]; err != nil {
		return SignStatus{}, err
	}
	return f.status[token], nil
}

func (f *fakeAdapter) FetchRewardCatalog(ctx context.Context, token string) ([]Reward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if err := f.errs["catalog:"+token]; err != nil {
		return nil, err
	}
	return append([]Reward(nil), f.catalog...), nil
}

func (f *fakeAdapter) FetchProfile(ctx context.Context, token string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if err := f.errs["profile:"+token]; err != nil {
		return Profile{}, err
	}
	return f.profile[token], nil
}

func (f *fakeAdapter) SubmitSignin(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	f.signCalls++
	err := f.errs["sign:"+token]
	signed, ok := f.signed[token]
	f.mu.Unlock()
	if f.onSign != nil {
		f.onSign(token)
	}
	if err != nil {
		return false, err
	}
	if !ok {
		signed = true
	}
	return signed, nil
}

// claimingAdapter reports the reward named by the sign-in response.
type claimingAdapter struct {
	*fakeAdapter
	claimed map[string]Reward
}

func (c *claimingAdapter) ClaimedReward(token string) (Reward, bool) {
	r, ok := c.claimed[token]
	return r, ok
}

type fakeStore struct {
	mu        sync.Mutex
	games     map[string]games.Descriptor
	accounts  map[string][]Account
	logs      []LogEntry
	profiles  map[string]Profile
	flagged   map[string]string
	upsertErr error
}

func newFakeStore(descs ...games.Descriptor) *fakeStore {
	s := &fakeStore{
		games:    make(map[string]games.Descriptor),
		profiles: make(map[string]Profile),
		flagged:  make(map[string]string),
	}
	for _, d := range descs {
		s.games[d.ID] = d
	}
	return s
}

func (s *fakeStore) GetAccountsForCheckin(ctx context.Context) (map[string][]Account, error) {
	if s.accounts == nil {
		return nil, errors.New("database is locked")
	}
	return s.accounts, nil
}

func (s *fakeStore) UpsertCheckinLog(ctx context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) UpdateProfileFields(ctx context.Context, accountID string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[accountID] = p
	return nil
}

func (s *fakeStore) GetGameDescriptor(ctx context.Context, gameID string) (games.Descriptor, bool, error) {
	d, ok := s.games[gameID]
	return d, ok, nil
}

func (s *fakeStore) FlagStaleCredential(ctx context.Context, accountID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged[accountID] = reason
	return nil
}

func (s *fakeStore) logFor(accountID string) (LogEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].AccountID == accountID {
			return s.logs[i], true
		}
	}
	return LogEntry{}, false
}

type sent struct {
	destination string
	rendering   Rendering
}

type fakeSink struct {
	mu    sync.Mutex
	sent  []sent
	err   error
	panic bool
}

func (s *fakeSink) Notify(ctx context.Context, destination string, r Rendering) (bool, error) {
	if s.panic {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.sent = append(s.sent, sent{destination: destination, rendering: r})
	return true, nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testGame(id string) games.Descriptor {
	return games.Descriptor{
		ID:             id,
		DisplayName:    "Test " + id,
		Protocol:       games.ProtocolHoyolab,
		Enabled:        true,
		SuccessMessage: "Checked in!",
		SignedMessage:  "Already checked in",
		AuthorName:     "Paimon",
	}
}

func factoryFor(adapters map[string]*fakeAdapter, calls map[string]int) AdapterFactory {
	var mu sync.Mutex
	return func(d games.Descriptor) (Adapter, error) {
		mu.Lock()
		defer mu.Unlock()
		if calls != nil {
			calls[d.ID]++
		}
		a, ok := adapters[d.ID]
		if !ok {
			return nil, errors.New("no fake adapter")
		}
		return a, nil
	}
}
