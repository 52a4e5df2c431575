// Package hoyolab implements the daily check-in protocol shared by the
// HoYoLAB games (Genshin Impact, Honkai Impact 3rd, Star Rail, Zenless Zone Zero).
package hoyolab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/upstream"
)

const activityOrigin = "https://act.hoyolab.com"

// Adapter talks to one HoYoLAB game. It caches the reward catalog, so build
// a new one per run.
type Adapter struct {
	desc   games.Descriptor
	client *upstream.Client
	policy upstream.Policy

	catalogMu sync.Mutex
	catalog   []checkin.Reward
}

func New(desc games.Descriptor, client *upstream.Client, signinRetryDelay time.Duration) (*Adapter, error) {
	if desc.Protocol != games.ProtocolHoyolab {
		return nil, fmt.Errorf("hoyolab: game %q uses protocol %q", desc.ID, desc.Protocol)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = upstream.NewClient(upstream.DefaultTimeout)
	}
	return &Adapter{
		desc:   desc,
		client: client,
		policy: upstream.SigninPolicy(signinRetryDelay, desc.Codes.Retryable),
	}, nil
}

func (a *Adapter) FetchSignStatus(ctx context.Context, token string) (checkin.SignStatus, error) {
	op := a.desc.ID + " sign status"
	if err := requireToken(op, token); err != nil {
		return checkin.SignStatus{}, err
	}

	env, err := a.client.Do(ctx, op, upstream.Request{
		URL:    a.desc.URLs.Info,
		Query:  a.activityQuery(),
		Header: a.headers(token),
	})
	if err != nil {
		return checkin.SignStatus{}, err
	}
	if err := a.appErr(op, env); err != nil {
		return checkin.SignStatus{}, err
	}

	var data struct {
		TotalSignDay *int   `json:"total_sign_day"`
		Today        string `json:"today"`
		IsSign       *bool  `json:"is_sign"`
	}
	if err := env.DecodeData(op, &data); err != nil {
		return checkin.SignStatus{}, err
	}
	if data.TotalSignDay == nil || data.IsSign == nil {
		return checkin.SignStatus{}, checkin.MalformedResponseError(op, "status lacks total_sign_day or is_sign", nil)
	}
	return checkin.SignStatus{IsSignedToday: *data.IsSign, TotalDaysSigned: *data.TotalSignDay}, nil
}

func (a *Adapter) FetchRewardCatalog(ctx context.Context, token string) ([]checkin.Reward, error) {
	a.catalogMu.Lock()
	defer a.catalogMu.Unlock()
	if a.catalog != nil {
		return append([]checkin.Reward(nil), a.catalog...), nil
	}

	op := a.desc.ID + " reward catalog"
	if err := requireToken(op, token); err != nil {
		return nil, err
	}
	env, err := a.client.Do(ctx, op, upstream.Request{
		URL:    a.desc.URLs.Home,
		Query:  a.activityQuery(),
		Header: a.headers(token),
	})
	if err != nil {
		return nil, err
	}
	if err := a.appErr(op, env); err != nil {
		return nil, err
	}

	var data struct {
		Awards []struct {
			Name string `json:"name"`
			Cnt  int    `json:"cnt"`
			Icon string `json:"icon"`
		} `json:"awards"`
	}
	if err := env.DecodeData(op, &data); err != nil {
		return nil, err
	}
	if len(data.Awards) == 0 {
		return nil, checkin.MalformedResponseError(op, "reward catalog is empty", nil)
	}

	catalog := make([]checkin.Reward, 0, len(data.Awards))
	for _, award := range data.Awards {
		catalog = append(catalog, checkin.Reward{Name: award.Name, Count: award.Cnt, Icon: award.Icon})
	}
	a.catalog = catalog
	return append([]checkin.Reward(nil), catalog...), nil
}

func (a *Adapter) FetchProfile(ctx context.Context, token string) (checkin.Profile, error) {
	op := a.desc.ID + " profile"
	if err := requireToken(op, token); err != nil {
		return checkin.Profile{}, err
	}
	ltuid, ok := ExtractLtuid(token)
	if !ok {
		return checkin.Profile{}, checkin.MalformedTokenError(op, "cookie carries no ltuid_v2")
	}

	env, err := a.client.Do(ctx, op, upstream.Request{
		URL:    a.desc.URLs.Profile,
		Query:  url.Values{"uid": {ltuid}},
		Header: a.headers(token),
	})
	if err != nil {
		return checkin.Profile{}, err
	}
	if err := a.appErr(op, env); err != nil {
		return checkin.Profile{}, err
	}

	var data struct {
		List []struct {
			GameID     int    `json:"game_id"`
			GameRoleID string `json:"game_role_id"`
			Nickname   string `json:"nickname"`
			Level      int    `json:"level"`
			Region     string `json:"region"`
		} `json:"list"`
	}
	if err := env.DecodeData(op, &data); err != nil {
		return checkin.Profile{}, err
	}
	for _, entry := range data.List {
		if entry.GameID != a.desc.GameID {
			continue
		}
		return checkin.Profile{
			ExternalUID: entry.GameRoleID,
			Nickname:    entry.Nickname,
			Rank:        entry.Level,
			Region:      games.RegionCode(entry.Region),
		}, nil
	}
	return checkin.Profile{}, checkin.MalformedResponseError(op,
		fmt.Sprintf("no %s profile linked to hoyolab uid %s", a.desc.DisplayName, ltuid), nil)
}

func (a *Adapter) SubmitSignin(ctx context.Context, token string) (bool, error) {
	op := a.desc.ID + " sign-in"
	if err := requireToken(op, token); err != nil {
		return false, err
	}

	return upstream.Retry(ctx, a.policy, op, func(ctx context.Context) (bool, error) {
		env, err := a.client.Do(ctx, op, upstream.Request{
			Method: http.MethodPost,
			URL:    a.desc.URLs.Sign,
			Query:  url.Values{"lang": {"en-us"}},
			Header: a.headers(token),
			Body:   map[string]string{"act_id": a.desc.ActID},
		})
		if err != nil {
			return false, err
		}
		if code, _ := env.AppCode(); a.desc.IsAlreadySigned(code) {
			return false, nil
		}
		if err := a.appErr(op, env); err != nil {
			return false, err
		}

		var data struct {
			GtResult *struct {
				RiskCode int  `json:"risk_code"`
				IsRisk   bool `json:"is_risk"`
			} `json:"gt_result"`
		}
		if err := env.DecodeData(op, &data); err != nil && !errors.Is(err, checkin.ErrMalformedResponse) {
			return false, err
		}
		if data.GtResult != nil && data.GtResult.IsRisk {
			return false, checkin.ApplicationError(op, data.GtResult.RiskCode, "captcha verification required")
		}
		return true, nil
	})
}

func (a *Adapter) headers(token string) http.Header {
	h := http.Header{}
	h.Set("Cookie", token)
	h.Set("x-rpc-signgame", a.desc.SignGameHeader)
	h.Set("Referer", activityOrigin+"/")
	h.Set("Origin", activityOrigin)
	return h
}

func (a *Adapter) activityQuery() url.Values {
	return url.Values{"act_id": {a.desc.ActID}, "lang": {"en-us"}}
}

// appErr checks the application code and tags codes that mean the cookie
// is no longer accepted.
func (a *Adapter) appErr(op string, env upstream.Envelope) error {
	err := env.Err(op)
	if err == nil {
		return nil
	}
	var ce *checkin.Error
	if errors.As(err, &ce) && a.desc.IsStaleSession(ce.Code) {
		ce.Stale = true
	}
	return err
}

func requireToken(op, token string) error {
	if strings.TrimSpace(token) == "" {
		return checkin.MalformedTokenError(op, "session token is empty")
	}
	return nil
}

