// Package skport implements the SKPort attendance protocol used by
// Arknights: Endfield. The stored account token is exchanged for a signing
// credential through a three step OAuth flow before any attendance call.
package skport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/upstream"
)

const (
	UserAgent  = "Skland/1.0.1 (com.hypergryph.skland; build:100001014; Android 31;) Okhttp/4.11.0"
	siteOrigin = "https://www.skport.com"
)

// tokenKeys are the cookie names an exported SKPort token may arrive under.
var tokenKeys = []string{"ACCOUNT_TOKEN", "account_token", "token"}

type session struct {
	cred     string
	salt     string
	userID   string
	nickname string
}

type calendarDay struct {
	AwardID   string `json:"awardId"`
	Available bool   `json:"available"`
	Done      bool   `json:"done"`
}

type resourceInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Icon  string `json:"icon"`
}

type attendance struct {
	HasToday        bool                    `json:"hasToday"`
	Calendar        []calendarDay           `json:"calendar"`
	ResourceInfoMap map[string]resourceInfo `json:"resourceInfoMap"`
}

// Adapter talks to SKPort for one game. Credentials are cached per account
// token and the reward calendar is cached for the adapter's lifetime.
type Adapter struct {
	desc     games.Descriptor
	client   *upstream.Client
	policy   upstream.Policy
	signPath string
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]session
	catalog  []checkin.Reward
	claims   map[string]checkin.Reward
}

func New(desc games.Descriptor, client *upstream.Client, signinRetryDelay time.Duration) (*Adapter, error) {
	if desc.Protocol != games.ProtocolSKPort {
		return nil, fmt.Errorf("skport: game %q uses protocol %q", desc.ID, desc.Protocol)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	signURL, err := url.Parse(desc.URLs.Sign)
	if err != nil {
		return nil, fmt.Errorf("skport: game %q: invalid sign url: %w", desc.ID, err)
	}
	if client == nil {
		client = upstream.NewClient(upstream.DefaultTimeout)
	}
	return &Adapter{
		desc:     desc,
		client:   client,
		policy:   upstream.SigninPolicy(signinRetryDelay, desc.Codes.Retryable),
		signPath: signURL.Path,
		now:      time.Now,
		sessions: make(map[string]session),
		claims:   make(map[string]checkin.Reward),
	}, nil
}

func (a *Adapter) FetchSignStatus(ctx context.Context, token string) (checkin.SignStatus, error) {
	op := a.desc.ID + " sign status"
	att, err := a.fetchAttendance(ctx, op, token)
	if err != nil {
		return checkin.SignStatus{}, err
	}
	total := 0
	for _, day := range att.Calendar {
		if day.Done {
			total++
		}
	}
	return checkin.SignStatus{IsSignedToday: att.HasToday, TotalDaysSigned: total}, nil
}

func (a *Adapter) FetchRewardCatalog(ctx context.Context, token string) ([]checkin.Reward, error) {
	a.mu.Lock()
	cached := a.catalog
	a.mu.Unlock()
	if cached != nil {
		return append([]checkin.Reward(nil), cached...), nil
	}

	att, err := a.fetchAttendance(ctx, a.desc.ID+" reward catalog", token)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.catalog == nil {
		a.catalog = buildCatalog(att)
	}
	if len(a.catalog) == 0 {
		a.catalog = nil
		return nil, checkin.MalformedResponseError(a.desc.ID+" reward catalog", "attendance calendar is empty", nil)
	}
	return append([]checkin.Reward(nil), a.catalog...), nil
}

// FetchProfile reports the SKPort account behind the token. SKPort exposes
// no per-game role lookup, so rank and region stay unset.
func (a *Adapter) FetchProfile(ctx context.Context, token string) (checkin.Profile, error) {
	s, err := a.session(ctx, a.desc.ID+" profile", token)
	if err != nil {
		return checkin.Profile{}, err
	}
	return checkin.Profile{ExternalUID: s.userID, Nickname: s.nickname, Region: games.UnknownRegion}, nil
}

func (a *Adapter) SubmitSignin(ctx context.Context, token string) (bool, error) {
	op := a.desc.ID + " sign-in"
	s, err := a.session(ctx, op, token)
	if err != nil {
		return false, err
	}
	accountToken, _ := ParseToken(op, token)
	a.mu.Lock()
	delete(a.claims, accountToken)
	a.mu.Unlock()

	return upstream.Retry(ctx, a.policy, op, func(ctx context.Context) (bool, error) {
		ts := strconv.FormatInt(a.now().Unix(), 10)
		h := a.headers(s, ts)
		h.Set("sign", SignV2(s.salt, a.signPath, ts))
		env, err := a.client.Do(ctx, op, upstream.Request{
			Method: http.MethodPost,
			URL:    a.desc.URLs.Sign,
			Header: h,
		})
		if err != nil {
			return false, err
		}
		if code, _ := env.AppCode(); a.desc.IsAlreadySigned(code) {
			return false, nil
		}
		if err := a.appErr(op, token, env); err != nil {
			return false, err
		}

		var claim struct {
			AwardIDs []struct {
				ID string `json:"id"`
			} `json:"awardIds"`
			ResourceInfoMap map[string]resourceInfo `json:"resourceInfoMap"`
		}
		if err := env.DecodeData(op, &claim); err == nil {
			for _, award := range claim.AwardIDs {
				res, ok := claim.ResourceInfoMap[award.ID]
				if !ok {
					continue
				}
				a.mu.Lock()
				a.claims[accountToken] = checkin.Reward{Name: res.Name, Count: res.Count, Icon: res.Icon}
				a.mu.Unlock()
				break
			}
		}
		return true, nil
	})
}

// ClaimedReward returns the first reward granted by the last successful
// SubmitSignin for token, when the claim response named one.
func (a *Adapter) ClaimedReward(token string) (checkin.Reward, bool) {
	accountToken, err := ParseToken("claimed reward", token)
	if err != nil {
		return checkin.Reward{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.claims[accountToken]
	return r, ok
}

func (a *Adapter) fetchAttendance(ctx context.Context, op, token string) (attendance, error) {
	s, err := a.session(ctx, op, token)
	if err != nil {
		return attendance{}, err
	}
	ts := strconv.FormatInt(a.now().Unix(), 10)
	h := a.headers(s, ts)
	h.Set("sign", SignV1(ts, s.cred))
	env, err := a.client.Do(ctx, op, upstream.Request{URL: a.desc.URLs.Info, Header: h})
	if err != nil {
		return attendance{}, err
	}
	if err := a.appErr(op, token, env); err != nil {
		return attendance{}, err
	}

	var att attendance
	if err := env.DecodeData(op, &att); err != nil {
		return attendance{}, err
	}
	a.mu.Lock()
	if a.catalog == nil && len(att.Calendar) > 0 {
		a.catalog = buildCatalog(att)
	}
	a.mu.Unlock()
	return att, nil
}

// session returns the signing credential for token, running the OAuth
// exchange on first use.
func (a *Adapter) session(ctx context.Context, op, token string) (session, error) {
	accountToken, err := ParseToken(op, token)
	if err != nil {
		return session{}, err
	}
	a.mu.Lock()
	s, ok := a.sessions[accountToken]
	a.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err = a.exchange(ctx, op, accountToken)
	if err != nil {
		return session{}, err
	}
	a.mu.Lock()
	a.sessions[accountToken] = s
	a.mu.Unlock()
	return s, nil
}

func (a *Adapter) exchange(ctx context.Context, op, accountToken string) (session, error) {
	oauth := a.desc.OAuth
	jsonHeader := http.Header{"Content-Type": {"application/json"}, "Accept": {"application/json"}}

	basic, err := a.client.Do(ctx, op+" (account info)", upstream.Request{
		URL:    oauth.BasicURL,
		Query:  url.Values{"token": {accountToken}},
		Header: jsonHeader,
	})
	if err != nil {
		return session{}, err
	}
	if err := rejected(op+" (account info)", basic); err != nil {
		return session{}, err
	}
	var info struct {
		NickName string `json:"nickName"`
	}
	if err := basic.DecodeData(op+" (account info)", &info); err != nil {
		log.Printf("⚠️ %s: account info unreadable, continuing without nickname: %v", op, err)
	}

	grant, err := a.client.Do(ctx, op+" (oauth grant)", upstream.Request{
		Method: http.MethodPost,
		URL:    oauth.GrantURL,
		Header: jsonHeader,
		Body:   map[string]any{"token": accountToken, "appCode": oauth.AppCode, "type": 0},
	})
	if err != nil {
		return session{}, err
	}
	if err := rejected(op+" (oauth grant)", grant); err != nil {
		return session{}, err
	}
	var granted struct {
		Code string `json:"code"`
	}
	if err := grant.DecodeData(op+" (oauth grant)", &granted); err != nil {
		return session{}, err
	}
	if granted.Code == "" {
		return session{}, checkin.MalformedResponseError(op+" (oauth grant)", "grant carries no code", nil)
	}

	credHeader := jsonHeader.Clone()
	credHeader.Set("platform", platform)
	credHeader.Set("Referer", siteOrigin+"/")
	credHeader.Set("Origin", siteOrigin)
	cred, err := a.client.Do(ctx, op+" (credential)", upstream.Request{
		Method: http.MethodPost,
		URL:    oauth.CredURL,
		Header: credHeader,
		Body:   map[string]any{"code": granted.Code, "kind": 1},
	})
	if err != nil {
		return session{}, err
	}
	if err := cred.Err(op + " (credential)"); err != nil {
		return session{}, err
	}
	var issued struct {
		Cred   string          `json:"cred"`
		Token  string          `json:"token"`
		UserID json.RawMessage `json:"userId"`
	}
	if err := cred.DecodeData(op+" (credential)", &issued); err != nil {
		return session{}, err
	}
	if issued.Cred == "" || issued.Token == "" {
		return session{}, checkin.MalformedResponseError(op+" (credential)", "credential response lacks cred or token", nil)
	}
	userID := strings.Trim(string(issued.UserID), `"`)
	if userID == "null" {
		userID = ""
	}
	return session{cred: issued.Cred, salt: issued.Token, userID: userID, nickname: info.NickName}, nil
}

func (a *Adapter) headers(s session, ts string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", UserAgent)
	h.Set("platform", platform)
	h.Set("timestamp", ts)
	h.Set("dId", "")
	h.Set("vName", vName)
	h.Set("cred", s.cred)
	return h
}

// appErr checks the application code. A stale credential is evicted so the
// next call runs the OAuth exchange again.
func (a *Adapter) appErr(op, token string, env upstream.Envelope) error {
	err := env.Err(op)
	if err == nil {
		return nil
	}
	var ce *checkin.Error
	if errors.As(err, &ce) && a.desc.IsStaleSession(ce.Code) {
		ce.Stale = true
		if accountToken, perr := ParseToken(op, token); perr == nil {
			a.mu.Lock()
			delete(a.sessions, accountToken)
			a.mu.Unlock()
		}
	}
	return err
}

// rejected maps a failed account-service step to a stale credential: the
// account token itself was refused.
func rejected(op string, env upstream.Envelope) error {
	err := env.Err(op)
	var ce *checkin.Error
	if errors.As(err, &ce) {
		ce.Stale = true
	}
	return err
}

func buildCatalog(att attendance) []checkin.Reward {
	catalog := make([]checkin.Reward, 0, len(att.Calendar))
	for _, day := range att.Calendar {
		res, ok := att.ResourceInfoMap[day.AwardID]
		if !ok {
			res = resourceInfo{Name: "Unknown"}
		}
		catalog = append(catalog, checkin.Reward{Name: res.Name, Count: res.Count, Icon: res.Icon})
	}
	return catalog
}

// ParseToken accepts a bare account token or a cookie string carrying one.
func ParseToken(op, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", checkin.MalformedTokenError(op, "account token is empty")
	}
	if !strings.Contains(raw, "=") {
		return raw, nil
	}
	values := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok {
			values[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	for _, key := range tokenKeys {
		v := values[key]
		if v == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(v); err == nil {
			v = unescaped
		}
		return v, nil
	}
	return "", checkin.MalformedTokenError(op, "cookie carries no ACCOUNT_TOKEN")
}
