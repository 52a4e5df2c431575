package games

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	ProtocolHoyolab = "hoyolab"
	ProtocolSKPort  = "skport"
)

// URLs groups the upstream endpoints a game exposes.
type URLs struct {
	Info    string `json:"info" yaml:"info"`
	Home    string `json:"home" yaml:"home"`
	Sign    string `json:"sign" yaml:"sign"`
	Profile string `json:"profile" yaml:"profile"`
}

// OAuth holds the token exchange endpoints for protocols that derive a
// signing credential from the stored account token.
type OAuth struct {
	BasicURL string `json:"basic_url" yaml:"basic_url"`
	GrantURL string `json:"grant_url" yaml:"grant_url"`
	CredURL  string `json:"cred_url" yaml:"cred_url"`
	AppCode  string `json:"app_code" yaml:"app_code"`
}

// Codes lists the upstream application codes that carry special meaning.
type Codes struct {
	AlreadySigned []int `json:"already_signed,omitempty" yaml:"already_signed"`
	Retryable     []int `json:"retryable,omitempty" yaml:"retryable"`
	StaleSession  []int `json:"stale_session,omitempty" yaml:"stale_session"`
}

// Descriptor is the immutable per-game configuration an adapter is built from.
type Descriptor struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Protocol       string `json:"protocol"`
	Enabled        bool   `json:"enabled"`
	ActID          string `json:"act_id,omitempty"`
	GameID         int    `json:"game_id,omitempty"`
	SignGameHeader string `json:"sign_game_header,omitempty"`
	URLs           URLs   `json:"urls"`
	OAuth          *OAuth `json:"oauth,omitempty"`
	SuccessMessage string `json:"success_message"`
	SignedMessage  string `json:"signed_message"`
	AuthorName     string `json:"author_name"`
	IconURL        string `json:"icon_url"`
	Codes          Codes  `json:"codes"`
}

// IsAlreadySigned reports whether code means the account already signed in today.
func (d Descriptor) IsAlreadySigned(code int) bool {
	return containsCode(d.Codes.AlreadySigned, code)
}

// IsRetryable reports whether code is a transient upstream condition.
func (d Descriptor) IsRetryable(code int) bool {
	return containsCode(d.Codes.Retryable, code)
}

// IsStaleSession reports whether code means the session token was rejected.
func (d Descriptor) IsStaleSession(code int) bool {
	return containsCode(d.Codes.StaleSession, code)
}

// Validate checks the fields every adapter relies on.
func (d Descriptor) Validate() error {
	var missing []string
	if d.ID == "" {
		missing = append(missing, "id")
	}
	if d.DisplayName == "" {
		missing = append(missing, "display_name")
	}
	switch d.Protocol {
	case ProtocolHoyolab:
		if d.ActID == "" {
			missing = append(missing, "act_id")
		}
		if d.SignGameHeader == "" {
			missing = append(missing, "sign_game_header")
		}
		if d.GameID <= 0 {
			missing = append(missing, "game_id")
		}
		for name, raw := range map[string]string{"urls.info": d.URLs.Info, "urls.home": d.URLs.Home, "urls.sign": d.URLs.Sign, "urls.profile": d.URLs.Profile} {
			if err := checkURL(raw); err != nil {
				missing = append(missing, name)
			}
		}
	case ProtocolSKPort:
		if d.OAuth == nil || d.OAuth.AppCode == "" || checkURL(d.OAuth.BasicURL) != nil || checkURL(d.OAuth.GrantURL) != nil || checkURL(d.OAuth.CredURL) != nil {
			missing = append(missing, "oauth")
		}
		for name, raw := range map[string]string{"urls.info": d.URLs.Info, "urls.sign": d.URLs.Sign} {
			if err := checkURL(raw); err != nil {
				missing = append(missing, name)
			}
		}
	default:
		return fmt.Errorf("game %q: unsupported protocol %q", d.ID, d.Protocol)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("game %q: missing or invalid %s", d.ID, strings.Join(missing, ", "))
	}
	return nil
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
