package checkin

import (
	"strconv"
	"time"

	"github.com/pysugar/checkin-nexus/internal/games"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	ColorSuccess       = 0x00FF00
	ColorAlreadySigned = 0xFFA500
	ColorFailed        = 0xE74C3C
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Rendering is a channel-agnostic summary of one outcome.
type Rendering struct {
	Title         string
	Status        string
	Color         int
	AccountName   string
	AuthorName    string
	AuthorIconURL string
	ThumbnailURL  string
	Fields        []Field
	Footer        string
	Timestamp     time.Time
}

// Renderer turns an outcome into a rendering for the sink.
type Renderer func(o Outcome, d games.Descriptor, a Account) Rendering

// DefaultRenderer builds the daily check-in card.
func DefaultRenderer(o Outcome, d games.Descriptor, a Account) Rendering {
	printer := message.NewPrinter(language.English)
	r := Rendering{
		Title:         d.DisplayName + " Daily Check-In",
		AccountName:   a.Name,
		AuthorName:    d.AuthorName,
		AuthorIconURL: d.IconURL,
		Footer:        d.DisplayName + " Daily Check-In",
		Timestamp:     o.FinishedAt,
	}

	switch o.State {
	case StateLoggedSuccess:
		r.Color = ColorSuccess
		r.Status = d.SuccessMessage
	case StateAlreadySigned:
		r.Color = ColorAlreadySigned
		r.Status = d.SignedMessage
	default:
		r.Color = ColorFailed
		r.Status = "Check-in failed: " + o.Message
	}

	profile := o.Profile
	if profile == nil {
		profile = a.Profile
	}
	if profile != nil {
		r.Fields = append(r.Fields,
			Field{Name: "Nickname", Value: orDash(profile.Nickname), Inline: true},
			Field{Name: "UID", Value: orDash(profile.ExternalUID), Inline: true},
			Field{Name: "Rank", Value: strconv.Itoa(profile.Rank), Inline: true},
			Field{Name: "Region", Value: orDash(profile.Region), Inline: true},
		)
	}
	if o.Reward != nil {
		r.Fields = append(r.Fields, Field{
			Name:   "Today's Reward",
			Value:  printer.Sprintf("%s x%d", o.Reward.Name, o.Reward.Count),
			Inline: true,
		})
		r.ThumbnailURL = o.Reward.Icon
	}
	if o.State != StateFailed {
		r.Fields = append(r.Fields, Field{Name: "Total Check-Ins", Value: printer.Sprintf("%d", o.TotalDays), Inline: true})
	}
	r.Fields = append(r.Fields, Field{Name: "Result", Value: r.Status})
	return r
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
