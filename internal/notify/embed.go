package notify

import (
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
)

const (
	defaultUsername = "Check-in Nexus"
	maxEmbedFields  = 25
)

// Message is the Discord create-message payload shared by webhooks and the
// channel messages endpoint.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// NewMessage renders an outcome as a single-embed message. Webhook-only
// fields (username, avatar) are dropped by the bot endpoint.
func NewMessage(r checkin.Rendering) Message {
	e := Embed{
		Title:       r.Title,
		Description: "Account: **" + r.AccountName + "**",
		Color:       r.Color,
	}
	if r.AuthorName != "" {
		e.Author = &EmbedAuthor{Name: r.AuthorName, IconURL: r.AuthorIconURL}
	}
	if r.ThumbnailURL != "" {
		e.Thumbnail = &EmbedImage{URL: r.ThumbnailURL}
	}
	for i, f := range r.Fields {
		if i == maxEmbedFields {
			break
		}
		e.Fields = append(e.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if r.Footer != "" {
		e.Footer = &EmbedFooter{Text: r.Footer}
	}
	if !r.Timestamp.IsZero() {
		e.Timestamp = r.Timestamp.UTC().Format(time.RFC3339)
	}

	username := r.AuthorName
	if username == "" {
		username = defaultUsername
	}
	return Message{Username: username, AvatarURL: r.AuthorIconURL, Embeds: []Embed{e}}
}
