package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/upstream"
	"github.com/pysugar/checkin-nexus/internal/util"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBase = "https://discord.com/api/v10"

	defaultPostTimeout = 10 * time.Second
	rateLimitRetry     = time.Second
)

// Discord posts messages to webhooks and, when a bot token is configured,
// to channels through the bot API.
type Discord struct {
	apiBase   string
	webhook   *http.Client
	bot       *http.Client
	rateLimit upstream.Policy
}

// NewDiscord builds a client. An empty botToken disables channel delivery.
func NewDiscord(apiBase, botToken string, base *http.Client) *Discord {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if base == nil {
		base = &http.Client{Timeout: defaultPostTimeout}
	}
	d := &Discord{
		apiBase: strings.TrimRight(apiBase, "/"),
		webhook: base,
		// A 429 is retried once after the delay Discord asks for.
		rateLimit: upstream.Policy{MaxAttempts: 2, Delay: rateLimitRetry, RetryTransport: true},
	}
	if botToken != "" {
		transport := base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		d.bot = &http.Client{
			Timeout: base.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: botToken, TokenType: "Bot"}),
				Base:   transport,
			},
		}
	}
	return d
}

// CanPostToChannels reports whether a bot token is configured.
func (d *Discord) CanPostToChannels() bool {
	return d.bot != nil
}

func (d *Discord) PostWebhook(ctx context.Context, webhookURL string, msg Message) error {
	return d.post(ctx, d.webhook, webhookURL, msg)
}

func (d *Discord) PostChannel(ctx context.Context, channelID string, msg Message) error {
	if d.bot == nil {
		return fmt.Errorf("discord: no bot token configured")
	}
	msg.Username, msg.AvatarURL = "", ""
	return d.post(ctx, d.bot, d.apiBase+"/channels/"+channelID+"/messages", msg)
}

func (d *Discord) post(ctx context.Context, client *http.Client, target string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("discord: failed to encode message: %w", err)
	}
	_, err = upstream.Retry(ctx, d.rateLimit, "discord post", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.send(ctx, client, target, payload)
	})
	return err
}

// send makes one POST. Only 429 comes back as a retryable transport error.
func (d *Discord) send(ctx context.Context, client *http.Client, target string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discord: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		e := checkin.TransportError("discord post", fmt.Errorf("HTTP %d", resp.StatusCode))
		e.Message = "rate limited"
		e.RetryAfter = upstream.ParseRetryDelay(resp)
		return e
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord: HTTP %d: %s", resp.StatusCode, util.TruncateBytes(body))
	}
	return nil
}
