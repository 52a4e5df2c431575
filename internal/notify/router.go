// Package notify delivers rendered check-in outcomes to Discord.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/db"
)

// DestinationResolver looks up where a guild wants its notifications.
type DestinationResolver interface {
	ResolveDestination(ctx context.Context, guildID string) (db.Destination, error)
}

// Router is the orchestrator's notification sink. The destination ref is a
// guild ID, resolved to the guild's bot channel, then its webhook, then the
// default webhook.
type Router struct {
	resolver       DestinationResolver
	discord        *Discord
	defaultWebhook string
}

func NewRouter(resolver DestinationResolver, discord *Discord, defaultWebhook string) *Router {
	return &Router{resolver: resolver, discord: discord, defaultWebhook: defaultWebhook}
}

// Notify makes one delivery attempt. It reports false with no error when
// there is nowhere to deliver.
func (r *Router) Notify(ctx context.Context, destination string, rendering checkin.Rendering) (bool, error) {
	var dest db.Destination
	if destination != "" && r.resolver != nil {
		var err error
		dest, err = r.resolver.ResolveDestination(ctx, destination)
		if err != nil {
			return false, fmt.Errorf("resolve destination %s: %w", destination, err)
		}
	}

	msg := NewMessage(rendering)
	switch {
	case dest.ChannelID != "" && r.discord.CanPostToChannels():
		if err := r.discord.PostChannel(ctx, dest.ChannelID, msg); err != nil {
			return false, err
		}
		log.Printf("📨 Check-in notification sent to channel %s (guild %s)", dest.ChannelID, destination)
	case dest.WebhookURL != "":
		if err := r.discord.PostWebhook(ctx, dest.WebhookURL, msg); err != nil {
			return false, err
		}
		log.Printf("📨 Check-in notification sent to guild %s webhook", destination)
	case r.defaultWebhook != "":
		if err := r.discord.PostWebhook(ctx, r.defaultWebhook, msg); err != nil {
			return false, err
		}
		log.Printf("📨 Check-in notification sent to default webhook")
	default:
		return false, nil
	}
	return true, nil
}
