// Package importer registers guilds and accounts in bulk from a YAML file.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/db"
	"github.com/pysugar/checkin-nexus/internal/db/models"
	"gopkg.in/yaml.v3"
)

// File is the import document.
//
//	guilds:
//	  - id: "1234"
//	    name: My Guild
//	    webhook_url: https://discord.com/api/webhooks/...
//	    checkin_channel: "5678"
//	accounts:
//	  - guild_id: "1234"
//	    user_id: "42"
//	    game: genshin
//	    name: main
//	    token: "ltuid_v2=...; ltoken_v2=..."
type File struct {
	Guilds   []Guild   `yaml:"guilds"`
	Accounts []Account `yaml:"accounts"`
}

type Guild struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	WebhookURL     string `yaml:"webhook_url"`
	CheckinChannel string `yaml:"checkin_channel"`
}

type Account struct {
	GuildID string `yaml:"guild_id"`
	UserID  string `yaml:"user_id"`
	Game    string `yaml:"game"`
	Name    string `yaml:"name"`
	Token   string `yaml:"token"`
}

// Registrar is the store surface the import writes through.
type Registrar interface {
	RegisterGuild(ctx context.Context, guild models.Guild) error
	SetGuildSetting(ctx context.Context, guildID, key, value string) error
	RegisterAccount(ctx context.Context, r db.Registration) (checkin.Account, error)
}

// Result counts what an import wrote. Failed entries do not stop the import.
type Result struct {
	Guilds   int
	Accounts int
	Failed   int
}

func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read import file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse import file: %w", err)
	}
	if len(f.Guilds) == 0 && len(f.Accounts) == 0 {
		return File{}, errors.New("import file has no guilds or accounts")
	}
	return f, nil
}

// Apply writes f through r. Guilds go first so accounts can refer to them.
// Every entry failure is logged and joined into the returned error.
func Apply(ctx context.Context, r Registrar, f File) (Result, error) {
	var (
		res  Result
		errs []error
	)
	for i, g := range f.Guilds {
		if err := applyGuild(ctx, r, g); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("guild #%d (%s): %w", i+1, g.ID, err))
			log.Printf("❌ Import guild %s failed: %v", g.ID, err)
			continue
		}
		res.Guilds++
	}
	for i, a := range f.Accounts {
		if err := ctx.Err(); err != nil {
			return res, errors.Join(append(errs, err)...)
		}
		_, err := r.RegisterAccount(ctx, db.Registration{
			Scope:  checkin.Scope{GuildID: strings.TrimSpace(a.GuildID), UserID: strings.TrimSpace(a.UserID)},
			GameID: a.Game,
			Name:   strings.TrimSpace(a.Name),
			Token:  a.Token,
		})
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("account #%d (%s/%s): %w", i+1, a.Game, a.Name, err))
			log.Printf("❌ Import account %s/%s failed: %v", a.Game, a.Name, err)
			continue
		}
		res.Accounts++
	}
	log.Printf("📥 Import finished: %d guilds, %d accounts, %d failed", res.Guilds, res.Accounts, res.Failed)
	return res, errors.Join(errs...)
}

func applyGuild(ctx context.Context, r Registrar, g Guild) error {
	id := strings.TrimSpace(g.ID)
	if id == "" {
		return errors.New("guild id is required")
	}
	if err := r.RegisterGuild(ctx, models.Guild{ID: id, Name: g.Name, WebhookURL: strings.TrimSpace(g.WebhookURL)}); err != nil {
		return err
	}
	if ch := strings.TrimSpace(g.CheckinChannel); ch != "" {
		return r.SetGuildSetting(ctx, id, db.SettingCheckinChannel, ch)
	}
	return nil
}
