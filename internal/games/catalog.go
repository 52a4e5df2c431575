package games

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GamesFileEnv points at an explicit descriptor file.
const GamesFileEnv = "CHECKIN_GAMES_FILE"

var gameIDRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

type fileConfig struct {
	Games []GameConfig `yaml:"games"`
}

// GameConfig is the on-disk shape of a descriptor. Zero fields fall back to
// the built-in default of the same id.
type GameConfig struct {
	ID             string `yaml:"id"`
	DisplayName    string `yaml:"display_name"`
	Protocol       string `yaml:"protocol"`
	Enabled        *bool  `yaml:"enabled"`
	ActID          string `yaml:"act_id"`
	GameID         int    `yaml:"game_id"`
	SignGameHeader string `yaml:"sign_game_header"`
	URLs           URLs   `yaml:"urls"`
	OAuth          *OAuth `yaml:"oauth"`
	SuccessMessage string `yaml:"success_message"`
	SignedMessage  string `yaml:"signed_message"`
	AuthorName     string `yaml:"author_name"`
	IconURL        string `yaml:"icon_url"`
	Codes          *Codes `yaml:"codes"`
}

// Catalog is the loaded, validated set of game descriptors. It is read-only
// after Load returns.
type Catalog struct {
	byID  map[string]Descriptor
	order []string
}

// Load builds a catalog from the built-in defaults, the descriptor file (if
// any) and CHECKIN_GAME_<ID>_<FIELD> environment overrides. Invalid entries
// are left out and reported in the returned error; the catalog is still usable.
func Load() (*Catalog, error) {
	path, err := resolveConfigPath()
	if err != nil {
		c, loadErr := LoadFile("")
		return c, errors.Join(fmt.Errorf("games file: %w", err), loadErr)
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit descriptor file; an empty path uses only
// defaults and env overrides.
func LoadFile(path string) (*Catalog, error) {
	configs := defaultConfigs()
	var errs []error
	if path != "" {
		fromFile, err := readConfigFile(path)
		if err != nil {
			errs = append(errs, err)
		}
		configs = mergeConfigs(configs, fromFile)
	}

	descriptors := make([]Descriptor, 0, len(configs))
	for _, cfg := range configs {
		d, err := normalizeConfig(cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descriptors = append(descriptors, d)
	}
	return New(descriptors...), errors.Join(errs...)
}

// New builds a catalog from already validated descriptors.
func New(descriptors ...Descriptor) *Catalog {
	c := &Catalog{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		id := normalizeGameID(d.ID)
		d.ID = id
		if _, exists := c.byID[id]; !exists {
			c.order = append(c.order, id)
		}
		c.byID[id] = d.clone()
	}
	sort.Strings(c.order)
	return c
}

// Get returns a copy of the descriptor for id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	d, ok := c.byID[normalizeGameID(id)]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// List returns every descriptor sorted by id.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

func (d Descriptor) clone() Descriptor {
	cp := d
	if d.OAuth != nil {
		o := *d.OAuth
		cp.OAuth = &o
	}
	cp.Codes = Codes{
		AlreadySigned: append([]int(nil), d.Codes.AlreadySigned...),
		Retryable:     append([]int(nil), d.Codes.Retryable...),
		StaleSession:  append([]int(nil), d.Codes.StaleSession...),
	}
	return cp
}

func readConfigFile(path string) ([]GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read games file %q: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse games file %q: %w", path, err)
	}
	return cfg.Games, nil
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv(GamesFileEnv)); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/games.yaml",
		"/etc/checkin/games.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "checkin", "games.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// mergeConfigs overlays file entries on defaults with the same id.
func mergeConfigs(base, overlay []GameConfig) []GameConfig {
	index := make(map[string]int, len(base))
	out := append([]GameConfig(nil), base...)
	for i, cfg := range out {
		index[normalizeGameID(cfg.ID)] = i
	}
	for _, cfg := range overlay {
		id := normalizeGameID(cfg.ID)
		i, ok := index[id]
		if !ok {
			index[id] = len(out)
			out = append(out, cfg)
			continue
		}
		out[i] = overlayConfig(out[i], cfg)
	}
	return out
}

func overlayConfig(dst, src GameConfig) GameConfig {
	setString(&dst.DisplayName, src.DisplayName)
	setString(&dst.Protocol, src.Protocol)
	setString(&dst.ActID, src.ActID)
	setString(&dst.SignGameHeader, src.SignGameHeader)
	setString(&dst.URLs.Info, src.URLs.Info)
	setString(&dst.URLs.Home, src.URLs.Home)
	setString(&dst.URLs.Sign, src.URLs.Sign)
	setString(&dst.URLs.Profile, src.URLs.Profile)
	setString(&dst.SuccessMessage, src.SuccessMessage)
	setString(&dst.SignedMessage, src.SignedMessage)
	setString(&dst.AuthorName, src.AuthorName)
	setString(&dst.IconURL, src.IconURL)
	if src.Enabled != nil {
		dst.Enabled = src.Enabled
	}
	if src.GameID != 0 {
		dst.GameID = src.GameID
	}
	if src.OAuth != nil {
		dst.OAuth = src.OAuth
	}
	if src.Codes != nil {
		dst.Codes = src.Codes
	}
	return dst
}

func normalizeConfig(cfg GameConfig) (Descriptor, error) {
	id := normalizeGameID(cfg.ID)
	if !gameIDRegexp.MatchString(id) {
		return Descriptor{}, fmt.Errorf("invalid game id %q", cfg.ID)
	}

	enabled := true
	if cfg.Enabled != nil {
		enabled = *cfg.Enabled
	}
	if raw := strings.TrimSpace(os.Getenv(gameEnvName(id, "ENABLED"))); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			enabled = parsed
		}
	}

	d := Descriptor{
		ID:             id,
		DisplayName:    strings.TrimSpace(cfg.DisplayName),
		Protocol:       strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		Enabled:        enabled,
		ActID:          envOr(id, "ACT_ID", cfg.ActID),
		GameID:         cfg.GameID,
		SignGameHeader: strings.TrimSpace(cfg.SignGameHeader),
		URLs: URLs{
			Info:    envOr(id, "INFO_URL", cfg.URLs.Info),
			Home:    envOr(id, "HOME_URL", cfg.URLs.Home),
			Sign:    envOr(id, "SIGN_URL", cfg.URLs.Sign),
			Profile: envOr(id, "PROFILE_URL", cfg.URLs.Profile),
		},
		SuccessMessage: cfg.SuccessMessage,
		SignedMessage:  cfg.SignedMessage,
		AuthorName:     strings.TrimSpace(cfg.AuthorName),
		IconURL:        strings.TrimSpace(cfg.IconURL),
	}
	if d.Protocol == "" {
		d.Protocol = ProtocolHoyolab
	}
	if cfg.OAuth != nil {
		o := *cfg.OAuth
		d.OAuth = &o
	}
	if cfg.Codes != nil {
		d.Codes = *cfg.Codes
	} else {
		d.Codes = defaultCodes(d.Protocol)
	}

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func envOr(id, suffix, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(gameEnvName(id, suffix))); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func normalizeGameID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func gameEnvName(id, suffix string) string {
	upper := strings.ToUpper(id)
	replacer := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return fmt.Sprintf("CHECKIN_GAME_%s_%s", replacer.Replace(upper), suffix)
}
