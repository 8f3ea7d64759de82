// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"

	"github.com/okian/fantavacanza/internal/domain/interchange"
	"github.com/okian/fantavacanza/internal/domain/model"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or sqlite.
	Store string `koanf:"store"`

	// DatabasePath is the SQLite file used when Store is sqlite.
	DatabasePath string `koanf:"database_path"`

	// PollIntervalMS is how often the SQLite store looks for foreign commits.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// DefaultCanEdit is the capability of a fresh device with no link flags.
	DefaultCanEdit bool `koanf:"default_can_edit"`

	// StrictTokens accepts only the issued editor token instead of any token.
	StrictTokens bool `koanf:"strict_tokens"`

	// PublicURL is the base of shared editor and viewer links.
	PublicURL string `koanf:"public_url"`

	// TokenCookie names the cookie remembering the editor token on a device.
	TokenCookie string `koanf:"token_cookie"`

	MaxPlayers int      `koanf:"max_players"`
	Palette    []string `koanf:"palette"`

	Import ImportConfig `koanf:"import"`

	// DedupeSize bounds the request id cache of POST /events.
	DedupeSize int `koanf:"dedupe_size"`

	// Locale drives name collation in leaderboard tie-breaks (BCP 47).
	Locale string `koanf:"locale"`

	Seed SeedConfig `koanf:"seed"`

	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// ImportConfig lists the header synonyms recognised by CSV import.
type ImportConfig struct {
	NameHeaders   []string `koanf:"name_headers"`
	PointsHeaders []string `koanf:"points_headers"`
	IDHeaders     []string `koanf:"id_headers"`
	AuxHeaders    []string `koanf:"aux_headers"`
}

// SeedConfig is the roster written to an empty store at startup.
type SeedConfig struct {
	Players    []SeedPlayer   `koanf:"players"`
	Activities []SeedActivity `koanf:"activities"`
}

type SeedPlayer struct {
	ID    string `koanf:"id"`
	Name  string `koanf:"name"`
	Color string `koanf:"color"`
}

type SeedActivity struct {
	ID     string  `koanf:"id"`
	Name   string  `koanf:"name"`
	Points float64 `koanf:"points"`
}

// New creates a Config with defaults.
func New() *Config {
	syn := interchange.DefaultSynonyms()
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		Store:             StoreMemory,
		DatabasePath:      "data/fantavacanza.db",
		PollIntervalMS:    1000,
		DefaultCanEdit:    false,
		StrictTokens:      false,
		PublicURL:         "http://localhost:9080/",
		TokenCookie:       "fantavacanza_editor_token",
		MaxPlayers:        interchange.DefaultMaxPlayers,
		Palette:           append([]string(nil), interchange.DefaultPalette...),
		DedupeSize:        10_000,
		Locale:            "it",
		ShutdownTimeoutMS: 5000,
		Import: ImportConfig{
			NameHeaders:   syn.Name,
			PointsHeaders: syn.Points,
			IDHeaders:     syn.ID,
			AuxHeaders:    syn.Aux,
		},
	}
}

// Synonyms returns the import vocabulary.
func (c *Config) Synonyms() interchange.Synonyms {
	return interchange.Synonyms{
		Name:       c.Import.NameHeaders,
		Points:     c.Import.PointsHeaders,
		ID:         c.Import.IDHeaders,
		Aux:        c.Import.AuxHeaders,
		Palette:    c.Palette,
		MaxPlayers: c.MaxPlayers,
	}
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// SeedRoster converts the seed section into domain records.
func (c *Config) SeedRoster() model.Roster {
	var r model.Roster
	for i, p := range c.Seed.Players {
		color := p.Color
		if color == "" && len(c.Palette) > 0 {
			color = c.Palette[i%len(c.Palette)]
		}
		r.Players = append(r.Players, model.Player{ID: p.ID, Name: p.Name, Color: color})
	}
	for _, a := range c.Seed.Activities {
		r.Activities = append(r.Activities, model.Activity{ID: a.ID, Name: a.Name, Points: a.Points})
	}
	return r
}
