package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/text/language"
)

const (
	envPrefix  = "FANTAVACANZA_"
	envConfig  = "FANTAVACANZA_CONFIG"
	listSuffix = "headers"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FANTAVACANZA_CONFIG is set
//  3. env (prefix FANTAVACANZA_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FANTAVACANZA_DEDUPE_SIZE -> dedupe_size; a double underscore descends
	// into a section: FANTAVACANZA_IMPORT__NAME_HEADERS -> import.name_headers.
	// List values are comma separated.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		if key == envConfig {
			return "", nil
		}
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key == "palette" || strings.HasSuffix(key, listSuffix) {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreSQLite:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreSQLite && c.DatabasePath == "":
		return fmt.Errorf("%w: database_path is required for the sqlite store", ErrInvalidConfig)
	case c.MaxPlayers <= 0:
		return fmt.Errorf("%w: max_players must be positive", ErrInvalidConfig)
	case len(c.Palette) == 0:
		return fmt.Errorf("%w: palette must not be empty", ErrInvalidConfig)
	case c.TokenCookie == "":
		return fmt.Errorf("%w: token_cookie must not be empty", ErrInvalidConfig)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("%w: locale %q: %w", ErrInvalidConfig, c.Locale, err)
	}
	seen := make(map[string]struct{})
	for _, p := range c.Seed.Players {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: seed players need id and name", ErrInvalidConfig)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate seed player %q", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	for _, a := range c.Seed.Activities {
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("%w: seed activities need id and name", ErrInvalidConfig)
		}
	}
	return nil
}

// LocaleTag returns the parsed locale, falling back to Italian.
func (c *Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Italian
	}
	return tag
}
