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
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if SQ_CONFIG is set
//  3. env (prefix SQ_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("SQ_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SQ_ADDR, SQ_ROOM_CAPACITY, ...
	// Map env keys like SQ_ROOM_CAPACITY -> room_capacity (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("SQ_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "sq_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the structural invariants the scheduler relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TeamSize < 1:
		return fmt.Errorf("%w: team_size must be >= 1", ErrInvalidConfig)
	case c.RoomCapacity < 2:
		return fmt.Errorf("%w: room_capacity must be >= 2", ErrInvalidConfig)
	case c.RoomCapacity%c.TeamSize != 0:
		return fmt.Errorf("%w: room_capacity must be a multiple of team_size", ErrInvalidConfig)
	case c.EventIntervalMinutes < c.JoiningWindowMinutes+c.ExtensionWindowMinutes:
		return fmt.Errorf("%w: event_interval_minutes must cover joining_window_minutes plus extension_window_minutes", ErrInvalidConfig)
	case c.RatingFloor > c.RatingCeiling:
		return fmt.Errorf("%w: rating_floor must not exceed rating_ceiling", ErrInvalidConfig)
	case c.Strategy != "truncate" && c.Strategy != "balanced":
		return fmt.Errorf("%w: strategy must be \"truncate\" or \"balanced\"", ErrInvalidConfig)
	case c.TickSeconds < 1:
		return fmt.Errorf("%w: tick_seconds must be >= 1", ErrInvalidConfig)
	}
	return nil
}
