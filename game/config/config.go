package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the game tunables and optional sink settings.
type Config struct {
	BoardWidth  int `env:"SNAKE_BOARD_WIDTH" envDefault:"30"`
	BoardHeight int `env:"SNAKE_BOARD_HEIGHT" envDefault:"16"`
	SnakeLength int `env:"SNAKE_LENGTH" envDefault:"5"`

	CodeLength      int `env:"GAME_CODE_LENGTH" envDefault:"4"`
	CodeMaxAttempts int `env:"GAME_CODE_MAX_ATTEMPTS" envDefault:"0"`

	MaxNameLength int `env:"PLAYER_NAME_MAX_LENGTH" envDefault:"24"`

	HistoryDBPath string `env:"HISTORY_DB_PATH"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"snake"`

	OTelEndpoint    string `env:"OTEL_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"snake-party"`
}

// Default returns the configuration used with an empty environment.
func Default() Config {
	return Config{
		BoardWidth:        30,
		BoardHeight:       16,
		SnakeLength:       5,
		CodeLength:        4,
		CodeMaxAttempts:   0,
		MaxNameLength:     24,
		NATSSubjectPrefix: "snake",
		OTelServiceName:   "snake-party",
	}
}

// ParseEnv parses environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the values describe a playable game.
func (c Config) Validate() error {
	switch {
	case c.BoardWidth <= 0 || c.BoardHeight <= 0:
		return fmt.Errorf("%w: board must be at least 1x1, got %dx%d", ErrInvalidConfig, c.BoardWidth, c.BoardHeight)
	case c.SnakeLength <= 0:
		return fmt.Errorf("%w: snake length must be positive, got %d", ErrInvalidConfig, c.SnakeLength)
	case c.SnakeLength > c.BoardWidth && c.SnakeLength > c.BoardHeight:
		return fmt.Errorf("%w: snake of length %d does not fit on a %dx%d board", ErrInvalidConfig, c.SnakeLength, c.BoardWidth, c.BoardHeight)
	case c.CodeLength <= 0:
		return fmt.Errorf("%w: code length must be positive, got %d", ErrInvalidConfig, c.CodeLength)
	case c.CodeMaxAttempts < 0:
		return fmt.Errorf("%w: code max attempts must not be negative, got %d", ErrInvalidConfig, c.CodeMaxAttempts)
	case c.MaxNameLength <= 0:
		return fmt.Errorf("%w: player name max length must be positive, got %d", ErrInvalidConfig, c.MaxNameLength)
	case c.NATSURL != "" && c.NATSSubjectPrefix == "":
		return fmt.Errorf("%w: NATS subject prefix is required when NATS_URL is set", ErrInvalidConfig)
	}
	return nil
}

// HistoryEnabled reports whether finished games are archived.
func (c Config) HistoryEnabled() bool { return c.HistoryDBPath != "" }

// EventsEnabled reports whether lifecycle events are published.
func (c Config) EventsEnabled() bool { return c.NATSURL != "" }
