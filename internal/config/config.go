package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/sessions.db"`
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`

	// DataURL, when set, replaces DataDir as the profile source.
	DataDir       string `env:"DATA_DIR" envDefault:"data/profiles"`
	DataURL       string `env:"DATA_URL"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`

	MinPlayers      int `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers      int `env:"MAX_PLAYERS" envDefault:"8"`
	CluesPerProfile int `env:"CLUES_PER_PROFILE" envDefault:"20"`

	SaveDebounce time.Duration `env:"SAVE_DEBOUNCE" envDefault:"300ms"`
	SaveTimeout  time.Duration `env:"SAVE_TIMEOUT" envDefault:"5s"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MinPlayers < 1 {
		errs = append(errs, fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", c.MinPlayers))
	}
	if c.MaxPlayers < c.MinPlayers {
		errs = append(errs, fmt.Errorf("MAX_PLAYERS (%d) must not be below MIN_PLAYERS (%d)", c.MaxPlayers, c.MinPlayers))
	}
	if c.CluesPerProfile < 1 {
		errs = append(errs, fmt.Errorf("CLUES_PER_PROFILE must be at least 1, got %d", c.CluesPerProfile))
	}
	if c.SaveDebounce < 0 {
		errs = append(errs, fmt.Errorf("SAVE_DEBOUNCE must not be negative, got %s", c.SaveDebounce))
	}
	if c.DefaultLocale == "" {
		errs = append(errs, errors.New("DEFAULT_LOCALE must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
