// Package config loads the room client's settings from the environment
// and optional .env files.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
)

var (
	ErrMissingMinigameID  = errors.New("config: MINIGAME_ID is required")
	ErrMissingAccessCode  = errors.New("config: MINIGAME_TESTING_ACCESS_CODE is required")
	ErrPlayersToStart     = errors.New("config: MINIGAME_PLAYERS_TO_START must be at least 1")
	ErrVolume             = errors.New("config: MINIGAME_VOLUME must be between 0 and 100")
	ErrInvalidBaseURL     = errors.New("config: MINIGAME_BASE_URL must be an absolute http(s) URL")
	ErrInvalidLanguage    = errors.New("config: MINIGAME_LANGUAGE is not a BCP 47 tag")
	ErrMatchmakingTimeout = errors.New("config: MINIGAME_MATCHMAKING_TIMEOUT must be positive")
)

type Config struct {
	BaseURL           string `env:"MINIGAME_BASE_URL" envDefault:"http://localhost:3001"`
	MinigameID        string `env:"MINIGAME_ID"`
	TestingAccessCode string `env:"MINIGAME_TESTING_ACCESS_CODE"`
	// DisplayName defaults to Guest_ plus a random code.
	DisplayName    string `env:"MINIGAME_DISPLAY_NAME"`
	PlayersToStart int    `env:"MINIGAME_PLAYERS_TO_START" envDefault:"1"`
	AutoBegin      bool   `env:"MINIGAME_AUTO_BEGIN"       envDefault:"true"`
	Encoding       string `env:"MINIGAME_ENCODING"         envDefault:"Oppack"`

	Language string `env:"MINIGAME_LANGUAGE" envDefault:"en-US"`
	Volume   int    `env:"MINIGAME_VOLUME"   envDefault:"100"`

	MatchmakingTimeout time.Duration `env:"MINIGAME_MATCHMAKING_TIMEOUT" envDefault:"10s"`
	WriteTimeout       time.Duration `env:"MINIGAME_WRITE_TIMEOUT"       envDefault:"3s"`

	Debug       bool   `env:"MINIGAME_DEBUG"`
	MetricsAddr string `env:"MINIGAME_METRICS_ADDR"`
}

// Load parses the environment with Parse, then fills defaults and
// validates.
func Load(files ...string) (Config, error) {
	cfg, err := Parse(files...)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads the given .env files, when they exist, then the
// environment. Variables already set win over file values. Nothing is
// validated.
func Parse(files ...string) (Config, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("config: load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// Finish fills the derived defaults and validates the result.
func (c *Config) Finish() error {
	if c.DisplayName == "" {
		name, err := GuestName()
		if err != nil {
			return err
		}
		c.DisplayName = name
	}
	if c.Language != "" {
		if tag, err := language.Parse(c.Language); err == nil {
			c.Language = tag.String()
		}
	}
	return c.Validate()
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.MinigameID == "" {
		err = multierr.Append(err, ErrMissingMinigameID)
	}
	if c.TestingAccessCode == "" {
		err = multierr.Append(err, ErrMissingAccessCode)
	}
	if c.PlayersToStart < 1 {
		err = multierr.Append(err, ErrPlayersToStart)
	}
	if c.Volume < 0 || c.Volume > 100 {
		err = multierr.Append(err, ErrVolume)
	}
	if c.MatchmakingTimeout <= 0 {
		err = multierr.Append(err, ErrMatchmakingTimeout)
	}
	if u, perr := url.Parse(c.BaseURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		err = multierr.Append(err, ErrInvalidBaseURL)
	}
	if _, perr := language.Parse(c.Language); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %q", ErrInvalidLanguage, c.Language))
	}
	if _, perr := codec.ParseEncoding(c.Encoding); perr != nil {
		err = multierr.Append(err, fmt.Errorf("config: MINIGAME_ENCODING: %w", perr))
	}
	return err
}

// EncodingValue returns the validated wire encoding.
func (c Config) EncodingValue() codec.Encoding {
	enc, err := codec.ParseEncoding(c.Encoding)
	if err != nil {
		return codec.EncodingBinary
	}
	return enc
}

// GenerateCode returns a random six character code of upper-case
// letters and digits.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func GuestName() (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", fmt.Errorf("config: generate display name: %w", err)
	}
	return "Guest_" + code, nil
}
