// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/19deck/internal/app/playback"
)

// Config represents the application configuration.
type Config struct {
	Player   PlayerConfig   `yaml:"player"`
	Output   OutputConfig   `yaml:"output"`
	Messages MessagesConfig `yaml:"messages"`
}

// PlayerConfig represents the track and playback policy.
type PlayerConfig struct {
	Source        string   `yaml:"source"`
	AutoPlay      bool     `yaml:"autoplay"`
	Loop          bool     `yaml:"loop"`
	Volume        *float64 `yaml:"volume" validate:"omitempty,gte=0,lte=1"` // 0 mutes; nil selects playback.DefaultVolume
	LoadTimeoutMs int      `yaml:"load_timeout_ms" default:"30000" validate:"gte=0,lte=600000"`
	VolumeStep    float64  `yaml:"volume_step" default:"0.05" validate:"gt=0,lte=1"`
}

// OutputConfig selects the media handle implementation.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"speaker" validate:"oneof=speaker none headless"`
	Settings map[string]any `yaml:"settings"`
}

// MessagesConfig represents user-facing messages. Empty fields take the
// playback package defaults.
type MessagesConfig struct {
	Aborted        string `yaml:"aborted"`
	Network        string `yaml:"network"`
	Decode         string `yaml:"decode"`
	Unsupported    string `yaml:"unsupported"`
	DefaultError   string `yaml:"default_error"`
	PlaybackFailed string `yaml:"playback_failed"`
	AutoplayFailed string `yaml:"autoplay_failed"`
}

// fill sets every empty message from playback.DefaultMessages.
func (m *MessagesConfig) fill() {
	d := playback.DefaultMessages()
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&m.Aborted, d.Aborted},
		{&m.Network, d.Network},
		{&m.Decode, d.Decode},
		{&m.Unsupported, d.Unsupported},
		{&m.DefaultError, d.Default},
		{&m.PlaybackFailed, d.PlaybackFailed},
		{&m.AutoplayFailed, d.AutoplayFailed},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	cfg.Messages.fill()
	return &cfg, nil
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	cfg.Messages.fill()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zlog.Debug().Msgf("config file %s not found, using defaults", path)
		cfg, err := Default()
		if err != nil {
			return nil, err
		}
		if err := cfg.overrideFromEnv(); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("DECK_SOURCE"); v != "" {
		c.Player.Source = v
	}
	if v := os.Getenv("DECK_AUTOPLAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid DECK_AUTOPLAY %q", v)
		}
		c.Player.AutoPlay = b
	}
	if v := os.Getenv("DECK_LOOP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid DECK_LOOP %q", v)
		}
		c.Player.Loop = b
	}
	if v := os.Getenv("DECK_VOLUME"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid DECK_VOLUME %q", v)
		}
		c.Player.Volume = &f
	}
	if v := os.Getenv("DECK_OUTPUT"); v != "" {
		c.Output.Type = v
	}
	return nil
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "aborted":
		return c.Messages.Aborted
	case "network":
		return c.Messages.Network
	case "decode":
		return c.Messages.Decode
	case "src_not_supported", "unsupported":
		return c.Messages.Unsupported
	case "playback_failed", "play_rejected":
		return c.Messages.PlaybackFailed
	case "autoplay_failed":
		return c.Messages.AutoplayFailed
	default:
		return c.Messages.DefaultError
	}
}

// InitialVolume returns the configured volume, or playback.DefaultVolume
// when unset.
func (c *Config) InitialVolume() float64 {
	if c.Player.Volume == nil {
		return playback.DefaultVolume
	}
	return *c.Player.Volume
}

// LoadTimeout returns the load timeout, zero meaning none.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Player.LoadTimeoutMs) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
