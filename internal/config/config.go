package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/voice"
)

// VoiceConfig mirrors voice.Params in seconds.
type VoiceConfig struct {
	Attack       float64 `json:"attack"`
	Sustain      float64 `json:"sustain"`
	Decay        float64 `json:"decay"`
	CleanupDelay float64 `json:"cleanupDelay"`
}

// Config is the main configuration structure
type Config struct {
	ServerURL      string      `json:"serverURL"`
	ListenAddr     string      `json:"listenAddr"`
	PollIntervalMs int         `json:"pollIntervalMs"`
	TickPeriodMs   int         `json:"tickPeriodMs"`
	SampleRate     int         `json:"sampleRate"`
	MasterGain     float64     `json:"masterGain"`
	Voice          VoiceConfig `json:"voice"`
	AutoCommitMs   int         `json:"autoCommitMs"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	p := voice.DefaultParams()
	return &Config{
		ServerURL:      "http://localhost:42700",
		ListenAddr:     ":42700",
		PollIntervalMs: 1000,
		TickPeriodMs:   50,
		SampleRate:     44100,
		MasterGain:     1,
		Voice: VoiceConfig{
			Attack:       p.Attack,
			Sustain:      p.Sustain,
			Decay:        p.Decay,
			CleanupDelay: p.CleanupDelay,
		},
		AutoCommitMs: 500,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bayz"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if there
// is none.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads path over the defaults, so fields missing from the file keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("sampleRate must be positive")
	case c.TickPeriodMs <= 0:
		return errors.New("tickPeriodMs must be positive")
	case c.PollIntervalMs <= 0:
		return errors.New("pollIntervalMs must be positive")
	case c.MasterGain < 0:
		return errors.New("masterGain must not be negative")
	case c.AutoCommitMs < 0:
		return errors.New("autoCommitMs must not be negative")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}

func (c *Config) AutoCommit() time.Duration {
	return time.Duration(c.AutoCommitMs) * time.Millisecond
}

// VoiceParams converts the voice section. Zero or negative fields fall back
// to the defaults.
func (c *Config) VoiceParams() voice.Params {
	p := voice.DefaultParams()
	if c.Voice.Attack > 0 {
		p.Attack = c.Voice.Attack
	}
	if c.Voice.Sustain > 0 {
		p.Sustain = c.Voice.Sustain
	}
	if c.Voice.Decay > 0 {
		p.Decay = c.Voice.Decay
	}
	if c.Voice.CleanupDelay > 0 {
		p.CleanupDelay = c.Voice.CleanupDelay
	}
	return p
}
