package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the master's configuration, read from YAML with environment
// overrides.
type Config struct {
	Env      string         `yaml:"env" env:"TELECORE_ENV" env-default:"prod"`
	Channels ChannelsConfig `yaml:"channels"`
	Session  SessionConfig  `yaml:"session"`
	MDNS     MDNSConfig     `yaml:"mdns"`
	Storage  StorageConfig  `yaml:"storage"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
}

type ChannelsConfig struct {
	// Path of the channel file (see channel.LoadFile).
	Path string `yaml:"path" env:"TELECORE_CHANNELS" env-required:"true"`
}

type SessionConfig struct {
	OpenTimeout       time.Duration `yaml:"open_timeout" env:"TELECORE_OPEN_TIMEOUT" env-default:"10s"`
	MaxFrameSize      uint32        `yaml:"max_frame_size" env-default:"65536"`
	SerialReadTimeout time.Duration `yaml:"serial_read_timeout" env-default:"0s"`
	StrictQuality     bool          `yaml:"strict_quality" env:"TELECORE_STRICT_QUALITY" env-default:"false"`
}

type MDNSConfig struct {
	ServiceType string `yaml:"service_type" env-default:"_telecore._tcp"`
	Domain      string `yaml:"domain" env-default:"local."`
	Interface   string `yaml:"interface"`
}

type StorageConfig struct {
	SnapshotPath  string        `yaml:"snapshot_path" env:"TELECORE_SNAPSHOT"`
	HistoryPath   string        `yaml:"history_path" env:"TELECORE_HISTORY"`
	HistoryMaxAge time.Duration `yaml:"history_max_age" env-default:"168h"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"true"`
	Address string `yaml:"address" env:"TELECORE_HTTP_ADDRESS" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TELECORE_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"text"`

	// ProtocolLog is a .tlog file receiving protocol events (optional).
	ProtocolLog string `yaml:"protocol_log" env:"TELECORE_PROTOCOL_LOG"`
}

// LoadConfig reads path, falling back to CONFIG_PATH. With neither set the
// configuration comes from the environment alone.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Session.OpenTimeout < 0 {
		return errors.New("session.open_timeout must not be negative")
	}
	if c.Session.MaxFrameSize == 0 {
		return errors.New("session.max_frame_size must be > 0")
	}
	return nil
}
