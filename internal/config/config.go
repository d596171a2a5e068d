// Package config loads lyricsync settings from a YAML file, an optional
// .env file and LYRICSYNC_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agleyzer/lyricsync/internal/lyrics"
	"github.com/agleyzer/lyricsync/internal/timing"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "lyricsync.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LYRICSYNC_"

// Config holds the application settings.
type Config struct {
	Port int `yaml:"port"`

	// TickInterval is the engine's scheduling period while playing.
	TickInterval time.Duration `yaml:"tick_interval"`
	// FrameInterval is the terminal UI's redraw period.
	FrameInterval time.Duration `yaml:"frame_interval"`

	DefaultSet      string   `yaml:"default_set"`
	DefaultDuration float64  `yaml:"default_duration"`
	LyricsFiles     []string `yaml:"lyrics_files"`

	LogLevel string `yaml:"log_level"`

	Cluster Cluster `yaml:"cluster"`
}

// Cluster holds the optional Raft settings.
type Cluster struct {
	RaftID   string   `yaml:"raft_id"`
	Bind     string   `yaml:"bind"`
	Peers    []string `yaml:"peers"`
	LogLevel string   `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:            8080,
		TickInterval:    16 * time.Millisecond,
		FrameInterval:   33 * time.Millisecond,
		DefaultSet:      lyrics.DefaultSet,
		DefaultDuration: timing.DefaultDuration,
		LogLevel:        "info",
	}
}

// Load reads path over the defaults, then envFile, then the environment.
// An empty path reads DefaultPath when present; an empty envFile reads
// .env when present. Variables already set in the environment win over
// the .env file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("%s%s: %w", EnvPrefix, key, perr)
				return
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "PORT"); ok {
		p, perr := strconv.Atoi(v)
		if perr != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, perr)
		}
		c.Port = p
	}

	if v, ok := os.LookupEnv(EnvPrefix + "DEFAULT_DURATION"); ok {
		d, perr := timing.ParseClock(v)
		if perr != nil {
			return fmt.Errorf("%sDEFAULT_DURATION: %w", EnvPrefix, perr)
		}
		c.DefaultDuration = d
	}

	dur("TICK_INTERVAL", &c.TickInterval)
	dur("FRAME_INTERVAL", &c.FrameInterval)
	str("DEFAULT_SET", &c.DefaultSet)
	list("LYRICS_FILES", &c.LyricsFiles)
	str("LOG_LEVEL", &c.LogLevel)
	str("RAFT_ID", &c.Cluster.RaftID)
	str("RAFT_BIND", &c.Cluster.Bind)
	list("RAFT_PEERS", &c.Cluster.Peers)
	str("RAFT_LOG_LEVEL", &c.Cluster.LogLevel)

	return err
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick_interval must not be negative, got %v", c.TickInterval)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %v", c.FrameInterval)
	}
	if c.DefaultSet == "" {
		return fmt.Errorf("default_set is required")
	}
	if c.DefaultDuration <= 0 {
		return fmt.Errorf("default_duration must be positive, got %v", c.DefaultDuration)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level; Validate has checked it.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return lvl, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
