// Package config loads rconadmin settings from an optional YAML file and
// RCONADMIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr   string        `yaml:"listen"`
	DatabasePath string        `yaml:"database"`
	DataDir      string        `yaml:"data_dir"`
	DefaultUser  string        `yaml:"default_user"`
	DefaultPass  string        `yaml:"default_password"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	CORSOrigins  []string      `yaml:"cors_origins"`

	Login      LoginConfig      `yaml:"login"`
	RCON       RCONConfig       `yaml:"rcon"`
	Steam      SteamConfig      `yaml:"steam"`
	Redis      RedisConfig      `yaml:"redis"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Population PopulationConfig `yaml:"population"`
	Backup     BackupConfig     `yaml:"backup"`
	Log        LogConfig        `yaml:"log"`
}

// LoginConfig throttles login attempts per client IP.
type LoginConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type RCONConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SteamConfig configures vanity name lookups. An empty APIKey disables them.
type SteamConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// RedisConfig configures the vanity lookup cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ReconcilerConfig struct {
	Workers     int           `yaml:"workers"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

type PopulationConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Retention   time.Duration `yaml:"retention"`
	Concurrency int           `yaml:"concurrency"`
}

// BackupConfig controls database snapshots under DataDir/backups. Keep 0
// retains every snapshot.
type BackupConfig struct {
	Keep int `yaml:"keep"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		DataDir:     "./data",
		DefaultUser: "admin",
		DefaultPass: "admin",
		SessionTTL:  7 * 24 * time.Hour,
		CORSOrigins: []string{"*"},
		Login:       LoginConfig{PerMinute: 10, Burst: 5},
		RCON:        RCONConfig{DialTimeout: 5 * time.Second, Timeout: 10 * time.Second},
		Steam: SteamConfig{
			BaseURL:           "https://api.steampowered.com",
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           10 * time.Second,
		},
		Redis:      RedisConfig{TTL: 24 * time.Hour},
		Reconciler: ReconcilerConfig{Workers: 4, TaskTimeout: 30 * time.Second},
		Population: PopulationConfig{Interval: time.Minute, Retention: 7 * 24 * time.Hour, Concurrency: 8},
		Backup:     BackupConfig{Keep: 10},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// prepares the data directory. A missing file keeps the defaults; an empty
// path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dataDir, "rconadmin.db")
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = envOr("RCONADMIN_LISTEN", c.ListenAddr)
	c.DatabasePath = envOr("RCONADMIN_DB", c.DatabasePath)
	c.DataDir = envOr("RCONADMIN_DATA_DIR", c.DataDir)
	c.DefaultUser = envOr("RCONADMIN_DEFAULT_USER", c.DefaultUser)
	c.DefaultPass = envOr("RCONADMIN_DEFAULT_PASS", c.DefaultPass)
	c.Steam.APIKey = envOr("RCONADMIN_STEAM_API_KEY", c.Steam.APIKey)
	c.Redis.Addr = envOr("RCONADMIN_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOr("RCONADMIN_REDIS_PASSWORD", c.Redis.Password)
	c.Log.Level = envOr("RCONADMIN_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("RCONADMIN_LOG_FORMAT", c.Log.Format)
	if v := os.Getenv("RCONADMIN_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RCONADMIN_SESSION_TTL", &c.SessionTTL},
		{"RCONADMIN_RCON_TIMEOUT", &c.RCON.Timeout},
		{"RCONADMIN_RCON_DIAL_TIMEOUT", &c.RCON.DialTimeout},
		{"RCONADMIN_POPULATION_INTERVAL", &c.Population.Interval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("RCONADMIN_RECONCILER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RCONADMIN_RECONCILER_WORKERS: %w", err)
		}
		c.Reconciler.Workers = n
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.ListenAddr == "":
		return errors.New("config: listen address is required")
	case c.RCON.Timeout <= 0 || c.RCON.DialTimeout <= 0:
		return errors.New("config: rcon timeouts must be positive")
	case c.SessionTTL <= 0:
		return errors.New("config: session_ttl must be positive")
	case c.Population.Interval <= 0:
		return errors.New("config: population.interval must be positive")
	case c.Backup.Keep < 0:
		return errors.New("config: backup.keep must not be negative")
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
