package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackupConfig controls the SQLite file backup loop.
type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"path"`
	RetentionDays int           `yaml:"retention_days"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Availability struct {
		SlotWidthMinutes   int           `yaml:"slot_width_minutes"`
		DefaultWindowStart string        `yaml:"default_window_start"`
		DefaultWindowEnd   string        `yaml:"default_window_end"`
		CacheTTL           time.Duration `yaml:"cache_ttl"`
	} `yaml:"availability"`

	Reservations struct {
		MinAdvanceMinutes int           `yaml:"min_advance_minutes"`
		NoShowGrace       time.Duration `yaml:"no_show_grace"`
		SweepInterval     time.Duration `yaml:"sweep_interval"`
	} `yaml:"reservations"`

	Outbox struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		BatchSize    int           `yaml:"batch_size"`
		RatePerSec   float64       `yaml:"rate_per_sec"`
	} `yaml:"outbox"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Load reads the YAML config, expanding ${ENV_VAR} placeholders, and fills
// in defaults for anything left unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/glowbook.db"
	}
	if c.Availability.SlotWidthMinutes <= 0 {
		c.Availability.SlotWidthMinutes = 30
	}
	if c.Availability.DefaultWindowStart == "" {
		c.Availability.DefaultWindowStart = "09:00"
	}
	if c.Availability.DefaultWindowEnd == "" {
		c.Availability.DefaultWindowEnd = "20:00"
	}
	if c.Availability.CacheTTL <= 0 {
		c.Availability.CacheTTL = 60 * time.Second
	}
	if c.Reservations.NoShowGrace <= 0 {
		c.Reservations.NoShowGrace = time.Hour
	}
	if c.Reservations.SweepInterval <= 0 {
		c.Reservations.SweepInterval = 5 * time.Minute
	}
	if c.Outbox.PollInterval <= 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.RatePerSec <= 0 {
		c.Outbox.RatePerSec = 25
	}
}

// MinAdvance is the earliest allowed lead time for a new reservation.
// Zero minutes means "any time not in the past".
func (c *Config) MinAdvance() time.Duration {
	if c.Reservations.MinAdvanceMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Reservations.MinAdvanceMinutes) * time.Minute
}
