package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Bus struct {
		IntervalSeconds     int    `yaml:"interval_seconds"`
		LockName            string `yaml:"lock_name"`
		LockLeaseSeconds    int    `yaml:"lock_lease_seconds"`
		MaxAttempts         int    `yaml:"max_attempts"`
		BaseDelayMs         int    `yaml:"base_delay_ms"`
		StuckTimeoutSeconds int    `yaml:"stuck_timeout_seconds"`
	} `yaml:"bus"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

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

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/lift.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) BusInterval() time.Duration {
	if c.Bus.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Bus.IntervalSeconds) * time.Second
}

func (c *Config) LockLease() time.Duration {
	if c.Bus.LockLeaseSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Bus.LockLeaseSeconds) * time.Second
}

func (c *Config) BaseDelay() time.Duration {
	if c.Bus.BaseDelayMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Bus.BaseDelayMs) * time.Millisecond
}

// StuckTimeout is how long an envelope may sit in processing before a
// pass reclaims it. Negative values disable reclaiming.
func (c *Config) StuckTimeout() time.Duration {
	if c.Bus.StuckTimeoutSeconds < 0 {
		return -1
	}
	if c.Bus.StuckTimeoutSeconds == 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Bus.StuckTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
