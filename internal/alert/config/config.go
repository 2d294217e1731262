package config

import (
	"time"

	"tradeedge-alerts/pkg/config"
)

// Engine holds the alert engine's tuning knobs.
type Engine struct {
	TickReadTimeout       time.Duration `mapstructure:"tick_read_timeout"`
	LaneBufferSize        int           `mapstructure:"lane_buffer_size"`
	EvalConcurrency       int           `mapstructure:"eval_concurrency"`
	DispatcherWorkers     int           `mapstructure:"dispatcher_workers"`
	DispatcherQueueSize   int           `mapstructure:"dispatcher_queue_size"`
	DeliveryTimeout       time.Duration `mapstructure:"delivery_timeout"`
	MaxDeliveryAttempts   int           `mapstructure:"max_delivery_attempts"`
	RetryBackoffBase      time.Duration `mapstructure:"retry_backoff_base"`
	RetryBackoffMax       time.Duration `mapstructure:"retry_backoff_max"`
	LedgerCommitRetries   int           `mapstructure:"ledger_commit_retries"`
	RetrySweepSchedule    string        `mapstructure:"retry_sweep_schedule"`
	RecoverySweepSchedule string        `mapstructure:"recovery_sweep_schedule"`
	PolicyCacheTTL        time.Duration `mapstructure:"policy_cache_ttl"`
}

// Email holds the SMTP settings for the email channel adapter.
type Email struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	FromAddress  string `mapstructure:"from_address"`
	MaxPerMinute int    `mapstructure:"max_per_minute"`
}

// SMS holds the Twilio settings for the SMS channel adapter.
type SMS struct {
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	FromNumber   string `mapstructure:"from_number"`
	MaxPerMinute int    `mapstructure:"max_per_minute"`
}

// Telegram holds configuration for the operator dead-letter notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the alert services.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Engine   Engine          `mapstructure:"engine"`
	Email    Email           `mapstructure:"email"`
	SMS      SMS             `mapstructure:"sms"`
	Telegram Telegram        `mapstructure:"telegram"`
}

// Load loads the alert configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.TickReadTimeout == 0 {
		e.TickReadTimeout = 30 * time.Second
	}
	if e.LaneBufferSize == 0 {
		e.LaneBufferSize = 64
	}
	if e.EvalConcurrency == 0 {
		e.EvalConcurrency = 8
	}
	if e.DispatcherWorkers == 0 {
		e.DispatcherWorkers = 4
	}
	if e.DispatcherQueueSize == 0 {
		e.DispatcherQueueSize = 256
	}
	if e.DeliveryTimeout == 0 {
		e.DeliveryTimeout = 10 * time.Second
	}
	if e.MaxDeliveryAttempts == 0 {
		e.MaxDeliveryAttempts = 5
	}
	if e.RetryBackoffBase == 0 {
		e.RetryBackoffBase = 30 * time.Second
	}
	if e.RetryBackoffMax == 0 {
		e.RetryBackoffMax = 30 * time.Minute
	}
	if e.LedgerCommitRetries == 0 {
		e.LedgerCommitRetries = 3
	}
	if e.RetrySweepSchedule == "" {
		e.RetrySweepSchedule = "@every 1m"
	}
	if e.RecoverySweepSchedule == "" {
		e.RecoverySweepSchedule = "@every 5m"
	}
	if e.PolicyCacheTTL == 0 {
		e.PolicyCacheTTL = 5 * time.Minute
	}
}
