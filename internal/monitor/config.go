package monitor

import (
	"errors"
	"time"
)

// Defaults.
const (
	DefaultEndpoint        = "http://127.0.0.1:5000"
	DefaultManagementURL   = "http://127.0.0.1:8765"
	DefaultCheckTimeout    = 3 * time.Second
	DefaultPollInterval    = 2 * time.Second
	DefaultReadyTimeout    = 30 * time.Second
	DefaultMonitorInterval = 30 * time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultNotifyDelay     = 2 * time.Second
	DefaultTriggerDelay    = 3 * time.Second
	DefaultMaxAttempts     = 3
)

// Config parameterizes a Monitor.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	ManagementURL   string        `mapstructure:"management_url"`
	Production      bool          `mapstructure:"production"`
	CheckTimeout    time.Duration `mapstructure:"check_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ReadyTimeout    time.Duration `mapstructure:"ready_timeout"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	NotifyDelay     time.Duration `mapstructure:"notify_delay"`
	TriggerDelay    time.Duration `mapstructure:"trigger_delay"`
	TriggerCommand  string        `mapstructure:"trigger_command"`
	TriggerWorkDir  string        `mapstructure:"trigger_workdir"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	AutoStart       bool          `mapstructure:"auto_start"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:        DefaultEndpoint,
		ManagementURL:   DefaultManagementURL,
		CheckTimeout:    DefaultCheckTimeout,
		PollInterval:    DefaultPollInterval,
		ReadyTimeout:    DefaultReadyTimeout,
		MonitorInterval: DefaultMonitorInterval,
		SettleDelay:     DefaultSettleDelay,
		NotifyDelay:     DefaultNotifyDelay,
		TriggerDelay:    DefaultTriggerDelay,
		MaxAttempts:     DefaultMaxAttempts,
		AutoStart:       true,
	}
}

// withDefaults fills zero durations and counts.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = d.CheckTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = d.ReadyTimeout
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.NotifyDelay < 0 {
		c.NotifyDelay = 0
	}
	if c.TriggerDelay <= 0 {
		c.TriggerDelay = d.TriggerDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	if c.PollInterval > 0 && c.ReadyTimeout > 0 && c.PollInterval > c.ReadyTimeout {
		return errors.New("poll_interval must not exceed ready_timeout")
	}
	if c.MaxAttempts < 0 {
		return errors.New("max_attempts must not be negative")
	}
	return nil
}
