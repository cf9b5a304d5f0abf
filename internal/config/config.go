// Package config loads krishid's TOML configuration with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/krishid/internal/env"
	"github.com/loykin/krishid/internal/launcher"
	"github.com/loykin/krishid/internal/logger"
	"github.com/loykin/krishid/internal/monitor"
	servertls "github.com/loykin/krishid/internal/tls"
)

// EnvPrefix prefixes environment overrides, e.g. KRISHID_MONITOR_ENDPOINT.
const EnvPrefix = "KRISHID"

// Config is the top-level TOML structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Monitor  monitor.Config `mapstructure:"monitor"`
	Launcher LauncherConfig `mapstructure:"launcher"`
	Store    StoreConfig    `mapstructure:"store"`
	Session  StoreConfig    `mapstructure:"session"`
	History  HistoryConfig  `mapstructure:"history"`
	Log      logger.Config  `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the management server.
type ServerConfig struct {
	Listen   string           `mapstructure:"listen"`
	BasePath string           `mapstructure:"base_path"`
	PidFile  string           `mapstructure:"pidfile"`
	TLS      servertls.Config `mapstructure:"tls"`
}

// LauncherConfig is the backend process spec plus the environment sources
// merged into it.
type LauncherConfig struct {
	launcher.Spec `mapstructure:",squash"`

	Enabled  bool          `mapstructure:"enabled"`
	EnvFiles []string      `mapstructure:"env_files"`
	UseOSEnv bool          `mapstructure:"use_os_env"`
	StopWait time.Duration `mapstructure:"stop_wait"`
}

// StoreConfig selects a preference store by DSN (memory://, sqlite://,
// postgres://, or a bare sqlite path).
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HistoryConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Sinks   []string `mapstructure:"sinks"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	d := monitor.DefaultConfig()
	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.pidfile", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.min_version", "1.3")

	v.SetDefault("monitor.endpoint", d.Endpoint)
	v.SetDefault("monitor.management_url", d.ManagementURL)
	v.SetDefault("monitor.production", false)
	v.SetDefault("monitor.check_timeout", d.CheckTimeout)
	v.SetDefault("monitor.poll_interval", d.PollInterval)
	v.SetDefault("monitor.ready_timeout", d.ReadyTimeout)
	v.SetDefault("monitor.monitor_interval", d.MonitorInterval)
	v.SetDefault("monitor.settle_delay", d.SettleDelay)
	v.SetDefault("monitor.notify_delay", d.NotifyDelay)
	v.SetDefault("monitor.trigger_delay", d.TriggerDelay)
	v.SetDefault("monitor.trigger_command", "")
	v.SetDefault("monitor.trigger_workdir", "")
	v.SetDefault("monitor.max_attempts", d.MaxAttempts)
	v.SetDefault("monitor.auto_start", d.AutoStart)

	v.SetDefault("launcher.enabled", true)
	v.SetDefault("launcher.name", "disease-prediction")
	v.SetDefault("launcher.command", "python app_advanced.py")
	v.SetDefault("launcher.work_dir", "crop-disease")
	v.SetDefault("launcher.pid_file", "")
	v.SetDefault("launcher.url", d.Endpoint)
	v.SetDefault("launcher.start_duration", 2*time.Second)
	v.SetDefault("launcher.use_os_env", true)
	v.SetDefault("launcher.stop_wait", 5*time.Second)

	v.SetDefault("store.dsn", "krishid.db")
	v.SetDefault("session.dsn", "memory://")

	v.SetDefault("history.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults alone always decode
		panic(err)
	}
	return cfg
}

// Load reads path (TOML) over the defaults and applies KRISHID_* environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must be set")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	if err := c.Server.TLS.Validate(); err != nil {
		return fmt.Errorf("server.tls: %w", err)
	}
	for i, d := range c.Launcher.Detectors {
		if _, err := d.Build(); err != nil {
			return fmt.Errorf("launcher.detectors[%d]: %w", i, err)
		}
	}
	if c.History.Enabled && len(c.History.Sinks) == 0 {
		return fmt.Errorf("history enabled without sinks")
	}
	return nil
}

// LauncherSpec returns the launcher spec with its environment resolved.
// Precedence: OS env (when use_os_env) is the base, env_files apply in order,
// then launcher.env overrides last. ${VAR} references expand
// against the composed set.
func (c *Config) LauncherSpec() (launcher.Spec, error) {
	spec := c.Launcher.Spec
	if spec.Log.File.Dir == "" && spec.Log.File.StdoutPath == "" && spec.Log.File.StderrPath == "" {
		// child output rotates next to the daemon log unless set per launcher
		spec.Log.File.Dir = c.Log.File.Dir
	}
	e := env.New()
	if c.Launcher.UseOSEnv {
		e.FromOS()
	}
	for _, p := range c.Launcher.EnvFiles {
		if err := e.LoadFile(p); err != nil {
			return launcher.Spec{}, fmt.Errorf("env file %s: %w", p, err)
		}
	}
	spec.Env = e.Apply(c.Launcher.Env).List()
	return spec, nil
}
