// Package projects resolves the daemon's registered projects — named
// services with a working directory and a Procfile-style process
// list — from files under the config directory. This is how a user's
// "project registration" (spec.md's PURPOSE/SCOPE) actually reaches
// the registry: the RPC `start`/`reload` commands name a service, and
// this package turns that name into a directory plus a []procdef.Def.
package projects

import (
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/overseerd/internal/procdef"
)

// GlobalConfig is the daemon-wide configuration read from
// {config_dir}/config.toml. Every field has a sensible default so a
// daemon with no config file at all still runs.
type GlobalConfig struct {
	Daemon   DaemonConfig
	Logs     LogsConfig
	Defaults ProcessDefaults
}

// DaemonConfig controls the daemon's own runtime behavior.
type DaemonConfig struct {
	IdleTimeout time.Duration
	HTTPPort    int
}

// LogsConfig holds the log settings read from config.toml. MaxAgeDays
// and MaxFiles set the expiry sweep's policy. MaxSizeBytes is read but
// not applied: captures always rotate at output.DefaultMaxLogSize.
type LogsConfig struct {
	MaxSizeBytes int64
	MaxAgeDays   int
	MaxFiles     int
}

// ProcessDefaults seed every process definition parsed from a
// Procfile; a project's override file may replace them per-process.
type ProcessDefaults struct {
	Restart      bool
	MaxRetries   int
	RestartDelay time.Duration
	Env          map[string]string
}

func secToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

func defaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Daemon: DaemonConfig{IdleTimeout: 300 * time.Second, HTTPPort: 13369},
		Logs:   LogsConfig{MaxSizeBytes: 10 * 1024 * 1024, MaxAgeDays: 7, MaxFiles: 5},
		Defaults: ProcessDefaults{
			Restart: true, MaxRetries: 3, RestartDelay: time.Second,
			Env: map[string]string{"FORCE_COLOR": "1", "CLICOLOR_FORCE": "1"},
		},
	}
}

// LoadGlobalConfig reads {configDir}/config.toml, falling back to
// defaultGlobalConfig for any field the file doesn't set (or if the
// file doesn't exist at all).
func LoadGlobalConfig(configDir string) GlobalConfig {
	cfg := defaultGlobalConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetDefault("daemon.idle_timeout_secs", int(cfg.Daemon.IdleTimeout.Seconds()))
	v.SetDefault("daemon.http_port", cfg.Daemon.HTTPPort)
	v.SetDefault("logs.max_size_bytes", cfg.Logs.MaxSizeBytes)
	v.SetDefault("logs.max_age_days", cfg.Logs.MaxAgeDays)
	v.SetDefault("logs.max_files", cfg.Logs.MaxFiles)
	v.SetDefault("defaults.restart", cfg.Defaults.Restart)
	v.SetDefault("defaults.max_retries", cfg.Defaults.MaxRetries)
	v.SetDefault("defaults.restart_delay_secs", int(cfg.Defaults.RestartDelay.Seconds()))
	v.SetDefault("defaults.env", cfg.Defaults.Env)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			// Malformed config.toml: keep defaults rather than fail the
			// daemon over an operator typo in an optional file.
			return cfg
		}
	}

	cfg.Daemon.IdleTimeout = time.Duration(v.GetInt("daemon.idle_timeout_secs")) * time.Second
	cfg.Daemon.HTTPPort = v.GetInt("daemon.http_port")
	cfg.Logs.MaxSizeBytes = v.GetInt64("logs.max_size_bytes")
	cfg.Logs.MaxAgeDays = v.GetInt("logs.max_age_days")
	cfg.Logs.MaxFiles = v.GetInt("logs.max_files")
	cfg.Defaults.Restart = v.GetBool("defaults.restart")
	cfg.Defaults.MaxRetries = v.GetInt("defaults.max_retries")
	cfg.Defaults.RestartDelay = time.Duration(v.GetInt("defaults.restart_delay_secs")) * time.Second
	if env := v.GetStringMapString("defaults.env"); len(env) > 0 {
		cfg.Defaults.Env = env
	}
	return cfg
}

// toDef is a convenience used when materializing a process
// definition with no per-process override.
func (d ProcessDefaults) toDef(name, command string, autostart bool) procdef.Def {
	env := make(map[string]string, len(d.Env))
	for k, v := range d.Env {
		env[k] = v
	}
	return procdef.Def{
		Name: name, Command: command, Kind: procdef.KindService,
		Restart: d.Restart, MaxRetries: d.MaxRetries, RestartDelay: d.RestartDelay,
		Env: env, Autostart: autostart,
	}
}
