package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved server configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Program   ProgramConfig
	Clock     ClockConfig
	Log       LogConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port int
}

type StoreConfig struct {
	// DB is a SQLite path; ":memory:" for a throwaway database.
	DB string
}

type ProgramConfig struct {
	// File is a JSON or YAML program definition. Empty uses the reference program.
	File string
}

type ClockConfig struct {
	// SimulatedDate pins the server clock (RFC3339 or YYYY-MM-DD).
	SimulatedDate string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console, json
	File   string // optional rotating file sink
}

type SchedulerConfig struct {
	Interval     time.Duration // 0 disables the tier sweep
	ExpiryWindow time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.db", "loyalty.db")
	v.SetDefault("program.file", "")
	v.SetDefault("clock.simulated_date", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.expiry_window", 30*24*time.Hour)
}

// loadConfig reads cfgFile (or ./loyalty.yaml when present), then LOYALTY_*
// environment variables, over the defaults. Bound flags win over both.
func loadConfig(v *viper.Viper, cfgFile string) (Config, error) {
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("loyalty")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOYALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server:  ServerConfig{Port: v.GetInt("server.port")},
		Store:   StoreConfig{DB: v.GetString("store.db")},
		Program: ProgramConfig{File: v.GetString("program.file")},
		Clock:   ClockConfig{SimulatedDate: v.GetString("clock.simulated_date")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
		Scheduler: SchedulerConfig{
			Interval:     v.GetDuration("scheduler.interval"),
			ExpiryWindow: v.GetDuration("scheduler.expiry_window"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1..65535, got %d", c.Server.Port)
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("scheduler.interval must not be negative")
	}
	if c.Scheduler.ExpiryWindow <= 0 {
		return fmt.Errorf("scheduler.expiry_window must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
