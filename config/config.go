// Package config loads engine settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// HashFraction is the share of system memory given to the
	// transposition table.
	HashFraction float64
	// DefaultDepth is used by the `go` command when no limit is given.
	DefaultDepth int
	LogLevel     string
	HistoryFile  string
}

// Load reads configuration from FERZ_* environment variables and, when
// present, a ferz.yaml file in the working directory or $HOME/.ferz.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ferz")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("hash-fraction", 0.02)
	v.SetDefault("default-depth", 8)
	v.SetDefault("log-level", "info")
	v.SetDefault("history-file", "/tmp/.ferz_history")

	v.SetConfigName("ferz")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ferz")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	return &Config{
		HashFraction: v.GetFloat64("hash-fraction"),
		DefaultDepth: v.GetInt("default-depth"),
		LogLevel:     v.GetString("log-level"),
		HistoryFile:  v.GetString("history-file"),
	}, nil
}
