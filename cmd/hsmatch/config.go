package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
)

// Config holds settings shared by every command. Values come from, in
// increasing precedence: defaults, hsmatch.yaml, HSMATCH_* environment
// variables, command-line flags.
type Config struct {
	Catalog    string `mapstructure:"catalog"`
	Format     string `mapstructure:"format"`
	Color      string `mapstructure:"color"`
	LogLevel   string `mapstructure:"log_level"`
	Workers    int    `mapstructure:"workers"`
	MaxMatches int    `mapstructure:"max_matches"`
	BlockSize  int    `mapstructure:"block_size"`
	Context    int    `mapstructure:"context_lines"`
}

func DefaultConfig() *Config {
	return &Config{
		Catalog:   "hsmatch.db",
		Format:    "auto",
		Color:     "auto",
		LogLevel:  "warn",
		BlockSize: matcher.DefaultBlockSize,
	}
}

// flagKeys maps config keys to the flag names that override them.
var flagKeys = map[string]string{
	"catalog":       "catalog",
	"format":        "format",
	"color":         "color",
	"workers":       "workers",
	"max_matches":   "max-matches",
	"block_size":    "block-size",
	"context_lines": "context-lines",
}

// loadConfig resolves the configuration for cmd. An explicit path must
// exist; the default hsmatch.yaml is optional.
func loadConfig(cmd *cobra.Command, path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetDefault("catalog", cfg.Catalog)
	v.SetDefault("format", cfg.Format)
	v.SetDefault("color", cfg.Color)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("max_matches", cfg.MaxMatches)
	v.SetDefault("block_size", cfg.BlockSize)
	v.SetDefault("context_lines", cfg.Context)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hsmatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hsmatch")
	}
	v.SetEnvPrefix("HSMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	switch cfg.Format {
	case "auto", "human", "json":
	default:
		return nil, fmt.Errorf("unknown output format: %s", cfg.Format)
	}
	return cfg, nil
}
