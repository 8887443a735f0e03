// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration of the thttp binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration of a thttp server process.
type Config struct {
	// Listen is the TCP address to serve on. Port 0 picks a free port.
	Listen string `mapstructure:"listen"`
	// ServerID is returned in the X-Server-Id header.
	ServerID string `mapstructure:"server_id"`
	// CompressionLevel enables zstd responses when above zero.
	CompressionLevel int `mapstructure:"compression_level"`
	// MaxRequestBytes limits request bodies; zero keeps the server default.
	MaxRequestBytes int64 `mapstructure:"max_request_bytes"`
	// DebugErrors adds Go error types and frames to INTERNAL_ERROR messages.
	DebugErrors bool `mapstructure:"debug_errors"`

	Log       LogConfig        `mapstructure:"log"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
	Endpoints []EndpointConfig `mapstructure:"endpoints"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs  []string       `mapstructure:"outputs"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// TelemetryConfig switches the stdout OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces  bool `mapstructure:"traces"`
	Metrics bool `mapstructure:"metrics"`
}

// EndpointConfig mounts the service at Path. Formats lists the allowed
// format identifiers; empty allows all. Default names the fallback format.
type EndpointConfig struct {
	Path    string   `mapstructure:"path"`
	Formats []string `mapstructure:"formats"`
	Default string   `mapstructure:"default"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Listen:           "127.0.0.1:0",
		CompressionLevel: 3,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path, if non-empty, then applies
// environment overrides. Environment variables use the prefix THTTP and
// replace "." with "_", e.g. THTTP_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("THTTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows.
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("server_id", cfg.ServerID)
	v.SetDefault("compression_level", cfg.CompressionLevel)
	v.SetDefault("max_request_bytes", cfg.MaxRequestBytes)
	v.SetDefault("debug_errors", cfg.DebugErrors)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("telemetry.traces", cfg.Telemetry.Traces)
	v.SetDefault("telemetry.metrics", cfg.Telemetry.Metrics)

	if path == "" {
		path = os.Getenv("THTTP_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	for i, ep := range c.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("endpoints[%d]: path %q must start with /", i, ep.Path)
		}
	}
	return nil
}
