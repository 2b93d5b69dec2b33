// Package config loads dicer settings from the environment.
package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings shared by every dicer command. Command-line
// flags override these values.
type Config struct {
	Host     string `env:"DICER_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"DICER_HTTP_PORT" envDefault:"8787"`
	GRPCPort int    `env:"DICER_GRPC_PORT" envDefault:"8788"`

	// DBPath selects SQLite storage; empty keeps history in memory.
	DBPath     string `env:"DICER_DB_PATH"`
	PresetsDir string `env:"DICER_PRESETS_DIR"`

	MaxDice   int `env:"DICER_MAX_DICE" envDefault:"10000"`
	RollLimit int `env:"DICER_ROLL_LIMIT" envDefault:"100000"`

	OTelEndpoint string `env:"DICER_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"DICER_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ports and limits.
func (c Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port %d", c.HTTPPort)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port %d", c.GRPCPort)
	}
	if c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		return fmt.Errorf("HTTP and gRPC ports must differ, both are %d", c.HTTPPort)
	}
	if c.MaxDice < 1 {
		return fmt.Errorf("max dice must be at least 1, got %d", c.MaxDice)
	}
	if c.RollLimit < 1 {
		return fmt.Errorf("roll limit must be at least 1, got %d", c.RollLimit)
	}
	return nil
}

// HTTPAddr returns the host:port the REST API listens on.
func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// GRPCAddr returns the host:port the gRPC server listens on.
func (c Config) GRPCAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.GRPCPort))
}
