// Package config handles loading and validation of the collector daemon's
// configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default location for the daemon's config file.
	DefaultConfigPath = "/etc/poweb-collectd/config.yaml"

	// DefaultDataDir is where the daemon keeps its node key and certificate.
	DefaultDataDir = "/var/lib/poweb-collectd"
)

// Config holds all configuration for the poweb-collectd daemon.
type Config struct {
	// GatewayHost is the hostname or address of the PoWeb gateway.
	GatewayHost string `mapstructure:"gateway_host" yaml:"gateway_host"`

	// GatewayPort is the port the gateway listens on.
	GatewayPort int `mapstructure:"gateway_port" yaml:"gateway_port"`

	// GatewayUseTLS selects wss/https versus ws/http for the gateway
	// connection.
	GatewayUseTLS bool `mapstructure:"gateway_use_tls" yaml:"gateway_use_tls"`

	// StreamingMode is "keep-alive" or "close-upon-completion".
	StreamingMode string `mapstructure:"streaming_mode" yaml:"streaming_mode"`

	// DataDir is where the daemon persists its node identity.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration from the given file path, falling back to
// DefaultConfigPath if configPath is empty. Environment variables (prefixed
// POWEB_COLLECTD_) override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("gateway_port", 276)
	v.SetDefault("gateway_use_tls", false)
	v.SetDefault("streaming_mode", "keep-alive")
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("log_level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	v.SetEnvPrefix("POWEB_COLLECTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"gateway_host":    "POWEB_COLLECTD_GATEWAY_HOST",
		"gateway_port":    "POWEB_COLLECTD_GATEWAY_PORT",
		"gateway_use_tls": "POWEB_COLLECTD_GATEWAY_USE_TLS",
		"streaming_mode":  "POWEB_COLLECTD_STREAMING_MODE",
		"data_dir":        "POWEB_COLLECTD_DATA_DIR",
		"log_level":       "POWEB_COLLECTD_LOG_LEVEL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.GatewayHost == "" {
		return fmt.Errorf("gateway_host is required")
	}
	if c.StreamingMode != "keep-alive" && c.StreamingMode != "close-upon-completion" {
		return fmt.Errorf("streaming_mode must be %q or %q, got %q", "keep-alive", "close-upon-completion", c.StreamingMode)
	}
	return nil
}
