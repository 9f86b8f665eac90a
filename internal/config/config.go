// Package config loads the settings a filerelay host (acceptor or
// connector) needs to start: where its key pair and whitelist live, what
// address to listen on or dial, and the socket timeouts to apply.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/blockrelay/filerelay/internal/constants"
)

// Config holds a fully resolved set of settings for one filerelay host.
type Config struct {
	// BaseDir anchors the default locations of the key pair and
	// whitelist when their paths are not set explicitly.
	BaseDir string `mapstructure:"base_dir"`

	PrivateKeyPath string `mapstructure:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path"`
	WhitelistPath  string `mapstructure:"whitelist_path"`

	// ListenAddress is the acceptor's bind address ("host:port").
	ListenAddress string `mapstructure:"listen_address"`

	// ConnectKey authenticates a connector to a remote acceptor. Empty
	// on an acceptor-only host.
	ConnectKey string `mapstructure:"connect_key"`

	// ReceivedDir is where the acceptor persists received blobs.
	ReceivedDir string `mapstructure:"received_dir"`

	IOTimeout        time.Duration `mapstructure:"io_timeout"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	// HandshakeRateLimit caps accepted handshake attempts per second;
	// zero disables the limit.
	HandshakeRateLimit float64 `mapstructure:"handshake_rate_limit"`
	HandshakeBurst     int     `mapstructure:"handshake_burst"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", ".")
	v.SetDefault("private_key_path", "")
	v.SetDefault("public_key_path", "")
	v.SetDefault("whitelist_path", "")
	v.SetDefault("listen_address", fmt.Sprintf(":%d", constants.DefaultPort))
	v.SetDefault("connect_key", "")
	v.SetDefault("received_dir", "received")
	v.SetDefault("io_timeout", constants.IOTimeout)
	v.SetDefault("handshake_timeout", constants.HandshakeTimeout)
	v.SetDefault("handshake_rate_limit", 0.0)
	v.SetDefault("handshake_burst", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads settings from path if non-empty, then from FILERELAY_*
// environment variables, layered over defaults. path may be empty, in
// which case only environment variables and defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("filerelay")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.resolvePaths()
	return &cfg, nil
}

// resolvePaths fills in key/whitelist paths relative to BaseDir when the
// caller left them unset.
func (c *Config) resolvePaths() {
	if c.PrivateKeyPath == "" {
		c.PrivateKeyPath = filepath.Join(c.BaseDir, constants.DefaultKeysDir, constants.DefaultPrivateKeyFile)
	}
	if c.PublicKeyPath == "" {
		c.PublicKeyPath = filepath.Join(c.BaseDir, constants.DefaultKeysDir, constants.DefaultPublicKeyFile)
	}
	if c.WhitelistPath == "" {
		c.WhitelistPath = filepath.Join(c.BaseDir, constants.DefaultWhitelistFile)
	}
	if c.ReceivedDir == "" {
		c.ReceivedDir = filepath.Join(c.BaseDir, "received")
	}
}

// Validate checks that a Config is usable for the acceptor role.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("config: listen_address must not be empty")
	}
	if c.IOTimeout <= 0 {
		return fmt.Errorf("config: io_timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("config: handshake_timeout must be positive")
	}
	return nil
}
