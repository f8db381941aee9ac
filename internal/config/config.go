// Package config contains the cryptokit YAML configuration and loader.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/cryptokit/internal/crypto"
	"github.com/remiblancher/cryptokit/internal/logging"
)

// Config is the root of the configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Crypto  CryptoConfig  `yaml:"crypto"`
	Audit   AuditConfig   `yaml:"audit"`
}

// LoggingConfig holds technical logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"required,oneof=debug info warning error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size" validate:"omitempty,min=1,max=100"`
	MaxBackups int    `yaml:"max_backups" validate:"omitempty,min=1,max=10"`
	MaxAge     int    `yaml:"max_age" validate:"omitempty,min=1,max=365"`
}

// CryptoConfig tunes the crypto context.
type CryptoConfig struct {
	// Workers bounds parallel block operations. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"min=0,max=1024"`

	// RSABits and Curve are the key generation defaults.
	RSABits int    `yaml:"rsa_bits" validate:"omitempty,min=1024,max=16384"`
	Curve   string `yaml:"curve"`
}

// AuditConfig enables the hash-chained audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
	Hash    string `yaml:"hash"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  logging.LevelWarning,
			Format: logging.FormatText,
		},
		Crypto: CryptoConfig{
			RSABits: crypto.DefaultRSABits,
			Curve:   crypto.DefaultCurve,
		},
		Audit: AuditConfig{
			Hash: "sha256",
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.Logging.File != "" {
		if c.Logging.MaxSize == 0 || c.Logging.MaxBackups == 0 || c.Logging.MaxAge == 0 {
			return fmt.Errorf("logging.max_size, logging.max_backups and logging.max_age are required for file logging")
		}
	}

	if c.Crypto.Curve != "" {
		if _, err := crypto.NewCurveRegistry().Params(c.Crypto.Curve); err != nil {
			return fmt.Errorf("crypto.curve: %w", err)
		}
	}
	return nil
}

// LoggingSettings converts the logging section.
func (c *Config) LoggingSettings() logging.Settings {
	return logging.Settings{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

// ContextOptions converts the crypto section into context options.
func (c *Config) ContextOptions() []crypto.Option {
	var opts []crypto.Option
	if c.Crypto.Workers > 0 {
		opts = append(opts, crypto.WithWorkers(c.Crypto.Workers))
	}
	if c.Crypto.RSABits > 0 || c.Crypto.Curve != "" {
		opts = append(opts, crypto.WithKeyDefaults(c.Crypto.RSABits, c.Crypto.Curve))
	}
	return opts
}
