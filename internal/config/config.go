// Package config loads and validates the engine's configuration value
// object (spec §6.2), the same cleanenv/YAML pattern the teacher's
// internal/config package uses for its own app config.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/omnifs/omnifs/internal/pkg/omnierr"
)

// Config is the validated value handed to internal/engine.Open and
// internal/engine.Format. Every field maps directly to a spec §6.2 key.
type Config struct {
	TotalSize  uint64 `yaml:"total_size"`
	HeaderSize uint32 `yaml:"header_size"`
	BlockSize  uint32 `yaml:"block_size"`
	MaxFiles   uint32 `yaml:"max_files" env-default:"8192"`
	MaxUsers   uint32 `yaml:"max_users" env-default:"64"`

	AdminUsername string `yaml:"admin_username" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env-default:"admin123"`
	RequireAuth   bool   `yaml:"require_auth" env-default:"true"`

	Port           int           `yaml:"port" env-default:"8080"`
	MaxConnections int           `yaml:"max_connections" env-default:"64"`
	QueueTimeout   time.Duration `yaml:"queue_timeout" env-default:"5s"`

	SessionTTL time.Duration `yaml:"session_ttl" env-default:"1h"`
}

// MustLoad reads path, expands ${VAR} references against the process
// environment, and decodes the result into a Config — panicking on
// any failure, matching the teacher's MustLoad entrypoint for cmd/
// binaries where a bad config is a startup-time fatal condition, not
// a recoverable error.
func MustLoad(path string) *Config {
	if path == "" {
		panic("config path is empty")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic("failed to read config file: " + err.Error())
	}
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		panic("cannot parse config: " + err.Error())
	}
	// cleanenv fills in env-default values for any field the YAML left
	// at its zero value. No field declares an env tag, so no environment
	// variable overrides a decoded value.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("cannot read env overrides: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}
	return &cfg
}

// Validate enforces spec §6.2's ranges.
func (c *Config) Validate() error {
	const op = "config.Config.Validate"

	if c.TotalSize == 0 {
		return omnierr.New(omnierr.InvalidConfig, op, "total_size must be > 0")
	}
	if c.HeaderSize != 512 {
		return omnierr.New(omnierr.InvalidConfig, op, "header_size must be 512")
	}
	if c.BlockSize < 512 || c.BlockSize > 1<<20 || c.BlockSize&(c.BlockSize-1) != 0 {
		return omnierr.New(omnierr.InvalidConfig, op, fmt.Sprintf("block_size %d must be a power of two in [512, 1048576]", c.BlockSize))
	}
	if c.MaxFiles == 0 {
		return omnierr.New(omnierr.InvalidConfig, op, "max_files must be > 0")
	}
	if c.MaxUsers == 0 || c.MaxUsers > 1000 {
		return omnierr.New(omnierr.InvalidConfig, op, "max_users must be in [1, 1000]")
	}
	if c.AdminUsername == "" {
		return omnierr.New(omnierr.InvalidConfig, op, "admin_username must not be empty")
	}
	if len(c.AdminPassword) < 4 {
		return omnierr.New(omnierr.InvalidConfig, op, "admin_password must be at least 4 characters")
	}
	if c.Port < 1 || c.Port > 65535 {
		return omnierr.New(omnierr.InvalidConfig, op, "port must be in [1, 65535]")
	}
	if c.MaxConnections <= 0 {
		return omnierr.New(omnierr.InvalidConfig, op, "max_connections must be > 0")
	}
	if c.QueueTimeout <= 0 {
		return omnierr.New(omnierr.InvalidConfig, op, "queue_timeout must be > 0")
	}
	return nil
}
