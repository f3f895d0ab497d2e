//nolint:tagliatelle // superior snake-case yo.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/quake-harvester/internal/catalog"
	"github.com/ethpandaops/quake-harvester/internal/harvester"
	"github.com/ethpandaops/quake-harvester/internal/sink"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Redis     RedisConfig      `yaml:"redis"`
	Leader    LeaderConfig     `yaml:"leader"`
	Catalog   catalog.Config   `yaml:"catalog"`
	Harvester harvester.Config `yaml:"harvester"`
	Sink      sink.Config      `yaml:"sink"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// RedisConfig holds Redis client configuration.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"` //nolint:gosec // Config field, not a hardcoded secret.
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// LeaderConfig holds leader election configuration. When disabled the
// process always harvests.
type LeaderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	LockKey       string        `yaml:"lock_key"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RenewInterval time.Duration `yaml:"renew_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// NeedsRedis reports whether any configured component uses Redis.
func (c *Config) NeedsRedis() bool {
	return c.Leader.Enabled || c.Sink.Type == sink.TypeRedis
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration and applies section defaults.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}

	// Redis is only mandatory when something uses it
	if c.NeedsRedis() {
		if err := c.validateRedis(); err != nil {
			return err
		}
	}

	if c.Leader.Enabled {
		if err := c.validateLeader(); err != nil {
			return err
		}
	}

	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := c.Harvester.Validate(); err != nil {
		return fmt.Errorf("harvester: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}

	if c.Redis.DialTimeout <= 0 {
		return fmt.Errorf("redis.dial_timeout must be positive")
	}

	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be positive")
	}

	return nil
}

func (c *Config) validateLeader() error {
	if c.Leader.LockKey == "" {
		return fmt.Errorf("leader.lock_key is required")
	}

	if c.Leader.LockTTL <= 0 {
		return fmt.Errorf("leader.lock_ttl must be positive")
	}

	if c.Leader.RenewInterval <= 0 {
		return fmt.Errorf("leader.renew_interval must be positive")
	}

	if c.Leader.RetryInterval <= 0 {
		return fmt.Errorf("leader.retry_interval must be positive")
	}

	if c.Leader.RenewInterval >= c.Leader.LockTTL {
		return fmt.Errorf("leader.renew_interval must be shorter than leader.lock_ttl")
	}

	return nil
}
