// Package config provides configuration management for the platform scanner.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Scan    ScanConfig        `mapstructure:"scan" json:"scan"`
	Server  ServerConfig      `mapstructure:"server" json:"server"`
	Storage StorageConfig     `mapstructure:"storage" json:"storage"`
	Redis   RedisConfig       `mapstructure:"redis" json:"redis"`
	Breaker BreakerConfig     `mapstructure:"breaker" json:"breaker"`
	Jobs    JobsConfig        `mapstructure:"jobs" json:"jobs"`
	Logging logging.LogConfig `mapstructure:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// StorageConfig holds SQLite storage configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" json:"db_path"`
}

// RedisConfig holds the series cache configuration.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled" json:"enabled"`
	Addr      string        `mapstructure:"addr" json:"addr"`
	Password  string        `mapstructure:"password" json:"-"`
	DB        int           `mapstructure:"db" json:"db"`
	TTL       time.Duration `mapstructure:"ttl" json:"ttl"`
	Namespace string        `mapstructure:"namespace" json:"namespace"`
}

// BreakerConfig holds the circuit breaker guarding the series source.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" json:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold" json:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold" json:"success_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown" json:"cooldown"`
}

// JobsConfig holds scan job retention settings.
type JobsConfig struct {
	TTL             time.Duration `mapstructure:"ttl" json:"ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" json:"janitor_interval"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/platform-scanner"
	}
	return filepath.Join(home, ".config", "platform-scanner")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	logCfg := logging.DefaultLogConfig()
	return &Config{
		Scan: DefaultScanConfig(),
		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "scanner.db"),
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			TTL:       5 * time.Minute,
			Namespace: "series",
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 10,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
		},
		Jobs: JobsConfig{
			TTL:             time.Hour,
			JanitorInterval: 10 * time.Minute,
		},
		Logging: logCfg,
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A .env file in the
// working directory is loaded first so its values can feed the env overrides.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("server.addr", target.Server.Addr)
	v.SetDefault("server.shutdown_timeout", target.Server.ShutdownTimeout)
	v.SetDefault("storage.db_path", target.Storage.DBPath)
	v.SetDefault("redis.ttl", target.Redis.TTL)
	v.SetDefault("breaker.enabled", target.Breaker.Enabled)
	v.SetDefault("breaker.failure_threshold", target.Breaker.FailureThreshold)
	v.SetDefault("breaker.success_threshold", target.Breaker.SuccessThreshold)
	v.SetDefault("breaker.cooldown", target.Breaker.Cooldown)
	v.SetDefault("jobs.ttl", target.Jobs.TTL)
	v.SetDefault("jobs.janitor_interval", target.Jobs.JanitorInterval)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// First run: leave a commented template behind and continue on defaults
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLATFORM_SCANNER_DB"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("SCANNER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Breaker.Enabled && (c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1) {
		return fmt.Errorf("breaker thresholds must be at least 1")
	}
	if c.Jobs.TTL <= 0 {
		return fmt.Errorf("jobs.ttl must be positive")
	}
	return nil
}
