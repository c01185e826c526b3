package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type LoggingConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	// URL, when set, overrides host, port, password and db
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// SlowPing is the health check latency above which redis reports unhealthy
	SlowPing string `mapstructure:"slow_ping"`
}

// SlowPingDuration returns the health check latency limit, 500ms when unset
// or invalid
func (c RedisConfig) SlowPingDuration() time.Duration {
	d, err := time.ParseDuration(c.SlowPing)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// EngineConfig tunes scoring and the batch generation job
type EngineConfig struct {
	WindowDays     int     `mapstructure:"window_days"`
	MaxConcurrency int     `mapstructure:"max_concurrency"`
	ListingTimeout string  `mapstructure:"listing_timeout"`
	ReadsPerSecond float64 `mapstructure:"reads_per_second"`
	AlgoVersion    string  `mapstructure:"algo_version"`
	SnapshotLimit  int     `mapstructure:"snapshot_limit"`
	NetImpactNudge bool    `mapstructure:"net_impact_nudge"`
}

// ListingTimeoutDuration returns the parsed per-listing timeout
func (c EngineConfig) ListingTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ListingTimeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}
	if err := viper.BindEnv("redis.url", "REDIS_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind REDIS_URL environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Engine.WindowDays < 1 {
		return fmt.Errorf("engine.window_days must be at least 1, got %d", c.Engine.WindowDays)
	}
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("engine.max_concurrency must be at least 1, got %d", c.Engine.MaxConcurrency)
	}
	if c.Engine.ReadsPerSecond < 0 {
		return fmt.Errorf("engine.reads_per_second must not be negative, got %v", c.Engine.ReadsPerSecond)
	}
	d, err := time.ParseDuration(c.Engine.ListingTimeout)
	if err != nil {
		return fmt.Errorf("invalid engine.listing_timeout duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("engine.listing_timeout must be positive, got %s", d)
	}
	if c.Redis.SlowPing != "" {
		if _, err := time.ParseDuration(c.Redis.SlowPing); err != nil {
			return fmt.Errorf("invalid redis.slow_ping duration: %w", err)
		}
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
			return fmt.Errorf("invalid scheduler.cron expression: %w", err)
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("invalid scheduler.timezone: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Logging
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.max_size_mb", 100)
	viper.SetDefault("logging.max_backups", 5)

	// Server
	viper.SetDefault("server.port", 8080)

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "kdp_pulse")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.slow_ping", "500ms")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")

	// Engine
	viper.SetDefault("engine.window_days", 30)
	viper.SetDefault("engine.max_concurrency", 8)
	viper.SetDefault("engine.listing_timeout", "20s")
	viper.SetDefault("engine.reads_per_second", 50)
	viper.SetDefault("engine.algo_version", "v2")
	viper.SetDefault("engine.snapshot_limit", 200)
	viper.SetDefault("engine.net_impact_nudge", true)

	// Scheduler
	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.cron", "0 6 * * *")
	viper.SetDefault("scheduler.timezone", "UTC")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "kdp-pulse")
}
