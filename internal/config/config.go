// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/gocatalog/internal/database"
	"github.com/jonesrussell/gocatalog/internal/fetcher"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

// Default values applied when neither the config file nor the environment
// provides a setting.
const (
	DefaultServerAddress  = ":8090"
	DefaultServerTimeout  = 15 * time.Second
	DefaultRedisAddress   = "localhost:6379"
	DefaultMinioEndpoint  = "localhost:9000"
	DefaultMinioBucket    = "catalog-responses"
	DefaultCollectorName  = "gocatalog"
	DefaultScheduleSpec   = "0 */6 * * *"
	DefaultDatabasePort   = "5432"
	DefaultDatabaseSSL    = "disable"
	defaultConfigBasename = "config"
)

// Config is the root configuration for all commands.
type Config struct {
	App       AppConfig       `mapstructure:"app"       yaml:"app"`
	Logger    logger.Config   `mapstructure:"logger"    yaml:"logger"`
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
	Database  database.Config `mapstructure:"database"  yaml:"database"`
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Minio     MinioConfig     `mapstructure:"minio"     yaml:"minio"`
	Fetcher   fetcher.Config  `mapstructure:"fetcher"   yaml:"fetcher"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `mapstructure:"name"        yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug"       yaml:"debug"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Address      string        `mapstructure:"address"       yaml:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"  yaml:"idle_timeout"`
}

// RedisConfig configures the conditional-request cache backend.
type RedisConfig struct {
	Address  string `mapstructure:"address"  yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
}

// MinioConfig configures the raw response archive backend.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"    yaml:"use_ssl"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket"`
}

// CollectorConfig identifies this collector in artifact audit blocks.
type CollectorConfig struct {
	CollectedBy string `mapstructure:"collected_by" yaml:"collected_by"`
}

// SchedulerConfig configures periodic collection cycles.
type SchedulerConfig struct {
	// Spec is a standard five-field cron expression.
	Spec string `mapstructure:"spec" yaml:"spec"`
}

// Load reads configuration from the given YAML file path, applies defaults,
// and overlays environment variables. A missing config file is not an
// error; defaults plus the environment still produce a usable config.
func Load(path string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigBasename)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Logger.SetDefaults()
	cfg.Fetcher.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Minio.Endpoint == "" {
		return errors.New("minio.endpoint is required")
	}
	if c.Minio.Bucket == "" {
		return errors.New("minio.bucket is required")
	}
	if c.Scheduler.Spec == "" {
		return errors.New("scheduler.spec is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "gocatalog",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":        logger.DefaultLevel,
		"format":       logger.DefaultFormat,
		"development":  false,
		"output_paths": []string{"stdout"},
	})

	v.SetDefault("server", map[string]any{
		"address":       DefaultServerAddress,
		"read_timeout":  DefaultServerTimeout.String(),
		"write_timeout": DefaultServerTimeout.String(),
		"idle_timeout":  "60s",
	})

	v.SetDefault("database", map[string]any{
		"port":    DefaultDatabasePort,
		"sslmode": DefaultDatabaseSSL,
	})

	v.SetDefault("redis", map[string]any{
		"address": DefaultRedisAddress,
		"db":      0,
	})

	v.SetDefault("minio", map[string]any{
		"endpoint": DefaultMinioEndpoint,
		"use_ssl":  false,
		"bucket":   DefaultMinioBucket,
	})

	v.SetDefault("collector", map[string]any{
		"collected_by": DefaultCollectorName,
	})

	v.SetDefault("scheduler", map[string]any{
		"spec": DefaultScheduleSpec,
	})
}
