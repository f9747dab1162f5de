// Package config loads pipeline configuration from file and
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/orderflow-systems/orderflow-pipeline/common/messaging"
)

type Config struct {
	NATS       NATSConfig       `mapstructure:"nats"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Consumer   ConsumerConfig   `mapstructure:"consumer"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx connection string.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type OpenSearchConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	Index         string `mapstructure:"index"`
}

type ConsumerConfig struct {
	Name             string        `mapstructure:"name"`
	ConsolidateEvery time.Duration `mapstructure:"consolidate_every"`
	BackoffUnit      time.Duration `mapstructure:"backoff_unit"`
}

type ConversionConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	DryRun   bool          `mapstructure:"dry_run"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "orderflow-pipeline")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.database", "orderflow")
	v.SetDefault("postgres.user", "orderflow")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index", "orderflow-events")
	v.SetDefault("consumer.name", messaging.QueueOrderWorkers)
	v.SetDefault("consumer.consolidate_every", "0s")
	v.SetDefault("consumer.backoff_unit", "1s")
	v.SetDefault("conversion.endpoint", "http://localhost:8080/conversions")
	v.SetDefault("conversion.timeout", "10s")
	v.SetDefault("conversion.dry_run", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/orderflow")
	}

	// Environment variables override
	v.SetEnvPrefix("ORDERFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
