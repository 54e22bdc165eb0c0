// Package config loads the service configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flightops/flightops/pkg/cache"
)

// APIConfig defines the HTTP server configuration
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig defines the persistent store connection
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime"`
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// HealthConfig defines health aggregation tunables
type HealthConfig struct {
	ProbeTimeout          time.Duration `mapstructure:"probe_timeout"`
	ReportTTL             time.Duration `mapstructure:"report_ttl"`
	StoreLatencyThreshold time.Duration `mapstructure:"store_latency_threshold"`
	DiskPath              string        `mapstructure:"disk_path"`
}

// MetricsConfig defines the metrics sink
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Config holds the complete service configuration
type Config struct {
	Environment string              `mapstructure:"environment"`
	API         APIConfig           `mapstructure:"api"`
	Database    DatabaseConfig      `mapstructure:"database"`
	Cache       cache.GatewayConfig `mapstructure:"cache"`
	Health      HealthConfig        `mapstructure:"health"`
	Metrics     MetricsConfig       `mapstructure:"metrics"`
}

// Load reads configuration from the given file (optional) with FLIGHTOPS_*
// environment overrides and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLIGHTOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.listen_address", ":8080")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 15*time.Second)
	v.SetDefault("api.idle_timeout", 60*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flightops")
	v.SetDefault("database.name", "flightops")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", 5*time.Minute)

	v.SetDefault("cache.memory_max_items", cache.DefaultMemoryMaxItems)
	v.SetDefault("cache.memory_ttl", cache.DefaultMemoryTTL)
	v.SetDefault("cache.default_ttl", 10*time.Minute)
	v.SetDefault("cache.recovery_enabled", true)
	v.SetDefault("cache.recovery_max_interval", 2*time.Minute)
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "flightops:cache:")
	v.SetDefault("cache.redis.connect_timeout", cache.DefaultRedisConnectTimeout)
	v.SetDefault("cache.redis.operation_timeout", cache.DefaultRedisOperationTimeout)

	v.SetDefault("health.probe_timeout", 5*time.Second)
	v.SetDefault("health.report_ttl", 30*time.Second)
	v.SetDefault("health.store_latency_threshold", 250*time.Millisecond)
	v.SetDefault("health.disk_path", "/")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "flightops")
}
