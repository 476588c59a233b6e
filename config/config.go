package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// Config represents the complete application configuration
type Config struct {
	Environment string `yaml:"environment"`

	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   logging.Config  `yaml:"logging"`
	Metrics   metrics.Config  `yaml:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig represents the counter store configuration
type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	Database     int           `yaml:"database"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig represents identity extraction configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	AdminRole string `yaml:"admin_role"`
}

// RateLimitConfig represents the admission control settings
type RateLimitConfig struct {
	// Provisioning defaults written to the settings store on first use.
	UnauthenticatedCount  int64         `yaml:"unauthenticated_count"`
	UnauthenticatedWindow time.Duration `yaml:"unauthenticated_window"`
	AuthenticatedCount    int64         `yaml:"authenticated_count"`
	AuthenticatedWindow   time.Duration `yaml:"authenticated_window"`

	// SettingsTTL bounds how long resolved limit configs are cached
	// in-process before the settings store is consulted again.
	SettingsTTL time.Duration `yaml:"settings_ttl"`

	// MemoryFallback enables the in-memory counter when Redis is down.
	MemoryFallback bool `yaml:"memory_fallback"`
}

// GeoIPConfig represents the geolocation resolver configuration
type GeoIPConfig struct {
	Enabled bool `yaml:"enabled"`

	ProviderAURL    string        `yaml:"provider_a_url"`
	ProviderBURL    string        `yaml:"provider_b_url"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	// ProviderRatePerMinute paces outbound provider calls (free tiers
	// enforce request budgets).
	ProviderRatePerMinute int `yaml:"provider_rate_per_minute"`

	MemoryCacheTTL  time.Duration `yaml:"memory_cache_ttl"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`

	// DatasetPath points at the CSV of IPv4 ranges used as the offline
	// fallback tier. Empty disables the tier.
	DatasetPath string `yaml:"dataset_path"`
}

// AuditConfig represents the audit trail configuration
type AuditConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	RetentionDays int           `yaml:"retention_days"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Load reads configuration from an optional YAML file, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// defaultConfig returns the configuration used when no file or environment
// overrides are present.
func defaultConfig() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "admission",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         6379,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Auth: AuthConfig{
			AdminRole: "admin",
		},
		RateLimit: RateLimitConfig{
			UnauthenticatedCount:  100,
			UnauthenticatedWindow: 60 * time.Second,
			AuthenticatedCount:    500,
			AuthenticatedWindow:   60 * time.Second,
			SettingsTTL:           30 * time.Second,
			MemoryFallback:        true,
		},
		GeoIP: GeoIPConfig{
			Enabled:               true,
			ProviderAURL:          "http://ip-api.com/json",
			ProviderBURL:          "https://ipwho.is",
			ProviderTimeout:       3 * time.Second,
			ProviderRatePerMinute: 40,
			MemoryCacheTTL:        time.Hour,
			FreshnessWindow:       7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			QueueSize:     1024,
			WriteTimeout:  5 * time.Second,
			RetentionDays: 90,
			SweepInterval: time.Hour,
		},
		Logging: logging.Config{
			Level:       "info",
			Format:      "json",
			Output:      "stdout",
			ServiceName: "wp-api-rate-limiter",
		},
		Metrics: metrics.Config{
			Enabled:   true,
			Namespace: "admission",
			Path:      "/metrics",
		},
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *Config) {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		config.Database.Database = dbName
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		config.Database.Username = dbUser
	}
	if dbPass := os.Getenv("DB_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		config.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			config.Redis.Port = p
		}
	}
	if redisPass := os.Getenv("REDIS_PASSWORD"); redisPass != "" {
		config.Redis.Password = redisPass
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		config.Auth.JWTSecret = jwtSecret
	}
	if dataset := os.Getenv("GEOIP_DATASET_PATH"); dataset != "" {
		config.GeoIP.DatasetPath = dataset
	}
}

// validateConfig validates the configuration for required fields and consistency
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if config.RateLimit.SettingsTTL <= 0 {
		return fmt.Errorf("rate limit settings TTL must be positive")
	}
	if config.GeoIP.Enabled {
		if config.GeoIP.ProviderTimeout <= 0 {
			return fmt.Errorf("geoip provider timeout must be positive")
		}
		if config.GeoIP.FreshnessWindow <= 0 {
			return fmt.Errorf("geoip freshness window must be positive")
		}
	}
	if config.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit queue size must be positive")
	}
	return nil
}

// RedisAddr returns the host:port address of the counter store.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}
