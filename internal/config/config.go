// Package config loads the proxy's settings from the environment. A .env
// file in the working directory is read first when present; variables already
// set in the process environment take precedence over it.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultCWABaseURL is the CWA open data API root.
	DefaultCWABaseURL = "https://opendata.cwa.gov.tw/api"
	DefaultCacheTTL   = 10 * time.Minute
)

// Config holds all configuration settings for the proxy.
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	External      ExternalConfig
	Cache         CacheConfig
	RateLimit     RateLimitConfig
}

// ServerConfig contains HTTP server settings and timeouts.
// These settings control how the service handles incoming requests.
type ServerConfig struct {
	Port            string
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// RedisConfig contains settings for the shared rate limit store. Forecasts
// are never written to Redis.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig contains PostgreSQL settings for the request audit log.
type DatabaseConfig struct {
	Enabled               bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	// BreakerFailures consecutive failed writes open the audit breaker for
	// BreakerTimeout.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// ObservabilityConfig contains settings for distributed tracing and metrics.
type ObservabilityConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
}

// ExternalConfig contains settings for the CWA forecast API.
type ExternalConfig struct {
	CWAAPIKey  string
	CWABaseURL string
	// HTTPTimeout of zero leaves the transport default in place.
	HTTPTimeout time.Duration
}

// HasCWACredential reports whether an API key was configured.
func (e ExternalConfig) HasCWACredential() bool {
	return e.CWAAPIKey != ""
}

// CacheConfig contains forecast cache settings.
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig contains rate limiting settings. RPS is the number of
// requests allowed per Window for one client IP.
type RateLimitConfig struct {
	Enabled bool
	RPS     int
	Window  time.Duration
	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// Load reads configuration from environment variables and returns a Config instance.
//
// Returns:
//   - *Config: Configuration with values from environment or defaults
func Load() *Config {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ShutdownTimeout: 30 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:               getEnvAsBool("DATABASE_ENABLED", false),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnvAsInt("DB_PORT", 5432),
			User:                  getEnv("DB_USER", "weather"),
			Password:              getEnv("DB_PASSWORD", ""),
			Database:              getEnv("DB_NAME", "cwa_weather_proxy"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        25,
			MaxIdleConnections:    5,
			ConnectionMaxLifetime: 5 * time.Minute,
			BreakerFailures:       getEnvAsInt("DB_BREAKER_FAILURES", 3),
			BreakerTimeout:        getEnvAsDuration("DB_BREAKER_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			Enabled:        getEnvAsBool("TELEMETRY_ENABLED", true),
			ServiceName:    "cwa-weather-proxy",
			ServiceVersion: getEnv("VERSION", "1.0.0"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRate:     0.1,
		},
		External: ExternalConfig{
			CWAAPIKey:   getEnv("CWA_API_KEY", ""),
			CWABaseURL:  getEnv("CWA_BASE_URL", DefaultCWABaseURL),
			HTTPTimeout: getEnvAsDuration("CWA_HTTP_TIMEOUT", 0),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", DefaultCacheTTL),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RPS:               getEnvAsInt("RATE_LIMIT_RPS", 100),
			Window:            time.Minute,
			TrustProxyHeaders: getEnvAsBool("TRUST_PROXY_HEADERS", false),
		},
	}
}

// DSN returns the lib/pq connection string for the audit database.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Database +
		" sslmode=" + d.SSLMode
}

// getEnv retrieves an environment variable value with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set
//
// Returns:
//   - string: Environment value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - int: Parsed integer value or default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback default.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to use if variable is not set or invalid
//
// Returns:
//   - bool: Parsed boolean value or default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	return defaultValue
}

// getEnvAsDuration parses a Go duration string such as "10m" or "30s".
// Invalid or non-positive values fall back to the default.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}

	return defaultValue
}
