package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for durable client storage.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageS3       = "s3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Database DatabaseConfig
	S3       S3Config
	Stock    StockConfig
	Geo      GeoConfig
}

// ServerConfig holds the local HTTP surface configuration.
type ServerConfig struct {
	Host          string
	Port          int
	AllowedOrigin string // CORS origin of the storefront UI, "*" when empty
}

// APIConfig describes the remote storefront API.
type APIConfig struct {
	BaseURL        string
	StockPath      string
	RequestTimeout time.Duration
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration of the local surface.
// An empty APIKey disables the key check.
type AuthConfig struct {
	APIKey string
}

// StorageConfig selects the durable client storage backend.
type StorageConfig struct {
	Backend string
	Dir     string // file backend only
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// S3Config holds AWS S3 configuration for the s3 storage backend.
type S3Config struct {
	Bucket string
	Region string
	Prefix string // Path prefix within bucket (e.g., "freshcart/")
}

// StockConfig tunes the live stock subscription.
type StockConfig struct {
	DebounceWindow time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// GeoConfig configures geolocation lookups.
type GeoConfig struct {
	Timeout          time.Duration
	DefaultLatitude  float64
	DefaultLongitude float64
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:          getEnv("SERVER_HOST", "127.0.0.1"),
			Port:          getEnvAsInt("SERVER_PORT", 8090),
			AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", ""),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080/api"),
			StockPath:      getEnv("API_STOCK_PATH", "/stock/stream"),
			RequestTimeout: getEnvAsDuration("API_REQUEST_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StorageFile),
			Dir:     getEnv("STORAGE_DIR", "data/storage"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "freshcart"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 5),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 1),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		S3: S3Config{
			Bucket: getEnv("S3_BUCKET", ""),
			Region: getEnv("S3_REGION", "us-east-1"),
			Prefix: getEnv("S3_PREFIX", "freshcart/"),
		},
		Stock: StockConfig{
			DebounceWindow: getEnvAsDuration("STOCK_DEBOUNCE_WINDOW", 250*time.Millisecond),
			InitialBackoff: getEnvAsDuration("STOCK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     getEnvAsDuration("STOCK_MAX_BACKOFF", 30*time.Second),
		},
		Geo: GeoConfig{
			Timeout:          getEnvAsDuration("GEO_TIMEOUT", 8*time.Second),
			DefaultLatitude:  getEnvAsFloat("GEO_DEFAULT_LATITUDE", 0),
			DefaultLongitude: getEnvAsFloat("GEO_DEFAULT_LONGITUDE", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %s", c.API.BaseURL)
	}

	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("API request timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage directory is required for the file backend")
		}
	case StoragePostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when the s3 storage backend is selected")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when the s3 storage backend is selected")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be file, postgres, or s3)", c.Storage.Backend)
	}

	if c.Stock.DebounceWindow < 0 {
		return fmt.Errorf("stock debounce window cannot be negative")
	}

	if c.Stock.InitialBackoff <= 0 {
		return fmt.Errorf("stock initial backoff must be positive")
	}

	if c.Stock.MaxBackoff < c.Stock.InitialBackoff {
		return fmt.Errorf("stock max backoff cannot be less than initial backoff")
	}

	if c.Geo.Timeout <= 0 {
		return fmt.Errorf("geolocation timeout must be positive")
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StockURL returns the absolute URL of the stock push-event endpoint.
func (c *APIConfig) StockURL() string {
	return c.BaseURL + c.StockPath
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("250ms", "30s").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
