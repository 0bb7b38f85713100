// Package config loads service configuration from the environment and
// watches configuration files for changes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Row store
	StoreDriver         string
	SQLitePath          string
	DynamoDBTablePrefix string
	AWSRegion           string

	// Host catalog and views
	SchemaFile string
	ViewsFile  string
	WatchViews bool

	// Client assets
	AssetDir     string
	AssetVersion string

	// Logging
	LogLevel string

	// Authentication
	PublicRoleID int
	JWTSecret    string
	JWTIssuer    string
	EnableAuth   bool

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	OTLPEndpoint  string
	EnableCORS    bool
	CORSOrigins   []string

	// CloudWatch publishing, for deployments nothing scrapes
	EnableCloudWatch    bool
	CloudWatchNamespace string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		StoreDriver:         getEnv("STORE_DRIVER", StoreSQLite),
		SQLitePath:          getEnv("SQLITE_PATH", "data/mindmap.db"),
		DynamoDBTablePrefix: getEnv("DYNAMODB_TABLE_PREFIX", "mindmap_"),
		AWSRegion:           getEnv("AWS_REGION", "us-west-2"),

		SchemaFile: getEnv("SCHEMA_FILE", "config/schema.yaml"),
		ViewsFile:  getEnv("VIEWS_FILE", "config/views.yaml"),
		WatchViews: getEnvBool("WATCH_VIEWS", true),

		AssetDir:     getEnv("ASSET_DIR", "public"),
		AssetVersion: getEnv("ASSET_VERSION", "0.3.0"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		PublicRoleID: getEnvInt("PUBLIC_ROLE_ID", 10),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "mindmap-backend"),
		EnableAuth:   getEnvBool("ENABLE_AUTH", true),

		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),

		EnableCloudWatch:    getEnvBool("ENABLE_CLOUDWATCH", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", ""),
	}
	if cfg.CloudWatchNamespace == "" {
		cfg.CloudWatchNamespace = "MindMap/" + cfg.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreDynamoDB:
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreSQLite, StoreDynamoDB, c.StoreDriver)
	}
	if c.SchemaFile == "" || c.ViewsFile == "" {
		return fmt.Errorf("SCHEMA_FILE and VIEWS_FILE are required")
	}
	if c.PublicRoleID <= 0 {
		return fmt.Errorf("PUBLIC_ROLE_ID must be positive")
	}
	if c.Environment == "production" && c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool {
	return c.EnableAuth && c.JWTSecret != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList gets a comma separated environment variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
