package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend identifies the store that backs the readings table
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string        `json:"-"`
	SQLitePath      string        `json:"sqlite_path"`
	MongoDB         string        `json:"mongo_db"`
	MongoCollection string        `json:"mongo_collection"`
	MaxConns        int           `json:"max_conns"`
	MinConns        int           `json:"min_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	QoS         int           `json:"qos"`
	QueueSize   int           `json:"queue_size"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// DashboardConfig holds configuration for the presentation client
type DashboardConfig struct {
	APIBaseURL string        `json:"api_base_url"`
	PageSize   int           `json:"page_size"`
	Timeout    time.Duration `json:"timeout"`
	Logging    LoggingConfig `json:"logging"`
}

// Load loads the API service configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8000"),
			ReadTimeout:     getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: loadDatabaseConfig(),
		MQTT:     loadMQTTConfig("tinaco-api"),
		Logging:  loadLoggingConfig(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadIngestorConfig loads configuration for the MQTT ingestor. It shares the
// database section with the API because it writes through the same store.
func LoadIngestorConfig() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("INGESTOR_PORT", "8003"),
			ReadTimeout:     getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: loadDatabaseConfig(),
		MQTT:     loadMQTTConfig("tinaco-ingestor"),
		Logging:  loadLoggingConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if config.MQTT.BrokerHost == "" {
		return nil, fmt.Errorf("BROKER_HOST is required")
	}
	if config.MQTT.Topic == "" {
		return nil, fmt.Errorf("MQTT_TOPIC is required")
	}

	return config, nil
}

// LoadDashboardConfig loads configuration for the presentation client
func LoadDashboardConfig() (*DashboardConfig, error) {
	_ = godotenv.Load()

	config := &DashboardConfig{
		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		PageSize:   getInt("DASHBOARD_PAGE_SIZE", 10),
		Timeout:    getDuration("DASHBOARD_TIMEOUT", 15*time.Second),
		Logging:    loadLoggingConfig(),
	}

	if config.PageSize < 1 {
		return nil, fmt.Errorf("DASHBOARD_PAGE_SIZE must be positive, got %d", config.PageSize)
	}

	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:      getEnv("SQLITE_PATH", "./data.db"),
		MongoDB:         getEnv("MONGO_DB", "tinaco"),
		MongoCollection: getEnv("MONGO_COLLECTION", "readings"),
		MaxConns:        getInt("DB_MAX_CONNS", 25),
		MinConns:        getInt("DB_MIN_CONNS", 5),
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnectTimeout:  getDuration("DB_CONNECT_TIMEOUT", 20*time.Second),
	}
}

func loadMQTTConfig(defaultClientID string) MQTTConfig {
	return MQTTConfig{
		BrokerHost:  getEnv("BROKER_HOST", ""),
		BrokerPort:  getInt("BROKER_PORT", 1883),
		BrokerUser:  getEnv("BROKER_USER", ""),
		BrokerPass:  getEnv("BROKER_PASS", ""),
		UseTLS:      getBool("BROKER_TLS", false),
		CACertPath:  getEnv("BROKER_CA_FILE", ""),
		Topic:       getEnv("MQTT_TOPIC", "tinaco/+/telemetry"),
		ClientID:    getEnv("MQTT_CLIENT_ID", defaultClientID),
		SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
		QoS:         getInt("MQTT_QOS", 1),
		QueueSize:   getInt("MQTT_QUEUE_SIZE", 1024),
		KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
		PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, _, err := c.Database.Backend(); err != nil {
		return err
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}
	if c.MQTT.QueueSize < 1 {
		return fmt.Errorf("MQTT_QUEUE_SIZE must be at least 1")
	}
	return nil
}

// Backend resolves DATABASE_URL into a backend and the DSN its driver expects.
// An empty URL selects the embedded SQLite file, which is for local development only.
func (d DatabaseConfig) Backend() (Backend, string, error) {
	raw := d.URL
	if raw == "" {
		return BackendSQLite, d.SQLitePath, nil
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		if strings.HasPrefix(raw, "file:") {
			return BackendSQLite, raw, nil
		}
		return "", "", fmt.Errorf("DATABASE_URL has no scheme: %q", raw)
	}

	// SQLAlchemy style URLs carry the driver after a plus sign (postgresql+psycopg2)
	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")

	switch base {
	case "sqlite":
		// sqlite:///./data.db -> ./data.db, sqlite:////abs/path.db -> /abs/path.db
		path := strings.TrimPrefix(rest, "/")
		if path == "" {
			return "", "", fmt.Errorf("DATABASE_URL sqlite path is empty")
		}
		return BackendSQLite, path, nil
	case "postgres", "postgresql":
		return BackendPostgres, "postgres://" + rest, nil
	case "mongodb":
		return BackendMongo, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme %q", scheme)
	}
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
