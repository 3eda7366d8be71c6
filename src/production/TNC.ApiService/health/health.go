package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"
)

// Pinger is anything that can report whether its store answers
type Pinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	store Pinger
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store Pinger) *HealthChecker {
	return &HealthChecker{store: store}
}

// Backend names the store being checked
func (h *HealthChecker) Backend() string {
	if h.store == nil {
		return "none"
	}
	return h.store.Backend()
}

// CheckDatabaseHealth pings the backing store
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is nil")
	}
	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) map[string]interface{} {
	backend := h.Backend()

	check := map[string]interface{}{"status": "ok"}
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    "ok",
		"checks":    map[string]interface{}{backend: check},
	}

	if err := h.CheckDatabaseHealth(ctx); err != nil {
		check["status"] = "error"
		check["error"] = err.Error()
		status["status"] = "degraded"
	}

	return status
}

// ConnectPostgresWithTimeout opens a lib/pq pool and pings it within the configured timeout
func ConnectPostgresWithTimeout(ctx context.Context, cfg *config.DatabaseConfig, dsn string) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// OpenSQLite opens the embedded SQLite file, creating its directory when needed.
// SQLite allows a single writer, so the pool is capped at one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("unable to create SQLite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to configure SQLite: %w", err)
	}

	return db, nil
}

// ConnectMongoWithTimeout connects to MongoDB and pings the primary within the configured timeout
func ConnectMongoWithTimeout(ctx context.Context, cfg *config.DatabaseConfig, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetServerSelectionTimeout(cfg.ConnectTimeout)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetMaxPoolSize(uint64(cfg.MaxConns))
	clientOptions.SetMinPoolSize(uint64(cfg.MinConns))

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	return client, nil
}
