package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/health"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/implementation/readings"
	config "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Config"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	implementation "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	// Store handles, at most one of db and mongoClient is set
	db          *sql.DB
	mongoClient *mongo.Client

	readingRepo    interfaces.ReadingRepository
	readingService *readings.ReadingService
	healthChecker  *health.HealthChecker

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions
	cleanupFuncs []func() error
}

// NewApiContainer creates a new container for the API service
func NewApiContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load API configuration: %w", err)
	}
	return NewContainer(cfg, "api"), nil
}

// NewIngestorContainer creates a new container for the MQTT ingestor service
func NewIngestorContainer() (*Container, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}
	return NewContainer(cfg, "ingestor"), nil
}

// NewContainer creates a container around an already loaded configuration
func NewContainer(cfg *config.Config, service string) *Container {
	return &Container{
		config: cfg,
		logger: logger.NewLogger(&cfg.Logging).WithService(service),
	}
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetReadingRepository connects to the configured store on first use and
// returns the repository bound to it
func (c *Container) GetReadingRepository(ctx context.Context) (interfaces.ReadingRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readingRepo != nil {
		return c.readingRepo, nil
	}

	backend, dsn, err := c.config.Database.Backend()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch backend {
	case config.BackendPostgres:
		db, err := health.ConnectPostgresWithTimeout(ctx, &c.config.Database, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := implementation.NewPostgresReadingRepository(db)
		if err := repo.CreateTables(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		c.db = db
		c.readingRepo = repo

	case config.BackendSQLite:
		c.logger.WithField("path", dsn).Warn("DATABASE_URL not set to a production store, using embedded SQLite (development only)")
		db, err := health.OpenSQLite(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		repo := implementation.NewSQLiteReadingRepository(db)
		if err := repo.CreateTables(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		c.db = db
		c.readingRepo = repo

	case config.BackendMongo:
		client, err := health.ConnectMongoWithTimeout(ctx, &c.config.Database, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		coll := client.Database(c.config.Database.MongoDB).Collection(c.config.Database.MongoCollection)
		repo := implementation.NewMongoReadingRepository(coll)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		c.mongoClient = client
		c.readingRepo = repo

	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}

	c.logger.WithField("backend", string(backend)).Info("Database initialized successfully")
	return c.readingRepo, nil
}

// InitializeDatabase connects to the store and creates the schema
func (c *Container) InitializeDatabase(ctx context.Context) error {
	_, err := c.GetReadingRepository(ctx)
	return err
}

// GetReadingService returns the reading service bound to the store
func (c *Container) GetReadingService(ctx context.Context) (*readings.ReadingService, error) {
	repo, err := c.GetReadingRepository(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readingService == nil {
		c.readingService = readings.NewReadingService(repo, c.logger)
	}
	return c.readingService, nil
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker(ctx context.Context) (*health.HealthChecker, error) {
	repo, err := c.GetReadingRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		c.healthChecker = health.NewHealthChecker(repo)
	}
	return c.healthChecker, nil
}

// HealthCheck performs a comprehensive health check
func (c *Container) HealthCheck(ctx context.Context) map[string]interface{} {
	healthChecker, err := c.GetHealthChecker(ctx)
	if err != nil {
		return map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	return healthChecker.GetHealthStatus(ctx)
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	defer c.mu.Unlock()

	// Execute cleanup functions in reverse order
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}
	c.cleanupFuncs = nil

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.ErrorWithError(err, "Error closing database connection")
		}
		c.db = nil
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			c.logger.ErrorWithError(err, "Error disconnecting from MongoDB")
		}
		c.mongoClient = nil
	}
	c.readingRepo = nil
	c.readingService = nil
	c.healthChecker = nil

	c.logger.Info("Container shutdown complete")
	return nil
}
