package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/controllers"
	container "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Container"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.IngestorService/ingestor"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewIngestorContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	log := ctr.GetLogger()
	log.Info("Starting MQTT Ingestor Service")

	config := ctr.GetConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		log.FatalWithError(err, "Failed to initialize database")
	}
	healthChecker, err := ctr.GetHealthChecker(ctx)
	if err != nil {
		log.FatalWithError(err, "Failed to get health checker")
	}
	readingService, err := ctr.GetReadingService(ctx)
	if err != nil {
		log.FatalWithError(err, "Failed to get reading service")
	}

	ing := ingestor.New(config.MQTT, config.GetMQTTBrokerURL(), readingService, log)
	if err := ing.Start(ctx); err != nil {
		log.FatalWithError(err, "Failed to start MQTT ingestor")
	}
	// runs before the container closes the store, so queued readings are written first
	ctr.AddCleanupFunc(func() error {
		ing.Stop()
		return nil
	})

	// Health endpoints share the API handlers and add the broker state
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logger.GinMiddleware(log))
	router.Use(gin.Recovery())
	controllers.NewHealthController(healthChecker, log).RegisterRoutes(router)
	router.GET("/health/mqtt", func(c *gin.Context) {
		status := http.StatusOK
		if !ing.IsConnected() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"connected": ing.IsConnected(),
			"stats":     ing.Stats(),
			"store":     ctr.HealthCheck(c.Request.Context()),
		})
	})

	srv := &http.Server{
		Addr:         ":" + config.Server.Port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		log.Info("Health server starting on port " + config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FatalWithError(err, "Failed to start health server")
		}
	}()

	log.Info("MQTT ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithError(err, "Health server forced to shutdown")
	}
}
