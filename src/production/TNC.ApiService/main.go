package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/controllers"
	container "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Container"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	log := ctr.GetLogger()
	log.Info("Starting API Service")

	// Initialize database
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

	config := ctr.GetConfig()

	// Initialize Gin router
	router := gin.New()
	router.Use(logger.GinMiddleware(log))
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	controllers.NewReadingController(readingService, log).RegisterRoutes(router)
	controllers.NewAnalyticsController(readingService).RegisterRoutes(router)
	controllers.NewHealthController(healthChecker, log).RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	log.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithError(err, "Server forced to shutdown")
	}
}
