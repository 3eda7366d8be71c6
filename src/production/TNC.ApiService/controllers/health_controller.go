package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/health"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	api_models "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models/api"
)

const readinessTimeout = 2 * time.Second

// HealthController handles liveness and readiness requests
type HealthController struct {
	checker *health.HealthChecker
	logger  *logger.Logger
	now     func() time.Time
}

// NewHealthController creates a new health controller
func NewHealthController(checker *health.HealthChecker, logger *logger.Logger) *HealthController {
	return &HealthController{
		checker: checker,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the health routes with Gin
func (c *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Health)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, api_models.HealthResponse{
		OK:  true,
		Now: c.now().UTC(),
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), readinessTimeout)
	defer cancel()

	backend := c.checker.Backend()
	if err := c.checker.CheckDatabaseHealth(pingCtx); err != nil {
		c.logger.WithField("backend", backend).WithError(err).Error("Readiness check failed")
		ctx.JSON(http.StatusServiceUnavailable, api_models.ReadyResponse{
			Status:  "not_ready",
			DB:      false,
			Backend: backend,
			Error:   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, api_models.ReadyResponse{
		Status:  "ready",
		DB:      true,
		Backend: backend,
	})
}
