package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/implementation/readings"
)

// AnalyticsController serves the per-day rollups
type AnalyticsController struct {
	service *readings.ReadingService
}

// NewAnalyticsController creates a new analytics controller
func NewAnalyticsController(service *readings.ReadingService) *AnalyticsController {
	return &AnalyticsController{service: service}
}

// RegisterRoutes registers the analytics routes with Gin
func (c *AnalyticsController) RegisterRoutes(router *gin.Engine) {
	analytics := router.Group("/analytics")
	{
		analytics.GET("/daily", c.GetDaily)
	}
}

func (c *AnalyticsController) GetDaily(ctx *gin.Context) {
	days, err := c.service.DailyAggregate(ctx.Request.Context(), ctx.Query("device_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, days)
}
