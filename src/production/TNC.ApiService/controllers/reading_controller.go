package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/implementation/readings"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
	api_models "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models/api"
)

// ReadingController handles ingest and reading list requests
type ReadingController struct {
	service *readings.ReadingService
	logger  *logger.Logger
}

// NewReadingController creates a new reading controller
func NewReadingController(service *readings.ReadingService, logger *logger.Logger) *ReadingController {
	return &ReadingController{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the reading routes with Gin
func (c *ReadingController) RegisterRoutes(router *gin.Engine) {
	router.POST("/ingest", c.Ingest)

	readingsGroup := router.Group("/readings")
	{
		readingsGroup.GET("", c.GetDeviceReadings)
		readingsGroup.GET("/all", c.GetAllReadings)
	}
}

func (c *ReadingController) Ingest(ctx *gin.Context) {
	var input tncmodels.ReadingInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		c.logger.WithRequestID(ctx.GetString("request_id")).Logger.Warn().Err(err).Msg("Rejected ingest body")
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	id, err := c.service.Create(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, api_models.IngestResponse{ReadingID: id})
}

func (c *ReadingController) GetDeviceReadings(ctx *gin.Context) {
	params := readings.DeviceListParams{
		DeviceID: ctx.Query("device_id"),
	}

	var err error
	if params.Limit, err = queryInt(ctx, "limit"); err != nil {
		badRequest(ctx, err)
		return
	}
	if params.From, err = queryTime(ctx, "from"); err != nil {
		badRequest(ctx, err)
		return
	}
	if params.To, err = queryTime(ctx, "to"); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := c.service.ListByDevice(ctx.Request.Context(), params)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (c *ReadingController) GetAllReadings(ctx *gin.Context) {
	params := readings.ListParams{
		DeviceID: ctx.Query("device_id"),
		Sort:     ctx.Query("sort"),
	}

	var err error
	if params.Limit, err = queryInt(ctx, "limit"); err != nil {
		badRequest(ctx, err)
		return
	}
	if params.Offset, err = queryInt(ctx, "offset"); err != nil {
		badRequest(ctx, err)
		return
	}
	if params.From, err = queryTime(ctx, "from"); err != nil {
		badRequest(ctx, err)
		return
	}
	if params.To, err = queryTime(ctx, "to"); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := c.service.ListAll(ctx.Request.Context(), params)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
