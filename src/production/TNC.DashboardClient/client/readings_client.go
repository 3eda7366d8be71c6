package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	config "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Config"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

// ReadingsClient fetches readings from the API service. Every failure degrades
// to an empty result and a warning; nothing is retried.
type ReadingsClient struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

// NewReadingsClient creates a client for the API at cfg.APIBaseURL
func NewReadingsClient(cfg *config.DashboardConfig, log *logger.Logger) *ReadingsClient {
	httpClient := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &ReadingsClient{
		httpClient: httpClient,
		logger:     log.WithComponent("readings_client"),
	}
}

// FetchAll returns the unfiltered reading list
func (c *ReadingsClient) FetchAll(ctx context.Context) []tncmodels.Reading {
	readings := make([]tncmodels.Reading, 0)
	if err := c.get(ctx, "/readings/all", nil, &readings); err != nil {
		c.logger.Logger.Warn().Err(err).Msg("Failed to fetch readings, rendering empty set")
		return []tncmodels.Reading{}
	}
	return readings
}

// FetchDaily returns the daily rollup of one device for charting
func (c *ReadingsClient) FetchDaily(ctx context.Context, deviceID string) []tncmodels.DailyAggregate {
	days := make([]tncmodels.DailyAggregate, 0)
	if err := c.get(ctx, "/analytics/daily", map[string]string{"device_id": deviceID}, &days); err != nil {
		c.logger.Logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to fetch daily aggregates, rendering empty set")
		return []tncmodels.DailyAggregate{}
	}
	return days
}

func (c *ReadingsClient) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("request %s returned status %d", path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
