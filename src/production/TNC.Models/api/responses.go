package api_models

import "time"

// IngestResponse is returned by POST /ingest
type IngestResponse struct {
	ReadingID string `json:"readingId"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	OK  bool      `json:"ok"`
	Now time.Time `json:"now"`
}

// ReadyResponse is returned by GET /health/ready
type ReadyResponse struct {
	Status  string `json:"status"`
	DB      bool   `json:"db"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
