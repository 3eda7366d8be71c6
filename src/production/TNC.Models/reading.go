package tncmodels

import "time"

// Reading is one timestamped telemetry sample from a water tank device
type Reading struct {
	ID          string    `json:"id" bson:"_id"`
	DeviceID    string    `json:"device_id" bson:"device_id"`
	Ts          time.Time `json:"ts" bson:"ts"`
	LevelPct    *float64  `json:"level_pct" bson:"level_pct,omitempty"`
	FlowLpm     *float64  `json:"flow_lpm" bson:"flow_lpm,omitempty"`
	TdsPpm      *float64  `json:"tds_ppm" bson:"tds_ppm,omitempty"`
	WaterTempC  *float64  `json:"water_temp_c" bson:"water_temp_c,omitempty"`
	HumidityPct *float64  `json:"humidity_pct" bson:"humidity_pct,omitempty"`
	Pump        *string   `json:"pump" bson:"pump,omitempty"`
	Valve       *string   `json:"valve" bson:"valve,omitempty"`
	Alerts      []string  `json:"alerts" bson:"alerts"`
}

// ReadingInput is the ingest payload sent by a device. Every field except
// device_id is optional; bounds are enforced by the reading service.
type ReadingInput struct {
	DeviceID    string        `json:"device_id" validate:"required"`
	Ts          *FlexibleTime `json:"ts"`
	LevelPct    *float64      `json:"level_pct" validate:"omitempty,gte=0,lte=100"`
	FlowLpm     *float64      `json:"flow_lpm" validate:"omitempty,gte=0"`
	TdsPpm      *float64      `json:"tds_ppm" validate:"omitempty,gte=0"`
	WaterTempC  *float64      `json:"waterTempC"`
	HumidityPct *float64      `json:"humidity_pct"`
	Pump        *string       `json:"pump"`
	Valve       *string       `json:"valve"`
	Alerts      []string      `json:"alerts"`

	// WaterTempCAlt accepts the stored attribute name on input as well
	WaterTempCAlt *float64 `json:"water_temp_c"`
}

// WaterTemp returns the water temperature under either accepted input name
func (in ReadingInput) WaterTemp() *float64 {
	if in.WaterTempC != nil {
		return in.WaterTempC
	}
	return in.WaterTempCAlt
}

// Sort order for global listings
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DeviceReadingQuery selects readings of a single device
type DeviceReadingQuery struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// ReadingListQuery selects readings across devices with offset pagination
type ReadingListQuery struct {
	DeviceID string // empty means every device
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	Sort     SortOrder
}
