package tncmodels

import "time"

// DailyAggregate summarises one calendar day of a device's readings.
// ApproxLiters treats every flow sample as one minute of flow.
type DailyAggregate struct {
	Day            time.Time `json:"day"`
	AvgLevel       *float64  `json:"avg_level"`
	ApproxLiters   float64   `json:"approx_liters"`
	AvgTds         *float64  `json:"avg_tds"`
	AvgTempC       *float64  `json:"avg_temp_c"`
	AvgHumidityPct *float64  `json:"avg_humidity_pct"`
	Samples        int64     `json:"samples"`
}

// MaxDailyAggregateDays caps how many days the daily rollup returns
const MaxDailyAggregateDays = 60

// ApproxLitersDivisor turns the daily sum of flow_lpm samples into approx_liters
const ApproxLitersDivisor = 60.0
