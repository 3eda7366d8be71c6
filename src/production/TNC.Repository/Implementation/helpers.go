package implementation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

// ensureAlertsNotNull ensures alerts is never nil to prevent null JSON issues
func ensureAlertsNotNull(alerts []string) []string {
	if alerts == nil {
		return []string{}
	}
	return alerts
}

func encodeAlerts(alerts []string) (string, error) {
	b, err := json.Marshal(ensureAlertsNotNull(alerts))
	if err != nil {
		return "", fmt.Errorf("failed to marshal alerts: %w", err)
	}
	return string(b), nil
}

func decodeAlerts(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	var alerts []string
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	return ensureAlertsNotNull(alerts), nil
}

// dbTime scans timestamps from either driver: lib/pq hands back time.Time,
// SQLite TEXT columns come back as strings or bytes.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		return fmt.Errorf("timestamp is NULL")
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	if parsed, err := time.Parse(sqliteTimeLayout, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := tncmodels.ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func floatArg(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func stringArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
