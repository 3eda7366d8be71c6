package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

const readingColumns = `id, device_id, ts, level_pct, flow_lpm, tds_ppm, water_temp_c, humidity_pct, pump, valve, alerts`

// SQLReadingRepository stores readings in a single relational table.
// The same queries run on Postgres and on the embedded SQLite fallback.
type SQLReadingRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLReadingRepository(db *sql.DB, dialect Dialect) *SQLReadingRepository {
	return &SQLReadingRepository{db: db, dialect: dialect}
}

// NewPostgresReadingRepository returns a repository speaking Postgres SQL
func NewPostgresReadingRepository(db *sql.DB) *SQLReadingRepository {
	return NewSQLReadingRepository(db, Postgres)
}

// NewSQLiteReadingRepository returns a repository speaking SQLite SQL
func NewSQLiteReadingRepository(db *sql.DB) *SQLReadingRepository {
	return NewSQLReadingRepository(db, SQLite)
}

func (r *SQLReadingRepository) Backend() string {
	return string(r.dialect)
}

// CreateTables creates the readings table and its indexes if they don't exist
func (r *SQLReadingRepository) CreateTables(ctx context.Context) error {
	for _, stmt := range r.dialect.schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

func (r *SQLReadingRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return r.db.PingContext(ctx)
}

func (r *SQLReadingRepository) CreateReading(ctx context.Context, reading tncmodels.Reading) error {
	query := r.dialect.rebind(`
		INSERT INTO readings (` + readingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	alertsJSON, err := encodeAlerts(reading.Alerts)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		reading.ID,
		reading.DeviceID,
		r.dialect.timeArg(reading.Ts),
		floatArg(reading.LevelPct),
		floatArg(reading.FlowLpm),
		floatArg(reading.TdsPpm),
		floatArg(reading.WaterTempC),
		floatArg(reading.HumidityPct),
		stringArg(reading.Pump),
		stringArg(reading.Valve),
		alertsJSON,
	)
	return err
}

func (r *SQLReadingRepository) ListByDevice(ctx context.Context, q tncmodels.DeviceReadingQuery) ([]tncmodels.Reading, error) {
	where, args := r.filters(q.DeviceID, q.From, q.To)
	args = append(args, q.Limit)

	query := r.dialect.rebind(`
		SELECT ` + readingColumns + `
		FROM readings` + where + `
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

func (r *SQLReadingRepository) ListAll(ctx context.Context, q tncmodels.ReadingListQuery) ([]tncmodels.Reading, error) {
	where, args := r.filters(q.DeviceID, q.From, q.To)
	args = append(args, q.Limit, q.Offset)

	direction := "DESC"
	if q.Sort == tncmodels.SortAsc {
		direction = "ASC"
	}

	query := r.dialect.rebind(`
		SELECT ` + readingColumns + `
		FROM readings` + where + `
		ORDER BY ts ` + direction + `, id ` + direction + `
		LIMIT ? OFFSET ?
	`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanReadings(rows)
}

func (r *SQLReadingRepository) DailyAggregate(ctx context.Context, deviceID string, maxDays int) ([]tncmodels.DailyAggregate, error) {
	query := r.dialect.rebind(fmt.Sprintf(`
		SELECT
			%s AS day,
			AVG(level_pct) AS avg_level,
			SUM(COALESCE(flow_lpm, 0)) / %.1f AS approx_liters,
			AVG(tds_ppm) AS avg_tds,
			AVG(water_temp_c) AS avg_temp_c,
			AVG(humidity_pct) AS avg_humidity_pct,
			COUNT(*) AS samples
		FROM readings
		WHERE device_id = ?
		GROUP BY 1
		ORDER BY 1 DESC
		LIMIT ?
	`, r.dialect.dayExpr(), tncmodels.ApproxLitersDivisor))

	rows, err := r.db.QueryContext(ctx, query, deviceID, maxDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make([]tncmodels.DailyAggregate, 0)
	for rows.Next() {
		var (
			day                                 dbTime
			avgLevel, avgTds, avgTemp, avgHumid sql.NullFloat64
			agg                                 tncmodels.DailyAggregate
		)
		if err := rows.Scan(&day, &avgLevel, &agg.ApproxLiters, &avgTds, &avgTemp, &avgHumid, &agg.Samples); err != nil {
			return nil, err
		}
		agg.Day = day.Time.UTC()
		agg.AvgLevel = floatPtr(avgLevel)
		agg.AvgTds = floatPtr(avgTds)
		agg.AvgTempC = floatPtr(avgTemp)
		agg.AvgHumidityPct = floatPtr(avgHumid)
		days = append(days, agg)
	}

	return days, rows.Err()
}

// filters builds the WHERE clause shared by the list queries. Bounds are inclusive.
func (r *SQLReadingRepository) filters(deviceID string, from, to *time.Time) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if deviceID != "" {
		clauses = append(clauses, "device_id = ?")
		args = append(args, deviceID)
	}
	if from != nil {
		clauses = append(clauses, "ts >= ?")
		args = append(args, r.dialect.timeArg(*from))
	}
	if to != nil {
		clauses = append(clauses, "ts <= ?")
		args = append(args, r.dialect.timeArg(*to))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "\n\t\tWHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLReadingRepository) scanReadings(rows *sql.Rows) ([]tncmodels.Reading, error) {
	readings := make([]tncmodels.Reading, 0)

	for rows.Next() {
		var (
			reading                               tncmodels.Reading
			ts                                    dbTime
			level, flow, tds, waterTemp, humidity sql.NullFloat64
			pump, valve                           sql.NullString
			alertsJSON                            []byte
		)

		if err := rows.Scan(&reading.ID, &reading.DeviceID, &ts, &level, &flow, &tds, &waterTemp, &humidity, &pump, &valve, &alertsJSON); err != nil {
			return nil, err
		}

		alerts, err := decodeAlerts(alertsJSON)
		if err != nil {
			return nil, err
		}

		reading.Ts = ts.Time
		reading.LevelPct = floatPtr(level)
		reading.FlowLpm = floatPtr(flow)
		reading.TdsPpm = floatPtr(tds)
		reading.WaterTempC = floatPtr(waterTemp)
		reading.HumidityPct = floatPtr(humidity)
		reading.Pump = stringPtr(pump)
		reading.Valve = stringPtr(valve)
		reading.Alerts = alerts

		readings = append(readings, reading)
	}

	return readings, rows.Err()
}
