package implementation

import (
	"strconv"
	"strings"
	"time"
)

// Dialect captures the few places where Postgres and SQLite SQL differ
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTimeLayout is fixed width and always UTC so that text comparison of
// the ts column matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// rebind rewrites ? placeholders into $N for Postgres
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeArg encodes a timestamp as a query argument
func (d Dialect) timeArg(t time.Time) interface{} {
	if d == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

// dayExpr buckets the ts column to its UTC calendar day
func (d Dialect) dayExpr() string {
	if d == SQLite {
		return "substr(ts, 1, 10)"
	}
	return "DATE_TRUNC('day', ts AT TIME ZONE 'UTC')"
}

// schema returns the DDL statements creating the readings table and its indexes
func (d Dialect) schema() []string {
	if d == SQLite {
		return []string{
			`CREATE TABLE IF NOT EXISTS readings (
				id           TEXT PRIMARY KEY,
				device_id    TEXT NOT NULL,
				ts           TEXT NOT NULL,
				level_pct    REAL,
				flow_lpm     REAL,
				tds_ppm      REAL,
				water_temp_c REAL,
				humidity_pct REAL,
				pump         TEXT,
				valve        TEXT,
				alerts       TEXT NOT NULL DEFAULT '[]'
			)`,
			`CREATE INDEX IF NOT EXISTS idx_readings_device_id ON readings (device_id)`,
			`CREATE INDEX IF NOT EXISTS idx_readings_device_ts_desc ON readings (device_id, ts DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_readings_ts_desc ON readings (ts DESC)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id           TEXT PRIMARY KEY,
			device_id    TEXT NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			level_pct    DOUBLE PRECISION,
			flow_lpm     DOUBLE PRECISION,
			tds_ppm      DOUBLE PRECISION,
			water_temp_c DOUBLE PRECISION,
			humidity_pct DOUBLE PRECISION,
			pump         TEXT,
			valve        TEXT,
			alerts       JSONB NOT NULL DEFAULT '[]'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_id ON readings (device_id)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_device_ts_desc ON readings (device_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_ts_desc ON readings (ts DESC)`,
	}
}
