package implementation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

var readingColumnNames = []string{"id", "device_id", "ts", "level_pct", "flow_lpm", "tds_ppm", "water_temp_c", "humidity_pct", "pump", "valve", "alerts"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SQLReadingRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresReadingRepository(db)

	return db, mock, repo
}

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2 LIMIT $3", Postgres.rebind("a = ? AND b = ? LIMIT ?"))
	assert.Equal(t, "a = ? AND b = ?", SQLite.rebind("a = ? AND b = ?"))
}

func TestCreateReading_Postgres(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reading := tncmodels.Reading{
		ID:       "r-1",
		DeviceID: "tank1",
		Ts:       ts,
		LevelPct: f64(80),
		FlowLpm:  f64(30),
		Pump:     str("ON"),
	}

	mock.ExpectExec(`INSERT INTO readings \(id, device_id, ts, .*\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11\)`).
		WithArgs("r-1", "tank1", ts, 80.0, 30.0, nil, nil, nil, "ON", nil, "[]").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateReading(context.Background(), reading)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReading_PropagatesDriverError(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO readings`).WillReturnError(errors.New("connection refused"))

	err := repo.CreateReading(context.Background(), tncmodels.Reading{ID: "r-1", DeviceID: "tank1", Ts: time.Now()})

	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDevice_Postgres(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows(readingColumnNames).
		AddRow("r-2", "tank1", ts, 55.5, nil, 120.0, 21.5, 60.0, "OFF", "OPEN", []byte(`["LOW_LEVEL","HIGH_TDS"]`)).
		AddRow("r-1", "tank1", ts.Add(-time.Hour), nil, 12.0, nil, nil, nil, nil, nil, []byte(`[]`))

	mock.ExpectQuery(`SELECT .* FROM readings\s+WHERE device_id = \$1 AND ts >= \$2 AND ts <= \$3\s+ORDER BY ts DESC, id DESC\s+LIMIT \$4`).
		WithArgs("tank1", from, to, 200).
		WillReturnRows(rows)

	readings, err := repo.ListByDevice(context.Background(), tncmodels.DeviceReadingQuery{
		DeviceID: "tank1",
		From:     &from,
		To:       &to,
		Limit:    200,
	})

	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, "r-2", readings[0].ID)
	assert.Equal(t, ts, readings[0].Ts)
	assert.Equal(t, 55.5, *readings[0].LevelPct)
	assert.Nil(t, readings[0].FlowLpm)
	assert.Equal(t, "OPEN", *readings[0].Valve)
	assert.Equal(t, []string{"LOW_LEVEL", "HIGH_TDS"}, readings[0].Alerts)

	assert.Nil(t, readings[1].LevelPct)
	assert.Nil(t, readings[1].Pump)
	assert.Equal(t, []string{}, readings[1].Alerts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_Postgres_NoFilters(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM readings\s+ORDER BY ts ASC, id ASC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(10000, 20).
		WillReturnRows(sqlmock.NewRows(readingColumnNames))

	readings, err := repo.ListAll(context.Background(), tncmodels.ReadingListQuery{
		Limit:  10000,
		Offset: 20,
		Sort:   tncmodels.SortAsc,
	})

	require.NoError(t, err)
	assert.NotNil(t, readings)
	assert.Len(t, readings, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_Postgres_DeviceFilterDescending(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM readings\s+WHERE device_id = \$1\s+ORDER BY ts DESC, id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("tank2", 5, 0).
		WillReturnRows(sqlmock.NewRows(readingColumnNames).
			AddRow("r-9", "tank2", time.Now(), nil, nil, nil, nil, nil, nil, nil, nil))

	readings, err := repo.ListAll(context.Background(), tncmodels.ReadingListQuery{
		DeviceID: "tank2",
		Limit:    5,
		Sort:     tncmodels.SortDesc,
	})

	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, []string{}, readings[0].Alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDevice_BadAlertsJSON(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(readingColumnNames).
			AddRow("r-1", "tank1", time.Now(), nil, nil, nil, nil, nil, nil, nil, []byte(`{"not":"a list"}`)))

	_, err := repo.ListByDevice(context.Background(), tncmodels.DeviceReadingQuery{DeviceID: "tank1", Limit: 1})

	assert.ErrorContains(t, err, "failed to unmarshal alerts")
}

func TestDailyAggregate_Postgres(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	day := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day", "avg_level", "approx_liters", "avg_tds", "avg_temp_c", "avg_humidity_pct", "samples"}).
		AddRow(day, 70.0, 3.0, nil, 22.5, nil, int64(2))

	mock.ExpectQuery(`SELECT\s+DATE_TRUNC\('day', ts AT TIME ZONE 'UTC'\) AS day,.*SUM\(COALESCE\(flow_lpm, 0\)\) / 60\.0 AS approx_liters.*WHERE device_id = \$1\s+GROUP BY 1\s+ORDER BY 1 DESC\s+LIMIT \$2`).
		WithArgs("tank1", 60).
		WillReturnRows(rows)

	days, err := repo.DailyAggregate(context.Background(), "tank1", 60)

	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, day, days[0].Day)
	assert.Equal(t, 70.0, *days[0].AvgLevel)
	assert.Equal(t, 3.0, days[0].ApproxLiters)
	assert.Nil(t, days[0].AvgTds)
	assert.Equal(t, 22.5, *days[0].AvgTempC)
	assert.Nil(t, days[0].AvgHumidityPct)
	assert.Equal(t, int64(2), days[0].Samples)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTables_Postgres(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS readings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_readings_device_id`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_readings_device_ts_desc`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_readings_ts_desc`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CreateTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBTimeScan(t *testing.T) {
	var ts dbTime

	require.NoError(t, ts.Scan("2025-03-01T12:00:00.000000000Z"))
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), ts.Time)

	require.NoError(t, ts.Scan([]byte("2025-03-01")))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ts.Time)

	assert.Error(t, ts.Scan(nil))
	assert.Error(t, ts.Scan(42))
}
