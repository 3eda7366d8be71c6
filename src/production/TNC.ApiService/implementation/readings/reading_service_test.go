package readings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

// fakeRepo records calls and answers from memory
type fakeRepo struct {
	created   []tncmodels.Reading
	deviceQ   *tncmodels.DeviceReadingQuery
	listQ     *tncmodels.ReadingListQuery
	aggDevice string
	aggDays   int
	err       error
}

func (f *fakeRepo) CreateReading(ctx context.Context, r tncmodels.Reading) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeRepo) ListByDevice(ctx context.Context, q tncmodels.DeviceReadingQuery) ([]tncmodels.Reading, error) {
	f.deviceQ = &q
	return []tncmodels.Reading{}, f.err
}

func (f *fakeRepo) ListAll(ctx context.Context, q tncmodels.ReadingListQuery) ([]tncmodels.Reading, error) {
	f.listQ = &q
	return []tncmodels.Reading{}, f.err
}

func (f *fakeRepo) DailyAggregate(ctx context.Context, deviceID string, maxDays int) ([]tncmodels.DailyAggregate, error) {
	f.aggDevice = deviceID
	f.aggDays = maxDays
	return []tncmodels.DailyAggregate{}, f.err
}

func (f *fakeRepo) Ping(ctx context.Context) error { return f.err }

func (f *fakeRepo) Backend() string { return "fake" }

func newTestService() (*ReadingService, *fakeRepo) {
	repo := &fakeRepo{}
	return NewReadingService(repo, logger.NewNop()), repo
}

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, field, verr.Field)
}

func TestCreate_LevelBounds(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, tncmodels.ReadingInput{DeviceID: "tank1", LevelPct: f64(150)})
	assertValidation(t, err, "level_pct")
	assert.Empty(t, repo.created, "rejected readings must not reach the store")

	_, err = svc.Create(ctx, tncmodels.ReadingInput{DeviceID: "tank1", LevelPct: f64(-0.1)})
	assertValidation(t, err, "level_pct")

	for _, level := range []float64{0, 100} {
		_, err := svc.Create(ctx, tncmodels.ReadingInput{DeviceID: "tank1", LevelPct: f64(level)})
		assert.NoError(t, err, "level %v", level)
	}
	assert.Len(t, repo.created, 2)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input tncmodels.ReadingInput
		field string
	}{
		{"missing device", tncmodels.ReadingInput{}, "device_id"},
		{"blank device", tncmodels.ReadingInput{DeviceID: "   "}, "device_id"},
		{"negative flow", tncmodels.ReadingInput{DeviceID: "tank1", FlowLpm: f64(-1)}, "flow_lpm"},
		{"negative tds", tncmodels.ReadingInput{DeviceID: "tank1", TdsPpm: f64(-5)}, "tds_ppm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			_, err := svc.Create(context.Background(), tt.input)
			assertValidation(t, err, tt.field)
			assert.Empty(t, repo.created)
		})
	}
}

func TestCreate_UnrestrictedFieldsAccepted(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Create(context.Background(), tncmodels.ReadingInput{
		DeviceID:    "tank1",
		WaterTempC:  f64(-40),
		HumidityPct: f64(250),
	})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, -40.0, *repo.created[0].WaterTempC)
	assert.Equal(t, 250.0, *repo.created[0].HumidityPct)
}

func TestCreate_DefaultsTimestampAndAlerts(t *testing.T) {
	svc, repo := newTestService()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	id, err := svc.Create(context.Background(), tncmodels.ReadingInput{DeviceID: "tank1", LevelPct: f64(80), FlowLpm: f64(30)})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	assert.Equal(t, id, stored.ID)
	assert.Equal(t, now, stored.Ts)
	assert.NotNil(t, stored.Alerts)
	assert.Empty(t, stored.Alerts)
	assert.Equal(t, 80.0, *stored.LevelPct)
	assert.Equal(t, 30.0, *stored.FlowLpm)
	assert.Nil(t, stored.TdsPpm)
}

func TestCreate_KeepsSuppliedTimestamp(t *testing.T) {
	svc, repo := newTestService()
	ts := time.Date(2024, 12, 31, 23, 59, 0, 0, time.FixedZone("CST", -6*3600))

	_, err := svc.Create(context.Background(), tncmodels.ReadingInput{
		DeviceID:      "tank1",
		Ts:            &tncmodels.FlexibleTime{Time: ts},
		WaterTempCAlt: f64(18),
		Alerts:        []string{"LOW_LEVEL"},
	})

	require.NoError(t, err)
	assert.True(t, ts.Equal(repo.created[0].Ts))
	assert.Equal(t, 18.0, *repo.created[0].WaterTempC)
	assert.Equal(t, []string{"LOW_LEVEL"}, repo.created[0].Alerts)
}

func TestCreate_RejectsTimestampOutsideFourDigitYears(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	var far tncmodels.ReadingInput
	require.NoError(t, json.Unmarshal([]byte(`{"device_id":"tank1","ts":300000000000000}`), &far))

	for _, in := range []tncmodels.ReadingInput{
		far,
		{DeviceID: "tank1", Ts: &tncmodels.FlexibleTime{Time: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{DeviceID: "tank1", Ts: &tncmodels.FlexibleTime{Time: time.Date(-1, 12, 31, 0, 0, 0, 0, time.UTC)}},
	} {
		_, err := svc.Create(ctx, in)
		assertValidation(t, err, "ts")
	}
	assert.Empty(t, repo.created)

	// the offset is applied before the year check
	edge := time.Date(9999, 12, 31, 20, 0, 0, 0, time.FixedZone("CST", -6*3600))
	_, err := svc.Create(ctx, tncmodels.ReadingInput{DeviceID: "tank1", Ts: &tncmodels.FlexibleTime{Time: edge}})
	assertValidation(t, err, "ts")

	last := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	_, err = svc.Create(ctx, tncmodels.ReadingInput{DeviceID: "tank1", Ts: &tncmodels.FlexibleTime{Time: last}})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, last, repo.created[0].Ts)
}

func TestCreate_GeneratesUniqueIDs(t *testing.T) {
	svc, _ := newTestService()
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := svc.Create(context.Background(), tncmodels.ReadingInput{DeviceID: fmt.Sprintf("tank%d", i%4)})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCreate_WrapsStorageError(t *testing.T) {
	svc, repo := newTestService()
	cause := errors.New("disk full")
	repo.err = cause

	_, err := svc.Create(context.Background(), tncmodels.ReadingInput{DeviceID: "tank1"})

	var serr *StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "create reading", serr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestListByDevice_DefaultsAndBounds(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.ListByDevice(ctx, DeviceListParams{})
	assertValidation(t, err, "device_id")

	_, err = svc.ListByDevice(ctx, DeviceListParams{DeviceID: "tank1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDeviceLimit, repo.deviceQ.Limit)

	_, err = svc.ListByDevice(ctx, DeviceListParams{DeviceID: "tank1", Limit: intp(MaxDeviceLimit)})
	require.NoError(t, err)
	assert.Equal(t, MaxDeviceLimit, repo.deviceQ.Limit)

	_, err = svc.ListByDevice(ctx, DeviceListParams{DeviceID: "tank1", Limit: intp(MaxDeviceLimit + 1)})
	assertValidation(t, err, "limit")

	_, err = svc.ListByDevice(ctx, DeviceListParams{DeviceID: "tank1", Limit: intp(0)})
	assertValidation(t, err, "limit")

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.ListByDevice(ctx, DeviceListParams{DeviceID: "tank1", From: &from})
	require.NoError(t, err)
	assert.Equal(t, &from, repo.deviceQ.From)
	assert.Nil(t, repo.deviceQ.To)
}

func TestListAll_DefaultsAndBounds(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.ListAll(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, tncmodels.ReadingListQuery{Limit: DefaultListLimit, Offset: 0, Sort: tncmodels.SortDesc}, *repo.listQ)

	_, err = svc.ListAll(ctx, ListParams{DeviceID: "tank2", Limit: intp(50), Offset: intp(100), Sort: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, "tank2", repo.listQ.DeviceID)
	assert.Equal(t, 50, repo.listQ.Limit)
	assert.Equal(t, 100, repo.listQ.Offset)
	assert.Equal(t, tncmodels.SortAsc, repo.listQ.Sort)

	_, err = svc.ListAll(ctx, ListParams{Limit: intp(MaxListLimit + 1)})
	assertValidation(t, err, "limit")

	_, err = svc.ListAll(ctx, ListParams{Offset: intp(-1)})
	assertValidation(t, err, "offset")

	_, err = svc.ListAll(ctx, ListParams{Sort: "sideways"})
	assertValidation(t, err, "sort")
}

func TestDailyAggregate_UsesDayCap(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.DailyAggregate(context.Background(), "")
	assertValidation(t, err, "device_id")

	days, err := svc.DailyAggregate(context.Background(), "tank1")
	require.NoError(t, err)
	assert.NotNil(t, days)
	assert.Equal(t, "tank1", repo.aggDevice)
	assert.Equal(t, tncmodels.MaxDailyAggregateDays, repo.aggDays)

	repo.err = errors.New("timeout")
	_, err = svc.DailyAggregate(context.Background(), "tank1")
	var serr *StorageError
	assert.True(t, errors.As(err, &serr))
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]tncmodels.SortOrder{
		"":      tncmodels.SortDesc,
		"asc":   tncmodels.SortAsc,
		"Desc":  tncmodels.SortDesc,
		" ASC ": tncmodels.SortAsc,
	} {
		got, err := ParseSort(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
