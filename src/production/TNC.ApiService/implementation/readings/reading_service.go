package readings

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
	interfaces "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Repository/Interfaces"
)

// Listing limits
const (
	DefaultDeviceLimit = 200
	MaxDeviceLimit     = 5000
	DefaultListLimit   = 10000
	MaxListLimit       = 100000
)

// Accepted range of reading timestamps, in UTC years
const (
	MinTimestampYear = 0
	MaxTimestampYear = 9999
)

// DeviceListParams are the caller-supplied options of ListByDevice.
// A nil Limit takes the default.
type DeviceListParams struct {
	DeviceID string
	Limit    *int
	From     *time.Time
	To       *time.Time
}

// ListParams are the caller-supplied options of ListAll.
// Nil pointers and an empty Sort take their defaults.
type ListParams struct {
	DeviceID string
	Limit    *int
	Offset   *int
	From     *time.Time
	To       *time.Time
	Sort     string
}

// ReadingService validates, defaults and persists readings, and answers the read queries
type ReadingService struct {
	repo     interfaces.ReadingRepository
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
	newID    func() string
}

// NewReadingService creates a new reading service
func NewReadingService(repo interfaces.ReadingRepository, log *logger.Logger) *ReadingService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ReadingService{
		repo:     repo,
		validate: v,
		logger:   log.WithComponent("reading_service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create stores a new reading and returns its generated id
func (s *ReadingService) Create(ctx context.Context, in tncmodels.ReadingInput) (string, error) {
	if err := s.validateInput(in); err != nil {
		return "", err
	}

	reading := tncmodels.Reading{
		ID:          s.newID(),
		DeviceID:    in.DeviceID,
		LevelPct:    in.LevelPct,
		FlowLpm:     in.FlowLpm,
		TdsPpm:      in.TdsPpm,
		WaterTempC:  in.WaterTemp(),
		HumidityPct: in.HumidityPct,
		Pump:        in.Pump,
		Valve:       in.Valve,
		Alerts:      in.Alerts,
	}
	if in.Ts != nil && !in.Ts.IsZero() {
		reading.Ts = in.Ts.Time
	} else {
		reading.Ts = s.now().UTC()
	}
	if reading.Alerts == nil {
		reading.Alerts = []string{}
	}

	if err := s.repo.CreateReading(ctx, reading); err != nil {
		return "", s.storageError("create reading", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"reading_id": reading.ID,
		"device_id":  reading.DeviceID,
	}).Debug("Reading stored")

	return reading.ID, nil
}

// ListByDevice returns one device's readings, newest first
func (s *ReadingService) ListByDevice(ctx context.Context, p DeviceListParams) ([]tncmodels.Reading, error) {
	if strings.TrimSpace(p.DeviceID) == "" {
		return nil, &ValidationError{Field: "device_id", Reason: "is required"}
	}
	limit, err := boundedInt("limit", p.Limit, DefaultDeviceLimit, 1, MaxDeviceLimit)
	if err != nil {
		return nil, err
	}

	readings, err := s.repo.ListByDevice(ctx, tncmodels.DeviceReadingQuery{
		DeviceID: p.DeviceID,
		From:     p.From,
		To:       p.To,
		Limit:    limit,
	})
	if err != nil {
		return nil, s.storageError("list readings", err)
	}
	return readings, nil
}

// ListAll returns readings across devices with offset pagination
func (s *ReadingService) ListAll(ctx context.Context, p ListParams) ([]tncmodels.Reading, error) {
	limit, err := boundedInt("limit", p.Limit, DefaultListLimit, 1, MaxListLimit)
	if err != nil {
		return nil, err
	}
	offset, err := boundedInt("offset", p.Offset, 0, 0, -1)
	if err != nil {
		return nil, err
	}
	sort, err := ParseSort(p.Sort)
	if err != nil {
		return nil, err
	}

	readings, err := s.repo.ListAll(ctx, tncmodels.ReadingListQuery{
		DeviceID: p.DeviceID,
		From:     p.From,
		To:       p.To,
		Limit:    limit,
		Offset:   offset,
		Sort:     sort,
	})
	if err != nil {
		return nil, s.storageError("list readings", err)
	}
	return readings, nil
}

// DailyAggregate returns the per-day rollup of a device, newest day first
func (s *ReadingService) DailyAggregate(ctx context.Context, deviceID string) ([]tncmodels.DailyAggregate, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, &ValidationError{Field: "device_id", Reason: "is required"}
	}

	days, err := s.repo.DailyAggregate(ctx, deviceID, tncmodels.MaxDailyAggregateDays)
	if err != nil {
		return nil, s.storageError("aggregate readings", err)
	}
	return days, nil
}

// ParseSort maps a sort query value to a SortOrder. Empty means descending.
func ParseSort(raw string) (tncmodels.SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return tncmodels.SortDesc, nil
	case string(tncmodels.SortAsc):
		return tncmodels.SortAsc, nil
	case string(tncmodels.SortDesc):
		return tncmodels.SortDesc, nil
	default:
		return "", &ValidationError{Field: "sort", Reason: "must be asc or desc"}
	}
}

func (s *ReadingService) validateInput(in tncmodels.ReadingInput) error {
	if strings.TrimSpace(in.DeviceID) == "" {
		return &ValidationError{Field: "device_id", Reason: "is required"}
	}

	// the SQLite store keeps ts as fixed-width text, which only holds four digit years
	if in.Ts != nil && !in.Ts.IsZero() {
		if year := in.Ts.UTC().Year(); year < MinTimestampYear || year > MaxTimestampYear {
			return &ValidationError{Field: "ts", Reason: "must fall between years 0000 and 9999"}
		}
	}

	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "body", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Reason: "is required"}
	case "gte":
		return &ValidationError{Field: fe.Field(), Reason: "must be >= " + fe.Param()}
	case "lte":
		return &ValidationError{Field: fe.Field(), Reason: "must be <= " + fe.Param()}
	default:
		return &ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag() + " check"}
	}
}

func (s *ReadingService) storageError(op string, err error) error {
	s.logger.ErrorWithError(err, "Storage operation failed: "+op)
	return &StorageError{Op: op, Err: err}
}

// boundedInt applies def when v is nil and checks lo <= v <= hi. A negative hi means unbounded.
func boundedInt(field string, v *int, def, lo, hi int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < lo {
		return 0, &ValidationError{Field: field, Reason: "must be >= " + strconv.Itoa(lo)}
	}
	if hi >= 0 && *v > hi {
		return 0, &ValidationError{Field: field, Reason: "must be <= " + strconv.Itoa(hi)}
	}
	return *v, nil
}
