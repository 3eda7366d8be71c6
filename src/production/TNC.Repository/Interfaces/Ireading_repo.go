package interfaces

import (
	"context"

	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

// ReadingRepository persists readings and answers the list and rollup queries.
// Implementations apply no defaults or bounds; the reading service does that.
type ReadingRepository interface {
	// Write operations
	CreateReading(ctx context.Context, reading tncmodels.Reading) error

	// Query operations
	ListByDevice(ctx context.Context, q tncmodels.DeviceReadingQuery) ([]tncmodels.Reading, error)
	ListAll(ctx context.Context, q tncmodels.ReadingListQuery) ([]tncmodels.Reading, error)

	// Statistics
	DailyAggregate(ctx context.Context, deviceID string, maxDays int) ([]tncmodels.DailyAggregate, error)

	// Connectivity
	Ping(ctx context.Context) error
	Backend() string
}
