package implementation

import (
	"context"
	"fmt"
	"time"

	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoReadingRepository stores one document per reading, keyed by the reading id
type MongoReadingRepository struct {
	coll *mongo.Collection
}

func NewMongoReadingRepository(coll *mongo.Collection) *MongoReadingRepository {
	return &MongoReadingRepository{coll: coll}
}

func (r *MongoReadingRepository) Backend() string {
	return "mongo"
}

// EnsureIndexes creates the device and time indexes used by the list queries
func (r *MongoReadingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "device_id", Value: 1}}, Options: options.Index().SetName("idx_readings_device_id")},
		{Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "ts", Value: -1}}, Options: options.Index().SetName("idx_readings_device_ts_desc")},
		{Keys: bson.D{{Key: "ts", Value: -1}}, Options: options.Index().SetName("idx_readings_ts_desc")},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoReadingRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (r *MongoReadingRepository) CreateReading(ctx context.Context, reading tncmodels.Reading) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	reading.Alerts = ensureAlertsNotNull(reading.Alerts)
	_, err := r.coll.InsertOne(ctx, reading)
	return err
}

func (r *MongoReadingRepository) ListByDevice(ctx context.Context, q tncmodels.DeviceReadingQuery) ([]tncmodels.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(q.Limit))

	return r.find(ctx, mongoFilter(q.DeviceID, q.From, q.To), opts)
}

func (r *MongoReadingRepository) ListAll(ctx context.Context, q tncmodels.ReadingListQuery) ([]tncmodels.Reading, error) {
	direction := -1
	if q.Sort == tncmodels.SortAsc {
		direction = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: direction}, {Key: "_id", Value: direction}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	return r.find(ctx, mongoFilter(q.DeviceID, q.From, q.To), opts)
}

// dailyGroup is one $group output row of the daily rollup
type dailyGroup struct {
	Day            time.Time `bson:"_id"`
	AvgLevel       *float64  `bson:"avg_level"`
	FlowSum        float64   `bson:"flow_sum"`
	AvgTds         *float64  `bson:"avg_tds"`
	AvgTempC       *float64  `bson:"avg_temp_c"`
	AvgHumidityPct *float64  `bson:"avg_humidity_pct"`
	Samples        int64     `bson:"samples"`
}

func (r *MongoReadingRepository) DailyAggregate(ctx context.Context, deviceID string, maxDays int) ([]tncmodels.DailyAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "device_id", Value: deviceID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateTrunc", Value: bson.D{
				{Key: "date", Value: "$ts"},
				{Key: "unit", Value: "day"},
			}}}},
			{Key: "avg_level", Value: bson.D{{Key: "$avg", Value: "$level_pct"}}},
			{Key: "flow_sum", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$flow_lpm", 0}}}}}},
			{Key: "avg_tds", Value: bson.D{{Key: "$avg", Value: "$tds_ppm"}}},
			{Key: "avg_temp_c", Value: bson.D{{Key: "$avg", Value: "$water_temp_c"}}},
			{Key: "avg_humidity_pct", Value: bson.D{{Key: "$avg", Value: "$humidity_pct"}}},
			{Key: "samples", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: maxDays}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	days := make([]tncmodels.DailyAggregate, 0)
	for cursor.Next(ctx) {
		var g dailyGroup
		if err := cursor.Decode(&g); err != nil {
			return nil, fmt.Errorf("failed to decode daily aggregate: %w", err)
		}
		days = append(days, tncmodels.DailyAggregate{
			Day:            g.Day.UTC(),
			AvgLevel:       g.AvgLevel,
			ApproxLiters:   g.FlowSum / tncmodels.ApproxLitersDivisor,
			AvgTds:         g.AvgTds,
			AvgTempC:       g.AvgTempC,
			AvgHumidityPct: g.AvgHumidityPct,
			Samples:        g.Samples,
		})
	}

	return days, cursor.Err()
}

func (r *MongoReadingRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]tncmodels.Reading, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	readings := make([]tncmodels.Reading, 0)
	for cursor.Next(ctx) {
		var reading tncmodels.Reading
		if err := cursor.Decode(&reading); err != nil {
			return nil, fmt.Errorf("failed to decode reading: %w", err)
		}
		reading.Ts = reading.Ts.UTC()
		reading.Alerts = ensureAlertsNotNull(reading.Alerts)
		readings = append(readings, reading)
	}

	return readings, cursor.Err()
}

func mongoFilter(deviceID string, from, to *time.Time) bson.D {
	filter := bson.D{}
	if deviceID != "" {
		filter = append(filter, bson.E{Key: "device_id", Value: deviceID})
	}

	ts := bson.D{}
	if from != nil {
		ts = append(ts, bson.E{Key: "$gte", Value: *from})
	}
	if to != nil {
		ts = append(ts, bson.E{Key: "$lte", Value: *to})
	}
	if len(ts) > 0 {
		filter = append(filter, bson.E{Key: "ts", Value: ts})
	}
	return filter
}
