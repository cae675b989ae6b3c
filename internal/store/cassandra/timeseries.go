// Package cassandra implements the time-series store contract on Cassandra
// via gocql. The sensor_data_by_field table is partitioned by field id and
// clustered newest-first, with time-window compaction and a 90-day TTL;
// hourly rollups live in aggregated_metrics_by_field with a 365-day TTL.
package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"pasture-analytics/internal/model"
)

const keyspace = "pasture_sensors"

var schemaStatements = []string{
	`CREATE KEYSPACE IF NOT EXISTS pasture_sensors
	 WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`,

	`CREATE TABLE IF NOT EXISTS pasture_sensors.sensor_data_by_field (
	    field_id text,
	    sensor_ts timestamp,
	    sensor_id text,
	    metric_type text,
	    metric_value double,
	    quality_flag int,
	    PRIMARY KEY ((field_id), sensor_ts, sensor_id)
	) WITH CLUSTERING ORDER BY (sensor_ts DESC, sensor_id ASC)
	  AND compaction = {
	      'class': 'TimeWindowCompactionStrategy',
	      'compaction_window_size': '1',
	      'compaction_window_unit': 'DAYS'
	  }
	  AND default_time_to_live = 7776000`,

	`CREATE TABLE IF NOT EXISTS pasture_sensors.aggregated_metrics_by_field (
	    field_id text,
	    date text,
	    hour int,
	    metric_type text,
	    avg_value double,
	    min_value double,
	    max_value double,
	    sample_count int,
	    PRIMARY KEY ((field_id, date), hour, metric_type)
	) WITH CLUSTERING ORDER BY (hour DESC, metric_type ASC)
	  AND default_time_to_live = 31536000`,
}

// TimeSeriesStore implements store.TimeSeriesStore.
type TimeSeriesStore struct {
	session *gocql.Session
}

// Open connects to the Cassandra cluster and returns a time-series store.
func Open(hosts []string, timeout time.Duration) (*TimeSeriesStore, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.LocalOne
	cluster.Timeout = timeout

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to time-series store: %w", err)
	}
	return &TimeSeriesStore{session: session}, nil
}

// Close tears down the session.
func (s *TimeSeriesStore) Close() {
	s.session.Close()
}

// Init creates the keyspace and tables. All statements are IF NOT EXISTS, so
// re-running against an initialized cluster succeeds.
func (s *TimeSeriesStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply time-series schema: %w", err)
		}
	}
	return nil
}

// InsertReadings writes one batch of readings. The batch is unlogged: every
// row targets the same workload and atomicity across partitions is not
// required.
func (s *TimeSeriesStore) InsertReadings(ctx context.Context, readings []model.SensorReading) error {
	if len(readings) == 0 {
		return nil
	}

	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, r := range readings {
		batch.Query(
			`INSERT INTO pasture_sensors.sensor_data_by_field
			 (field_id, sensor_ts, sensor_id, metric_type, metric_value, quality_flag)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.FieldID, r.Timestamp, r.SensorID, string(r.MetricType), r.MetricValue, r.QualityFlag,
		)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to insert reading batch: %w", err)
	}
	return nil
}

// RecentReadings returns up to limit readings for a field, newest first per
// the table's clustering order.
func (s *TimeSeriesStore) RecentReadings(ctx context.Context, fieldID string, limit int) ([]model.SensorReading, error) {
	iter := s.session.Query(
		`SELECT sensor_ts, sensor_id, metric_type, metric_value, quality_flag
		 FROM pasture_sensors.sensor_data_by_field
		 WHERE field_id = ?
		 LIMIT ?`,
		fieldID, limit,
	).WithContext(ctx).Iter()

	var out []model.SensorReading
	var (
		ts         time.Time
		sensorID   string
		metricType string
		value      float64
		quality    int
	)
	for iter.Scan(&ts, &sensorID, &metricType, &value, &quality) {
		out = append(out, model.SensorReading{
			FieldID:     fieldID,
			Timestamp:   ts,
			SensorID:    sensorID,
			MetricType:  model.MetricType(metricType),
			MetricValue: value,
			QualityFlag: quality,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to query recent readings for %s: %w", fieldID, err)
	}
	return out, nil
}

// InsertRollups writes hourly rollup rows.
func (s *TimeSeriesStore) InsertRollups(ctx context.Context, rollups []model.HourlyRollup) error {
	if len(rollups) == 0 {
		return nil
	}

	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, r := range rollups {
		batch.Query(
			`INSERT INTO pasture_sensors.aggregated_metrics_by_field
			 (field_id, date, hour, metric_type, avg_value, min_value, max_value, sample_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.FieldID, r.Date, r.Hour, string(r.MetricType), r.AvgValue, r.MinValue, r.MaxValue, r.SampleCount,
		)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to insert rollup batch: %w", err)
	}
	return nil
}
