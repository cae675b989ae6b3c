package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pasture-analytics/internal/model"
)

type readingKey struct {
	ts       int64
	sensorID string
}

type rollupRowKey struct {
	date   string
	hour   int
	metric model.MetricType
}

// TimeSeriesStore is an in-memory store.TimeSeriesStore. Rows are keyed by
// their table primary key within a per-field partition, so writes upsert and
// re-ingestion converges to identical counts. Reads sort by (timestamp desc,
// sensor id asc) to match the clustering order of the real table.
type TimeSeriesStore struct {
	mu       sync.RWMutex
	readings map[string]map[readingKey]model.SensorReading
	rollups  map[string]map[rollupRowKey]model.HourlyRollup

	// FailFields makes InsertReadings fail for the listed field ids. Test
	// hook for per-field ingestion error handling.
	FailFields map[string]error
}

// NewTimeSeriesStore returns an empty time-series store.
func NewTimeSeriesStore() *TimeSeriesStore {
	return &TimeSeriesStore{
		readings: make(map[string]map[readingKey]model.SensorReading),
		rollups:  make(map[string]map[rollupRowKey]model.HourlyRollup),
	}
}

// Init is a no-op.
func (s *TimeSeriesStore) Init(ctx context.Context) error {
	return nil
}

// InsertReadings upserts one batch of readings.
func (s *TimeSeriesStore) InsertReadings(ctx context.Context, readings []model.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		if err, ok := s.FailFields[r.FieldID]; ok {
			return err
		}
	}
	for _, r := range readings {
		partition, ok := s.readings[r.FieldID]
		if !ok {
			partition = make(map[readingKey]model.SensorReading)
			s.readings[r.FieldID] = partition
		}
		partition[readingKey{ts: r.Timestamp.UnixNano(), sensorID: r.SensorID}] = r
	}
	return nil
}

// RecentReadings returns up to limit readings for a field, newest first.
func (s *TimeSeriesStore) RecentReadings(ctx context.Context, fieldID string, limit int) ([]model.SensorReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partition := s.readings[fieldID]
	out := make([]model.SensorReading, 0, len(partition))
	for _, r := range partition {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].SensorID < out[j].SensorID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertRollups upserts hourly rollup rows.
func (s *TimeSeriesStore) InsertRollups(ctx context.Context, rollups []model.HourlyRollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rollups {
		partition, ok := s.rollups[r.FieldID]
		if !ok {
			partition = make(map[rollupRowKey]model.HourlyRollup)
			s.rollups[r.FieldID] = partition
		}
		partition[rollupRowKey{date: r.Date, hour: r.Hour, metric: r.MetricType}] = r
	}
	return nil
}

// ReadingCount reports the number of stored readings for a field.
func (s *TimeSeriesStore) ReadingCount(fieldID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings[fieldID])
}

// RollupCount reports the number of stored rollup rows for a field.
func (s *TimeSeriesStore) RollupCount(fieldID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rollups[fieldID])
}

// OldestReading returns the earliest stored reading timestamp for a field and
// false when the partition is empty.
func (s *TimeSeriesStore) OldestReading(fieldID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest time.Time
	found := false
	for key := range s.readings[fieldID] {
		ts := time.Unix(0, key.ts).UTC()
		if !found || ts.Before(oldest) {
			oldest = ts
			found = true
		}
	}
	return oldest, found
}
