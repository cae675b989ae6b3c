package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pasture-analytics/internal/model"
)

func TestInsertReadingsUpsertsByPrimaryKey(t *testing.T) {
	ctx := context.Background()
	s := NewTimeSeriesStore()

	at := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	batch := []model.SensorReading{
		{FieldID: "f1", Timestamp: at, SensorID: "sensor_ndvi_f1", MetricType: model.MetricNDVI, MetricValue: 0.6},
		{FieldID: "f1", Timestamp: at, SensorID: "sensor_temperature_f1", MetricType: model.MetricTemperature, MetricValue: 18},
	}

	if err := s.InsertReadings(ctx, batch); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}
	if err := s.InsertReadings(ctx, batch); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}

	if got := s.ReadingCount("f1"); got != 2 {
		t.Errorf("reading count = %d, expected 2 after re-insert", got)
	}
}

func TestRecentReadingsOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewTimeSeriesStore()

	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	var batch []model.SensorReading
	for h := 0; h < 4; h++ {
		batch = append(batch,
			model.SensorReading{FieldID: "f1", Timestamp: base.Add(time.Duration(h) * time.Hour), SensorID: "sensor_b_f1", MetricValue: float64(h)},
			model.SensorReading{FieldID: "f1", Timestamp: base.Add(time.Duration(h) * time.Hour), SensorID: "sensor_a_f1", MetricValue: float64(h)},
		)
	}
	if err := s.InsertReadings(ctx, batch); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}

	out, err := s.RecentReadings(ctx, "f1", 3)
	if err != nil {
		t.Fatalf("RecentReadings failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d readings, expected 3", len(out))
	}
	if !out[0].Timestamp.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("first reading at %s, expected the newest hour", out[0].Timestamp)
	}
	if out[0].SensorID != "sensor_a_f1" || out[1].SensorID != "sensor_b_f1" {
		t.Errorf("ties not broken by sensor id asc: %s, %s", out[0].SensorID, out[1].SensorID)
	}

	other, err := s.RecentReadings(ctx, "f2", 10)
	if err != nil {
		t.Fatalf("RecentReadings failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("empty partition returned %d readings", len(other))
	}
}

func TestInsertReadingsFailFieldsHook(t *testing.T) {
	ctx := context.Background()
	s := NewTimeSeriesStore()
	boom := errors.New("unavailable")
	s.FailFields = map[string]error{"f1": boom}

	err := s.InsertReadings(ctx, []model.SensorReading{{FieldID: "f1", SensorID: "sensor_ndvi_f1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if got := s.ReadingCount("f1"); got != 0 {
		t.Errorf("failed batch left %d readings", got)
	}

	if err := s.InsertReadings(ctx, []model.SensorReading{{FieldID: "f2", SensorID: "sensor_ndvi_f2"}}); err != nil {
		t.Fatalf("healthy field failed: %v", err)
	}
}
