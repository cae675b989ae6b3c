package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvaluateThresholds(t *testing.T) {
	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		metrics    map[string]float64
		wantAlerts []model.Alert
	}{
		{
			name:    "both thresholds breached",
			metrics: map[string]float64{"ndvi": 0.42, "soil_moisture": 9.0},
			wantAlerts: []model.Alert{
				{FieldID: "field_001_01", Type: "low_ndvi", Severity: model.SeverityWarning, Value: 0.42, Threshold: 0.5, Timestamp: at},
				{FieldID: "field_001_01", Type: "low_soil_moisture", Severity: model.SeverityCritical, Value: 9.0, Threshold: 15.0, Timestamp: at},
			},
		},
		{
			name:       "healthy field",
			metrics:    map[string]float64{"ndvi": 0.7, "soil_moisture": 20.0},
			wantAlerts: nil,
		},
		{
			name:    "ndvi only",
			metrics: map[string]float64{"ndvi": 0.3, "soil_moisture": 30.0},
			wantAlerts: []model.Alert{
				{FieldID: "field_001_01", Type: "low_ndvi", Severity: model.SeverityWarning, Value: 0.3, Threshold: 0.5, Timestamp: at},
			},
		},
		{
			name:    "moisture only",
			metrics: map[string]float64{"ndvi": 0.8, "soil_moisture": 14.9},
			wantAlerts: []model.Alert{
				{FieldID: "field_001_01", Type: "low_soil_moisture", Severity: model.SeverityCritical, Value: 14.9, Threshold: 15.0, Timestamp: at},
			},
		},
		{
			name:       "thresholds are exclusive",
			metrics:    map[string]float64{"ndvi": 0.5, "soil_moisture": 15.0},
			wantAlerts: nil,
		},
		{
			name:       "absent metrics trigger nothing",
			metrics:    map[string]float64{"temperature": 21.5},
			wantAlerts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := model.FieldMetricsSnapshot{FieldID: "field_001_01", Metrics: tt.metrics, UpdatedAt: at}
			got := EvaluateThresholds(snap)

			if len(got) != len(tt.wantAlerts) {
				t.Fatalf("got %d alerts, expected %d: %+v", len(got), len(tt.wantAlerts), got)
			}
			for i := range got {
				if got[i] != tt.wantAlerts[i] {
					t.Errorf("alert %d = %+v, expected %+v", i, got[i], tt.wantAlerts[i])
				}
			}
		})
	}
}

func TestReduceLatestFirstWins(t *testing.T) {
	at := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	// Newest-first window with an older duplicate for ndvi.
	readings := []model.SensorReading{
		{FieldID: "f", Timestamp: at, MetricType: model.MetricNDVI, MetricValue: 0.6},
		{FieldID: "f", Timestamp: at, MetricType: model.MetricSoilMoisture, MetricValue: 22},
		{FieldID: "f", Timestamp: at.Add(-time.Hour), MetricType: model.MetricNDVI, MetricValue: 0.3},
	}

	snap := ReduceLatest("f", readings, at)
	if snap.Metrics["ndvi"] != 0.6 {
		t.Errorf("ndvi = %v, expected the newest value 0.6", snap.Metrics["ndvi"])
	}
	if snap.Metrics["soil_moisture"] != 22.0 {
		t.Errorf("soil_moisture = %v, expected 22", snap.Metrics["soil_moisture"])
	}
	if len(snap.Metrics) != 2 {
		t.Errorf("snapshot holds %d metrics, expected 2", len(snap.Metrics))
	}
}

func TestSnapshotFieldPublishesAlerts(t *testing.T) {
	ctx := context.Background()
	ts := memory.NewTimeSeriesStore()
	cache := memory.NewCacheStore()
	agg := NewAggregator(ts, cache, testLogger())

	at := time.Date(2024, 12, 1, 6, 0, 0, 0, time.UTC)
	readings := []model.SensorReading{
		{FieldID: "field_001_01", Timestamp: at, SensorID: "sensor_ndvi_field_001_01", MetricType: model.MetricNDVI, MetricValue: 0.42, QualityFlag: 1},
		{FieldID: "field_001_01", Timestamp: at, SensorID: "sensor_soil_moisture_field_001_01", MetricType: model.MetricSoilMoisture, MetricValue: 9.0, QualityFlag: 1},
	}
	if err := ts.InsertReadings(ctx, readings); err != nil {
		t.Fatalf("InsertReadings failed: %v", err)
	}

	snap, alerts, err := agg.SnapshotField(ctx, "field_001_01")
	if err != nil {
		t.Fatalf("SnapshotField failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, expected 2", len(alerts))
	}

	cached, err := cache.FieldMetrics(ctx, "field_001_01")
	if err != nil {
		t.Fatalf("FieldMetrics failed: %v", err)
	}
	if cached == nil {
		t.Fatal("snapshot missing from cache")
	}
	if cached.Metrics["ndvi"] != 0.42 || cached.Metrics["soil_moisture"] != 9.0 {
		t.Errorf("cached metrics = %v", cached.Metrics)
	}

	published, err := cache.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("cache holds %d alerts, expected 2", len(published))
	}
}

func TestSnapshotFieldSkipsEmptyField(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewCacheStore()
	agg := NewAggregator(memory.NewTimeSeriesStore(), cache, testLogger())

	snap, alerts, err := agg.SnapshotField(ctx, "field_999_01")
	if err != nil {
		t.Fatalf("SnapshotField failed: %v", err)
	}
	if snap != nil || alerts != nil {
		t.Errorf("expected no snapshot and no alerts, got %+v, %+v", snap, alerts)
	}
	if cache.AlertCount() != 0 {
		t.Errorf("cache holds %d alerts, expected 0", cache.AlertCount())
	}
}
