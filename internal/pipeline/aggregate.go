package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

// Alert thresholds applied to the latest-value snapshot.
const (
	NDVIWarnThreshold     = 0.5
	MoistureCritThreshold = 15.0

	// snapshotWindow is how many recent readings the aggregator scans to
	// find the latest value of each metric. With 11 metrics per tick, 50
	// rows always span at least the most recent four ticks.
	snapshotWindow = 50
)

// Aggregator derives per-field latest-value snapshots from the time-series
// store and publishes threshold alerts to the cache store.
type Aggregator struct {
	ts     store.TimeSeriesStore
	cache  store.CacheStore
	logger *slog.Logger
	now    func() time.Time
}

func NewAggregator(ts store.TimeSeriesStore, cache store.CacheStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{ts: ts, cache: cache, logger: logger, now: time.Now}
}

// SetClock overrides the snapshot timestamp source. Test hook.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// SnapshotField reads the field's most recent readings, reduces them to one
// latest value per metric, writes the snapshot to the cache, and publishes an
// alert per breached threshold. Alerts are published on every evaluation that
// finds a breach; there is no de-duplication against earlier runs. A field
// with no readings yields (nil, nil, nil) and touches nothing.
func (a *Aggregator) SnapshotField(ctx context.Context, fieldID string) (*model.FieldMetricsSnapshot, []model.Alert, error) {
	readings, err := a.ts.RecentReadings(ctx, fieldID, snapshotWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("recent readings for %s: %w", fieldID, err)
	}
	if len(readings) == 0 {
		return nil, nil, nil
	}

	snap := ReduceLatest(fieldID, readings, a.now().UTC())
	if err := a.cache.UpdateFieldMetrics(ctx, snap.FieldID, snap.Metrics, snap.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update field metrics for %s: %w", fieldID, err)
	}

	alerts := EvaluateThresholds(snap)
	for _, alert := range alerts {
		if err := a.cache.PublishAlert(ctx, alert); err != nil {
			return nil, nil, fmt.Errorf("publish alert for %s: %w", fieldID, err)
		}
		a.logger.Info("alert published",
			"field_id", alert.FieldID, "type", alert.Type,
			"severity", string(alert.Severity), "value", alert.Value)
	}
	return &snap, alerts, nil
}

// ReduceLatest collapses a recent-first reading window into one value per
// metric. Readings arrive ordered newest first, so the first occurrence of a
// metric wins and later duplicates are ignored.
func ReduceLatest(fieldID string, readings []model.SensorReading, at time.Time) model.FieldMetricsSnapshot {
	snap := model.FieldMetricsSnapshot{
		FieldID:   fieldID,
		Metrics:   make(map[string]float64, len(model.MetricTypes)),
		UpdatedAt: at,
	}
	for _, r := range readings {
		key := string(r.MetricType)
		if _, seen := snap.Metrics[key]; seen {
			continue
		}
		snap.Metrics[key] = r.MetricValue
	}
	return snap
}

// EvaluateThresholds returns the alerts a snapshot triggers. A metric absent
// from the snapshot triggers nothing.
func EvaluateThresholds(snap model.FieldMetricsSnapshot) []model.Alert {
	var alerts []model.Alert
	if ndvi, ok := snap.Metrics[string(model.MetricNDVI)]; ok && ndvi < NDVIWarnThreshold {
		alerts = append(alerts, model.Alert{
			FieldID:   snap.FieldID,
			Type:      "low_ndvi",
			Severity:  model.SeverityWarning,
			Value:     ndvi,
			Threshold: NDVIWarnThreshold,
			Timestamp: snap.UpdatedAt,
		})
	}
	if moisture, ok := snap.Metrics[string(model.MetricSoilMoisture)]; ok && moisture < MoistureCritThreshold {
		alerts = append(alerts, model.Alert{
			FieldID:   snap.FieldID,
			Type:      "low_soil_moisture",
			Severity:  model.SeverityCritical,
			Value:     moisture,
			Threshold: MoistureCritThreshold,
			Timestamp: snap.UpdatedAt,
		})
	}
	return alerts
}
