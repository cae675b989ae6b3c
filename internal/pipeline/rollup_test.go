package pipeline

import (
	"math"
	"testing"
	"time"

	"pasture-analytics/internal/model"
)

func TestComputeHourlyRollups(t *testing.T) {
	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

	readings := []model.SensorReading{
		{FieldID: "f1", Timestamp: base, MetricType: model.MetricTemperature, MetricValue: 20},
		{FieldID: "f1", Timestamp: base.Add(20 * time.Minute), MetricType: model.MetricTemperature, MetricValue: 22},
		{FieldID: "f1", Timestamp: base.Add(40 * time.Minute), MetricType: model.MetricTemperature, MetricValue: 18},
		// Next hour, same metric.
		{FieldID: "f1", Timestamp: base.Add(time.Hour), MetricType: model.MetricTemperature, MetricValue: 25},
		// Same hour, different metric.
		{FieldID: "f1", Timestamp: base, MetricType: model.MetricHumidity, MetricValue: 60},
		// Different field.
		{FieldID: "f2", Timestamp: base, MetricType: model.MetricTemperature, MetricValue: 30},
	}

	rollups := ComputeHourlyRollups(readings)
	if len(rollups) != 4 {
		t.Fatalf("got %d rollups, expected 4", len(rollups))
	}

	// Deterministic order: field, date, hour, metric.
	first := rollups[0]
	if first.FieldID != "f1" || first.Hour != 10 || first.MetricType != model.MetricHumidity {
		t.Errorf("unexpected first rollup: %+v", first)
	}

	var temp10 *model.HourlyRollup
	for i := range rollups {
		r := &rollups[i]
		if r.FieldID == "f1" && r.Hour == 10 && r.MetricType == model.MetricTemperature {
			temp10 = r
		}
	}
	if temp10 == nil {
		t.Fatal("missing f1 hour-10 temperature rollup")
	}
	if temp10.SampleCount != 3 {
		t.Errorf("sample count = %d, expected 3", temp10.SampleCount)
	}
	if math.Abs(temp10.AvgValue-20.0) > 1e-9 {
		t.Errorf("avg = %v, expected 20", temp10.AvgValue)
	}
	if temp10.MinValue != 18 || temp10.MaxValue != 22 {
		t.Errorf("min/max = %v/%v, expected 18/22", temp10.MinValue, temp10.MaxValue)
	}
	if temp10.Date != "2024-12-01" {
		t.Errorf("date = %q, expected 2024-12-01", temp10.Date)
	}
}

func TestComputeHourlyRollupsOrderIndependent(t *testing.T) {
	base := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	readings := []model.SensorReading{
		{FieldID: "f1", Timestamp: base.Add(3 * time.Hour), MetricType: model.MetricWindSpeed, MetricValue: 4},
		{FieldID: "f2", Timestamp: base, MetricType: model.MetricTemperature, MetricValue: 12},
		{FieldID: "f1", Timestamp: base, MetricType: model.MetricTemperature, MetricValue: 10},
	}
	reversed := []model.SensorReading{readings[2], readings[1], readings[0]}

	a := ComputeHourlyRollups(readings)
	b := ComputeHourlyRollups(reversed)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("rollup %d differs across input orders: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestComputeHourlyRollupsEmpty(t *testing.T) {
	if got := ComputeHourlyRollups(nil); len(got) != 0 {
		t.Errorf("expected no rollups, got %d", len(got))
	}
}
