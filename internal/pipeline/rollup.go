package pipeline

import (
	"sort"

	"pasture-analytics/internal/model"
)

type rollupKey struct {
	fieldID string
	date    string
	hour    int
	metric  model.MetricType
}

// ComputeHourlyRollups aggregates readings into per-hour avg/min/max/count
// rows, one per (field, date, hour, metric). Bad-quality readings still count;
// rollups describe what the sensors reported, not what was plausible. Output
// order is deterministic regardless of input order.
func ComputeHourlyRollups(readings []model.SensorReading) []model.HourlyRollup {
	type acc struct {
		sum, min, max float64
		count         int
	}
	groups := make(map[rollupKey]*acc)

	for _, r := range readings {
		ts := r.Timestamp.UTC()
		key := rollupKey{
			fieldID: r.FieldID,
			date:    ts.Format("2006-01-02"),
			hour:    ts.Hour(),
			metric:  r.MetricType,
		}
		g, ok := groups[key]
		if !ok {
			groups[key] = &acc{sum: r.MetricValue, min: r.MetricValue, max: r.MetricValue, count: 1}
			continue
		}
		g.sum += r.MetricValue
		if r.MetricValue < g.min {
			g.min = r.MetricValue
		}
		if r.MetricValue > g.max {
			g.max = r.MetricValue
		}
		g.count++
	}

	rollups := make([]model.HourlyRollup, 0, len(groups))
	for key, g := range groups {
		rollups = append(rollups, model.HourlyRollup{
			FieldID:     key.fieldID,
			Date:        key.date,
			Hour:        key.hour,
			MetricType:  key.metric,
			AvgValue:    g.sum / float64(g.count),
			MinValue:    g.min,
			MaxValue:    g.max,
			SampleCount: g.count,
		})
	}

	sort.Slice(rollups, func(i, j int) bool {
		a, b := rollups[i], rollups[j]
		if a.FieldID != b.FieldID {
			return a.FieldID < b.FieldID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.MetricType < b.MetricType
	})
	return rollups
}
