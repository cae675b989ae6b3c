// Package store defines the capability contracts for the four persistence
// backends the pipeline replicates into. The contracts deliberately describe
// capabilities (bulk replace, batched append, merge-by-key upsert, TTL'd
// projections) rather than concrete products; implementations live in
// subpackages. There is no shared transaction boundary across stores: callers
// sequence idempotent, independently retriable steps instead.
package store

import (
	"context"
	"time"

	"pasture-analytics/internal/model"
)

// Reference constants shared between implementations. They are part of the
// external contract and surfaced through configuration where callers need to
// override them.
const (
	ReadingsTTL    = 90 * 24 * time.Hour  // sensor_data_by_field retention
	RollupsTTL     = 365 * 24 * time.Hour // aggregated_metrics_by_field retention
	SnapshotTTL    = 7 * 24 * time.Hour   // field:{id} hash expiry
	AlertStreamCap = 10000                // approximate alert stream trim length
)

// MetadataCounts reports row counts per metadata collection, used by run
// summaries and idempotence checks.
type MetadataCounts struct {
	Farms           int64 `json:"farms"`
	Fields          int64 `json:"fields"`
	Farmers         int64 `json:"farmers"`
	TreatmentEvents int64 `json:"treatment_events"`
}

// MetadataStore is the document/metadata backend holding the farms, fields,
// farmer_profiles, and treatment_events collections. Topology writes use
// full-collection replace semantics (delete-all-then-insert-all), not per-id
// diffing, so a re-run converges to identical contents.
type MetadataStore interface {
	// Init creates collections, unique natural-key indexes, and geospatial
	// indexes. Calling it against an existing schema is a no-op.
	Init(ctx context.Context) error

	ReplaceTopology(ctx context.Context, farms []model.Farm, fields []model.Field, farmers []model.Farmer) error
	ReplaceTreatmentEvents(ctx context.Context, events []model.TreatmentEvent) error

	FieldExists(ctx context.Context, fieldID string) (bool, error)
	Counts(ctx context.Context) (MetadataCounts, error)
}

// TimeSeriesStore is the write-optimized backend for sensor readings and
// hourly rollups. Readings are clustered by (timestamp desc, sensor id asc)
// within a field partition, with bounded retention.
type TimeSeriesStore interface {
	// Init creates the keyspace/tables. Idempotent.
	Init(ctx context.Context) error

	// InsertReadings appends one batch. Callers bound batch size; batches for
	// different fields are safe to write concurrently.
	InsertReadings(ctx context.Context, readings []model.SensorReading) error

	// RecentReadings returns up to limit readings for a field ordered by
	// descending timestamp.
	RecentReadings(ctx context.Context, fieldID string, limit int) ([]model.SensorReading, error)

	InsertRollups(ctx context.Context, rollups []model.HourlyRollup) error
}

// CacheStore is the cache/stream backend: per-field latest-metric snapshots
// with TTL, the shared capped alert stream, the time-ordered maintenance
// schedule, and a namespace for TTL'd query results.
type CacheStore interface {
	UpdateFieldMetrics(ctx context.Context, fieldID string, metrics map[string]float64, at time.Time) error
	// FieldMetrics returns nil when no snapshot exists or it has expired.
	FieldMetrics(ctx context.Context, fieldID string) (*model.FieldMetricsSnapshot, error)

	// PublishAlert appends to the shared alert stream, trimming it to
	// approximately AlertStreamCap entries.
	PublishAlert(ctx context.Context, alert model.Alert) error
	RecentAlerts(ctx context.Context, count int) ([]model.Alert, error)
	// AlertsForField scans the recent stream window and filters by field.
	// Linear scan-and-filter is a deliberate trade of simplicity over a
	// per-field index.
	AlertsForField(ctx context.Context, fieldID string, count int) ([]model.Alert, error)

	ScheduleMaintenance(ctx context.Context, task model.MaintenanceTask) error
	UpcomingMaintenance(ctx context.Context, from, to time.Time) ([]model.MaintenanceTask, error)
	CompleteMaintenance(ctx context.Context, taskID string) (bool, error)

	CacheQueryResult(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// CachedQueryResult reports ok=false on a miss.
	CachedQueryResult(ctx context.Context, key string) (payload []byte, ok bool, err error)
}

// GraphCounts reports node counts per label, used by idempotence checks.
type GraphCounts struct {
	Farmers int64 `json:"farmers"`
	Farms   int64 `json:"farms"`
	Fields  int64 `json:"fields"`
	Sensors int64 `json:"sensors"`
	Species int64 `json:"species"`
	Rules   int64 `json:"rules"`
}

// FieldRef is a minimal field reference returned by graph traversals.
type FieldRef struct {
	FieldID string `json:"field_id"`
	Name    string `json:"name"`
}

// GraphStore is the relationship backend. All upserts are merge-by-natural-key
// and safe to re-run; linking an already-linked pair is success, never an
// error. Relationship upserts require both endpoint nodes to exist, so callers
// must sequence node upserts before relationship upserts.
type GraphStore interface {
	// InitSchema creates natural-key uniqueness constraints per node label.
	// Existing constraints are treated as success.
	InitSchema(ctx context.Context) error

	UpsertFarmer(ctx context.Context, farmer model.Farmer) error
	UpsertFarm(ctx context.Context, farm model.Farm) error
	UpsertField(ctx context.Context, field model.Field) error
	UpsertSensor(ctx context.Context, sensorID, sensorType string) error
	UpsertCropSpecies(ctx context.Context, name string) error
	UpsertAdvisoryRule(ctx context.Context, rule model.AdvisoryRule) error

	LinkOwns(ctx context.Context, farmerID, farmID string) error
	LinkContains(ctx context.Context, farmID, fieldID string) error
	LinkHasSensor(ctx context.Context, fieldID, sensorID string) error
	LinkHasSpecies(ctx context.Context, fieldID, species string) error
	LinkReceivedTreatment(ctx context.Context, event model.TreatmentEvent) error
	LinkRuleAppliesToSpecies(ctx context.Context, ruleID, species string) error
	LinkRuleAppliesToField(ctx context.Context, ruleID, fieldID string) error

	// FieldsByFarmer traverses farmer -> farms -> fields.
	FieldsByFarmer(ctx context.Context, farmerID string) ([]FieldRef, error)
	NodeCounts(ctx context.Context) (GraphCounts, error)
}
