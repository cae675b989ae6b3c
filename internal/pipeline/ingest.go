// Package pipeline coordinates a full ingestion run: it fans the generated
// topology, treatment events, and sensor readings out to the four stores,
// derives the latest-value cache, and publishes threshold alerts.
//
// There is no cross-store transaction. A run is a sequence of idempotent,
// independently retriable steps: replacing a metadata collection, merging a
// graph node, appending a reading batch. A partial failure leaves the system
// re-runnable, not corrupted, and a re-run with the same seed converges to
// identical counts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"pasture-analytics/internal/advisory"
	"pasture-analytics/internal/generator"
	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

// Reference defaults. All of them are part of the pipeline's external
// contract and overridable through Config.
const (
	DefaultBatchSize      = 100
	DefaultWorkers        = 4
	DefaultMaxRetries     = 3
	DefaultNumDays        = 30
	DefaultReadingsPerDay = 6
)

// Config controls one ingestion run.
type Config struct {
	NumDays        int
	ReadingsPerDay int
	BatchSize      int
	Workers        int
	MaxRetries     uint64
}

func (c Config) withDefaults() Config {
	if c.NumDays <= 0 {
		c.NumDays = DefaultNumDays
	}
	if c.ReadingsPerDay <= 0 {
		c.ReadingsPerDay = DefaultReadingsPerDay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// RunSummary reports what one ingestion run wrote and which fields partially
// failed. Completed work is never discarded by later per-field failures.
type RunSummary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Metadata store.MetadataCounts `json:"metadata"`
	Graph    store.GraphCounts    `json:"graph"`

	ReadingsWritten int `json:"readings_written"`
	RollupsWritten  int `json:"rollups_written"`
	Snapshots       int `json:"snapshots"`
	AlertsPublished int `json:"alerts_published"`

	FailedFields []string `json:"failed_fields,omitempty"`
}

// Orchestrator runs the ingestion saga over the four stores.
type Orchestrator struct {
	meta  store.MetadataStore
	ts    store.TimeSeriesStore
	cache store.CacheStore
	graph store.GraphStore

	aggregator *Aggregator
	rules      *advisory.Registry
	logger     *slog.Logger
	cfg        Config
}

// NewOrchestrator wires an orchestrator over the four store contracts.
func NewOrchestrator(meta store.MetadataStore, ts store.TimeSeriesStore, cache store.CacheStore, graph store.GraphStore, logger *slog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		meta:       meta,
		ts:         ts,
		cache:      cache,
		graph:      graph,
		aggregator: NewAggregator(ts, cache, logger),
		rules:      advisory.NewRegistry(graph, logger),
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// Run executes a full ingestion for one generated topology. The readings
// window ends at start + NumDays. Whole-topology steps (schema init, metadata
// replace, farmer/farm graph upserts) fail the run; field-scoped steps only
// mark that field failed and the run continues.
func (o *Orchestrator) Run(ctx context.Context, topo *generator.Topology, start time.Time) (*RunSummary, error) {
	if topo == nil || len(topo.Farms) == 0 {
		return nil, fmt.Errorf("nothing to ingest: empty topology")
	}

	summary := &RunSummary{StartedAt: time.Now().UTC()}
	failed := newFailureSet()

	if err := o.initSchemas(ctx); err != nil {
		return nil, err
	}

	if err := o.ingestTopology(ctx, topo, failed); err != nil {
		return nil, err
	}

	if err := o.ingestTreatmentEvents(ctx, topo, start, failed); err != nil {
		return nil, err
	}

	if err := o.withRetry(ctx, func() error { return o.rules.Load(ctx) }); err != nil {
		return nil, fmt.Errorf("advisory catalog load: %w", err)
	}

	o.ingestReadings(ctx, topo, start, summary, failed)
	o.aggregate(ctx, topo, summary, failed)

	if counts, err := o.meta.Counts(ctx); err == nil {
		summary.Metadata = counts
	} else {
		o.logger.Warn("metadata counts unavailable", "error", err.Error())
	}
	if counts, err := o.graph.NodeCounts(ctx); err == nil {
		summary.Graph = counts
	} else {
		o.logger.Warn("graph counts unavailable", "error", err.Error())
	}

	summary.FailedFields = failed.ids()
	summary.FinishedAt = time.Now().UTC()

	o.logger.Info("ingestion run complete",
		"farms", summary.Metadata.Farms,
		"fields", summary.Metadata.Fields,
		"readings", summary.ReadingsWritten,
		"rollups", summary.RollupsWritten,
		"snapshots", summary.Snapshots,
		"alerts", summary.AlertsPublished,
		"failed_fields", len(summary.FailedFields),
		"elapsed", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return summary, nil
}

func (o *Orchestrator) initSchemas(ctx context.Context) error {
	if err := o.withRetry(ctx, func() error { return o.meta.Init(ctx) }); err != nil {
		return fmt.Errorf("metadata schema init: %w", err)
	}
	if err := o.withRetry(ctx, func() error { return o.ts.Init(ctx) }); err != nil {
		return fmt.Errorf("time-series schema init: %w", err)
	}
	if err := o.withRetry(ctx, func() error { return o.graph.InitSchema(ctx) }); err != nil {
		return fmt.Errorf("graph schema init: %w", err)
	}
	return nil
}

// ingestTopology performs the bulk metadata replace and the graph upserts.
// All node upserts complete before any relationship upsert so relationships
// never reference a missing endpoint.
func (o *Orchestrator) ingestTopology(ctx context.Context, topo *generator.Topology, failed *failureSet) error {
	err := o.withRetry(ctx, func() error {
		return o.meta.ReplaceTopology(ctx, topo.Farms, topo.Fields, topo.Farmers)
	})
	if err != nil {
		return fmt.Errorf("metadata topology replace: %w", err)
	}
	o.logger.Info("metadata topology replaced",
		"farms", len(topo.Farms), "fields", len(topo.Fields), "farmers", len(topo.Farmers))

	for _, farmer := range topo.Farmers {
		f := farmer
		if err := o.withRetry(ctx, func() error { return o.graph.UpsertFarmer(ctx, f) }); err != nil {
			return fmt.Errorf("graph farmer upsert %s: %w", farmer.FarmerID, err)
		}
	}
	for _, farm := range topo.Farms {
		f := farm
		if err := o.withRetry(ctx, func() error { return o.graph.UpsertFarm(ctx, f) }); err != nil {
			return fmt.Errorf("graph farm upsert %s: %w", farm.FarmID, err)
		}
	}

	for _, field := range topo.Fields {
		if err := o.upsertFieldNodes(ctx, field); err != nil {
			failed.record(field.FieldID, err)
			o.logger.Warn("field graph upsert failed", "field_id", field.FieldID, "error", err.Error())
		}
	}

	for _, farmer := range topo.Farmers {
		for _, farmID := range farmer.Farms {
			farmerID, id := farmer.FarmerID, farmID
			if err := o.withRetry(ctx, func() error { return o.graph.LinkOwns(ctx, farmerID, id) }); err != nil {
				return fmt.Errorf("graph OWNS link %s->%s: %w", farmerID, id, err)
			}
		}
	}
	for _, field := range topo.Fields {
		if failed.contains(field.FieldID) {
			continue
		}
		if err := o.linkFieldRelationships(ctx, field); err != nil {
			failed.record(field.FieldID, err)
			o.logger.Warn("field graph linking failed", "field_id", field.FieldID, "error", err.Error())
		}
	}
	return nil
}

func (o *Orchestrator) upsertFieldNodes(ctx context.Context, field model.Field) error {
	if err := o.withRetry(ctx, func() error { return o.graph.UpsertField(ctx, field) }); err != nil {
		return fmt.Errorf("field node: %w", err)
	}
	for _, metric := range model.MetricTypes {
		sensorID := model.SensorID(metric, field.FieldID)
		m := metric
		if err := o.withRetry(ctx, func() error { return o.graph.UpsertSensor(ctx, sensorID, string(m)) }); err != nil {
			return fmt.Errorf("sensor node %s: %w", sensorID, err)
		}
	}
	for _, species := range field.Species {
		sp := species
		if err := o.withRetry(ctx, func() error { return o.graph.UpsertCropSpecies(ctx, sp) }); err != nil {
			return fmt.Errorf("species node %s: %w", sp, err)
		}
	}
	return nil
}

func (o *Orchestrator) linkFieldRelationships(ctx context.Context, field model.Field) error {
	if err := o.withRetry(ctx, func() error { return o.graph.LinkContains(ctx, field.FarmID, field.FieldID) }); err != nil {
		return fmt.Errorf("CONTAINS link: %w", err)
	}
	for _, metric := range model.MetricTypes {
		sensorID := model.SensorID(metric, field.FieldID)
		if err := o.withRetry(ctx, func() error { return o.graph.LinkHasSensor(ctx, field.FieldID, sensorID) }); err != nil {
			return fmt.Errorf("HAS_SENSOR link %s: %w", sensorID, err)
		}
	}
	for _, species := range field.Species {
		sp := species
		if err := o.withRetry(ctx, func() error { return o.graph.LinkHasSpecies(ctx, field.FieldID, sp) }); err != nil {
			return fmt.Errorf("HAS_SPECIES link %s: %w", sp, err)
		}
	}
	return nil
}

func (o *Orchestrator) ingestTreatmentEvents(ctx context.Context, topo *generator.Topology, start time.Time, failed *failureSet) error {
	rng := generator.Stream(topo.Seed, "treatment_events")
	events := generator.GenerateTreatmentEvents(rng, topo.Fields, start, o.cfg.NumDays)

	err := o.withRetry(ctx, func() error { return o.meta.ReplaceTreatmentEvents(ctx, events) })
	if err != nil {
		return fmt.Errorf("metadata treatment events replace: %w", err)
	}

	for _, event := range events {
		e := event
		if err := o.withRetry(ctx, func() error { return o.graph.LinkReceivedTreatment(ctx, e) }); err != nil {
			failed.record(event.FieldID, err)
			o.logger.Warn("treatment graph link failed",
				"field_id", event.FieldID, "event_id", event.EventID, "error", err.Error())
		}
	}

	o.logger.Info("treatment events ingested", "events", len(events))
	return nil
}

// ingestReadings generates and writes each field's readings with bounded
// parallelism. Fields are independent; one field's failure never aborts the
// others.
func (o *Orchestrator) ingestReadings(ctx context.Context, topo *generator.Topology, start time.Time, summary *RunSummary, failed *failureSet) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for _, field := range topo.Fields {
		field := field
		g.Go(func() error {
			rng := generator.FieldStream(topo.Seed, field.FieldID)
			readings := generator.GenerateSensorData(rng, field, start, o.cfg.NumDays, o.cfg.ReadingsPerDay)

			if err := o.writeReadingBatches(gctx, readings); err != nil {
				failed.record(field.FieldID, err)
				o.logger.Warn("field readings ingestion failed",
					"field_id", field.FieldID, "error", err.Error())
				return nil
			}

			rollups := ComputeHourlyRollups(readings)
			if err := o.withRetry(gctx, func() error { return o.ts.InsertRollups(gctx, rollups) }); err != nil {
				failed.record(field.FieldID, err)
				o.logger.Warn("field rollup ingestion failed",
					"field_id", field.FieldID, "error", err.Error())
				return nil
			}

			mu.Lock()
			summary.ReadingsWritten += len(readings)
			summary.RollupsWritten += len(rollups)
			mu.Unlock()
			return nil
		})
	}
	// Workers report failures through failed and always return nil.
	_ = g.Wait()
}

func (o *Orchestrator) writeReadingBatches(ctx context.Context, readings []model.SensorReading) error {
	for begin := 0; begin < len(readings); begin += o.cfg.BatchSize {
		end := begin + o.cfg.BatchSize
		if end > len(readings) {
			end = len(readings)
		}
		batch := readings[begin:end]
		if err := o.withRetry(ctx, func() error { return o.ts.InsertReadings(ctx, batch) }); err != nil {
			return fmt.Errorf("batch at offset %d: %w", begin, err)
		}
	}
	return nil
}

// aggregate refreshes each field's latest-value snapshot and publishes
// threshold alerts. Runs only after every field's readings are settled.
func (o *Orchestrator) aggregate(ctx context.Context, topo *generator.Topology, summary *RunSummary, failed *failureSet) {
	for _, field := range topo.Fields {
		if failed.contains(field.FieldID) {
			continue
		}
		snap, alerts, err := o.aggregator.SnapshotField(ctx, field.FieldID)
		if err != nil {
			failed.record(field.FieldID, err)
			o.logger.Warn("field aggregation failed", "field_id", field.FieldID, "error", err.Error())
			continue
		}
		if snap != nil {
			summary.Snapshots++
			summary.AlertsPublished += len(alerts)
		}
	}
}

func (o *Orchestrator) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), o.cfg.MaxRetries), ctx)
	return backoff.Retry(op, bo)
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return bo
}

// failureSet collects the ids of fields whose ingestion partially failed.
type failureSet struct {
	mu     sync.Mutex
	fields map[string]error
}

func newFailureSet() *failureSet {
	return &failureSet{fields: make(map[string]error)}
}

func (f *failureSet) record(fieldID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fields[fieldID]; !ok {
		f.fields[fieldID] = err
	}
}

func (f *failureSet) contains(fieldID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fields[fieldID]
	return ok
}

func (f *failureSet) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.fields))
	for id := range f.fields {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
