package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"pasture-analytics/internal/generator"
	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store/memory"
)

var ingestStart = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

type testStores struct {
	meta  *memory.MetadataStore
	ts    *memory.TimeSeriesStore
	cache *memory.CacheStore
	graph *memory.GraphStore
}

func newTestStores() testStores {
	return testStores{
		meta:  memory.NewMetadataStore(),
		ts:    memory.NewTimeSeriesStore(),
		cache: memory.NewCacheStore(),
		graph: memory.NewGraphStore(),
	}
}

func newTestOrchestrator(s testStores) *Orchestrator {
	return NewOrchestrator(s.meta, s.ts, s.cache, s.graph, testLogger(), Config{
		NumDays:        5,
		ReadingsPerDay: 4,
		BatchSize:      100,
		Workers:        4,
		MaxRetries:     1,
	})
}

func TestRunRejectsEmptyTopology(t *testing.T) {
	o := newTestOrchestrator(newTestStores())

	if _, err := o.Run(context.Background(), nil, ingestStart); err == nil {
		t.Error("Run(nil topology) expected error, got nil")
	}
	if _, err := o.Run(context.Background(), &generator.Topology{}, ingestStart); err == nil {
		t.Error("Run(empty topology) expected error, got nil")
	}
}

func TestRunFullIngestion(t *testing.T) {
	topo, err := generator.NewTopology(generator.Config{NumFarms: 2, Seed: 42})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}
	s := newTestStores()
	o := newTestOrchestrator(s)

	summary, err := o.Run(context.Background(), topo, ingestStart)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.FailedFields) != 0 {
		t.Fatalf("unexpected failed fields: %v", summary.FailedFields)
	}

	if summary.Metadata.Farms != int64(len(topo.Farms)) {
		t.Errorf("metadata farms = %d, expected %d", summary.Metadata.Farms, len(topo.Farms))
	}
	if summary.Metadata.Fields != int64(len(topo.Fields)) {
		t.Errorf("metadata fields = %d, expected %d", summary.Metadata.Fields, len(topo.Fields))
	}
	if summary.Metadata.Farmers != int64(len(topo.Farmers)) {
		t.Errorf("metadata farmers = %d, expected %d", summary.Metadata.Farmers, len(topo.Farmers))
	}

	events := generator.GenerateTreatmentEvents(generator.Stream(topo.Seed, "treatment_events"), topo.Fields, ingestStart, 5)
	if summary.Metadata.TreatmentEvents != int64(len(events)) {
		t.Errorf("metadata events = %d, expected %d", summary.Metadata.TreatmentEvents, len(events))
	}

	perField := 5 * 4 * len(model.MetricTypes)
	if want := perField * len(topo.Fields); summary.ReadingsWritten != want {
		t.Errorf("readings written = %d, expected %d", summary.ReadingsWritten, want)
	}
	for _, field := range topo.Fields {
		if got := s.ts.ReadingCount(field.FieldID); got != perField {
			t.Errorf("field %s: %d readings stored, expected %d", field.FieldID, got, perField)
		}
		if s.ts.RollupCount(field.FieldID) == 0 {
			t.Errorf("field %s: no rollups stored", field.FieldID)
		}
	}

	if summary.Graph.Farms != int64(len(topo.Farms)) {
		t.Errorf("graph farms = %d, expected %d", summary.Graph.Farms, len(topo.Farms))
	}
	if summary.Graph.Fields != int64(len(topo.Fields)) {
		t.Errorf("graph fields = %d, expected %d", summary.Graph.Fields, len(topo.Fields))
	}
	if want := int64(len(topo.Fields) * len(model.MetricTypes)); summary.Graph.Sensors != want {
		t.Errorf("graph sensors = %d, expected %d", summary.Graph.Sensors, want)
	}
	if summary.Graph.Rules != 5 {
		t.Errorf("graph rules = %d, expected 5", summary.Graph.Rules)
	}

	if summary.Snapshots != len(topo.Fields) {
		t.Errorf("snapshots = %d, expected %d", summary.Snapshots, len(topo.Fields))
	}
	for _, field := range topo.Fields {
		snap, err := s.cache.FieldMetrics(context.Background(), field.FieldID)
		if err != nil {
			t.Fatalf("FieldMetrics failed: %v", err)
		}
		if snap == nil {
			t.Errorf("field %s: no cached snapshot", field.FieldID)
			continue
		}
		if len(snap.Metrics) != len(model.MetricTypes) {
			t.Errorf("field %s: snapshot has %d metrics, expected %d",
				field.FieldID, len(snap.Metrics), len(model.MetricTypes))
		}
	}
}

// Re-running the same seed must converge to identical store contents, not
// accumulate duplicates.
func TestRunIdempotent(t *testing.T) {
	topo, err := generator.NewTopology(generator.Config{NumFarms: 2, Seed: 42})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}
	s := newTestStores()
	o := newTestOrchestrator(s)
	ctx := context.Background()

	first, err := o.Run(ctx, topo, ingestStart)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	relsAfterFirst := s.graph.RelationshipCount()

	second, err := o.Run(ctx, topo, ingestStart)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.Metadata != second.Metadata {
		t.Errorf("metadata counts diverged: %+v vs %+v", first.Metadata, second.Metadata)
	}
	if first.Graph != second.Graph {
		t.Errorf("graph counts diverged: %+v vs %+v", first.Graph, second.Graph)
	}
	if got := s.graph.RelationshipCount(); got != relsAfterFirst {
		t.Errorf("relationships grew across runs: %d vs %d", got, relsAfterFirst)
	}

	perField := 5 * 4 * len(model.MetricTypes)
	for _, field := range topo.Fields {
		if got := s.ts.ReadingCount(field.FieldID); got != perField {
			t.Errorf("field %s: %d readings after re-run, expected %d", field.FieldID, got, perField)
		}
	}
}

func TestRunIsolatesFieldFailures(t *testing.T) {
	topo, err := generator.NewTopology(generator.Config{NumFarms: 2, Seed: 42})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}
	s := newTestStores()
	broken := topo.Fields[0].FieldID
	s.ts.FailFields = map[string]error{broken: errors.New("partition unavailable")}

	o := newTestOrchestrator(s)
	summary, err := o.Run(context.Background(), topo, ingestStart)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.FailedFields) != 1 || summary.FailedFields[0] != broken {
		t.Fatalf("failed fields = %v, expected [%s]", summary.FailedFields, broken)
	}

	if got := s.ts.ReadingCount(broken); got != 0 {
		t.Errorf("broken field has %d readings, expected 0", got)
	}
	snap, err := s.cache.FieldMetrics(context.Background(), broken)
	if err != nil {
		t.Fatalf("FieldMetrics failed: %v", err)
	}
	if snap != nil {
		t.Error("broken field has a snapshot, expected none")
	}

	perField := 5 * 4 * len(model.MetricTypes)
	for _, field := range topo.Fields[1:] {
		if got := s.ts.ReadingCount(field.FieldID); got != perField {
			t.Errorf("healthy field %s: %d readings, expected %d", field.FieldID, got, perField)
		}
	}
	if summary.Snapshots != len(topo.Fields)-1 {
		t.Errorf("snapshots = %d, expected %d", summary.Snapshots, len(topo.Fields)-1)
	}
}
