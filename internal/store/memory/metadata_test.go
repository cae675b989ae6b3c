package memory

import (
	"context"
	"testing"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

func TestReplaceTopologyIsFullReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore()

	first := []model.Field{{FieldID: "field_001_01", FarmID: "farm_001"}, {FieldID: "field_001_02", FarmID: "farm_001"}}
	if err := s.ReplaceTopology(ctx, []model.Farm{{FarmID: "farm_001"}}, first, []model.Farmer{{FarmerID: "farmer_001"}}); err != nil {
		t.Fatalf("ReplaceTopology failed: %v", err)
	}

	// A second replace with different contents must not leave residue.
	second := []model.Field{{FieldID: "field_002_01", FarmID: "farm_002"}}
	if err := s.ReplaceTopology(ctx, []model.Farm{{FarmID: "farm_002"}}, second, []model.Farmer{{FarmerID: "farmer_002"}}); err != nil {
		t.Fatalf("ReplaceTopology failed: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	want := store.MetadataCounts{Farms: 1, Fields: 1, Farmers: 1}
	if counts != want {
		t.Errorf("counts = %+v, expected %+v", counts, want)
	}

	exists, err := s.FieldExists(ctx, "field_001_01")
	if err != nil {
		t.Fatalf("FieldExists failed: %v", err)
	}
	if exists {
		t.Error("field from previous topology survived replace")
	}
	exists, _ = s.FieldExists(ctx, "field_002_01")
	if !exists {
		t.Error("field from current topology missing")
	}
}

func TestReplaceTreatmentEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore()

	events := []model.TreatmentEvent{
		{EventID: "evt_field_001_01_0", FieldID: "field_001_01", EventType: model.EventFertilizer},
		{EventID: "evt_field_001_01_1", FieldID: "field_001_01", EventType: model.EventIrrigation},
	}
	if err := s.ReplaceTreatmentEvents(ctx, events); err != nil {
		t.Fatalf("ReplaceTreatmentEvents failed: %v", err)
	}
	if err := s.ReplaceTreatmentEvents(ctx, events[:1]); err != nil {
		t.Fatalf("ReplaceTreatmentEvents failed: %v", err)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.TreatmentEvents != 1 {
		t.Errorf("events = %d, expected 1 after second replace", counts.TreatmentEvents)
	}
}
