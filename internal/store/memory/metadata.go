// Package memory provides in-memory implementations of the four store
// contracts. They back hermetic tests and dry runs where no external backend
// is configured, and they keep the same observable semantics as the real
// implementations: full-collection replace, descending-time reads, TTL'd
// snapshots, capped alert streams, and merge-by-key graph upserts.
package memory

import (
	"context"
	"sync"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

// MetadataStore is an in-memory store.MetadataStore.
type MetadataStore struct {
	mu      sync.RWMutex
	farms   map[string]model.Farm
	fields  map[string]model.Field
	farmers map[string]model.Farmer
	events  map[string]model.TreatmentEvent
}

// NewMetadataStore returns an empty metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		farms:   make(map[string]model.Farm),
		fields:  make(map[string]model.Field),
		farmers: make(map[string]model.Farmer),
		events:  make(map[string]model.TreatmentEvent),
	}
}

// Init is a no-op; the zero store needs no schema.
func (s *MetadataStore) Init(ctx context.Context) error {
	return nil
}

// ReplaceTopology swaps the farms, fields, and farmer_profiles collections
// for the given contents.
func (s *MetadataStore) ReplaceTopology(ctx context.Context, farms []model.Farm, fields []model.Field, farmers []model.Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.farms = make(map[string]model.Farm, len(farms))
	for _, f := range farms {
		s.farms[f.FarmID] = f
	}
	s.fields = make(map[string]model.Field, len(fields))
	for _, f := range fields {
		s.fields[f.FieldID] = f
	}
	s.farmers = make(map[string]model.Farmer, len(farmers))
	for _, f := range farmers {
		s.farmers[f.FarmerID] = f
	}
	return nil
}

// ReplaceTreatmentEvents swaps the treatment_events collection.
func (s *MetadataStore) ReplaceTreatmentEvents(ctx context.Context, events []model.TreatmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string]model.TreatmentEvent, len(events))
	for _, e := range events {
		s.events[e.EventID] = e
	}
	return nil
}

// FieldExists reports whether a field id is present.
func (s *MetadataStore) FieldExists(ctx context.Context, fieldID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fields[fieldID]
	return ok, nil
}

// Counts returns per-collection row counts.
func (s *MetadataStore) Counts(ctx context.Context) (store.MetadataCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.MetadataCounts{
		Farms:           int64(len(s.farms)),
		Fields:          int64(len(s.fields)),
		Farmers:         int64(len(s.farmers)),
		TreatmentEvents: int64(len(s.events)),
	}, nil
}
