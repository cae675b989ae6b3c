package memory

import (
	"context"
	"sync"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

type relationship struct {
	kind string
	from string
	to   string
}

// GraphStore is an in-memory store.GraphStore. Nodes are keyed by natural
// key per label; relationships are merge-by-endpoints, so re-linking an
// existing pair is a no-op, matching the real store's MERGE semantics.
type GraphStore struct {
	mu      sync.RWMutex
	farmers map[string]model.Farmer
	farms   map[string]model.Farm
	fields  map[string]model.Field
	sensors map[string]string
	species map[string]struct{}
	rules   map[string]model.AdvisoryRule
	rels    map[relationship]struct{}
}

// NewGraphStore returns an empty graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		farmers: make(map[string]model.Farmer),
		farms:   make(map[string]model.Farm),
		fields:  make(map[string]model.Field),
		sensors: make(map[string]string),
		species: make(map[string]struct{}),
		rules:   make(map[string]model.AdvisoryRule),
		rels:    make(map[relationship]struct{}),
	}
}

// InitSchema is a no-op; natural-key uniqueness is inherent to the maps.
func (s *GraphStore) InitSchema(ctx context.Context) error {
	return nil
}

func (s *GraphStore) UpsertFarmer(ctx context.Context, farmer model.Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farmers[farmer.FarmerID] = farmer
	return nil
}

func (s *GraphStore) UpsertFarm(ctx context.Context, farm model.Farm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.farms[farm.FarmID] = farm
	return nil
}

func (s *GraphStore) UpsertField(ctx context.Context, field model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[field.FieldID] = field
	return nil
}

func (s *GraphStore) UpsertSensor(ctx context.Context, sensorID, sensorType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors[sensorID] = sensorType
	return nil
}

func (s *GraphStore) UpsertCropSpecies(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.species[name] = struct{}{}
	return nil
}

func (s *GraphStore) UpsertAdvisoryRule(ctx context.Context, rule model.AdvisoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.RuleID] = rule
	return nil
}

func (s *GraphStore) link(kind, from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rels[relationship{kind: kind, from: from, to: to}] = struct{}{}
}

func (s *GraphStore) LinkOwns(ctx context.Context, farmerID, farmID string) error {
	s.link("OWNS", farmerID, farmID)
	return nil
}

func (s *GraphStore) LinkContains(ctx context.Context, farmID, fieldID string) error {
	s.link("CONTAINS", farmID, fieldID)
	return nil
}

func (s *GraphStore) LinkHasSensor(ctx context.Context, fieldID, sensorID string) error {
	s.link("HAS_SENSOR", fieldID, sensorID)
	return nil
}

func (s *GraphStore) LinkHasSpecies(ctx context.Context, fieldID, species string) error {
	s.link("HAS_SPECIES", fieldID, species)
	return nil
}

func (s *GraphStore) LinkReceivedTreatment(ctx context.Context, event model.TreatmentEvent) error {
	s.link("RECEIVED_TREATMENT", event.FieldID, event.EventID)
	return nil
}

func (s *GraphStore) LinkRuleAppliesToSpecies(ctx context.Context, ruleID, species string) error {
	s.link("APPLIES_TO", ruleID, species)
	return nil
}

func (s *GraphStore) LinkRuleAppliesToField(ctx context.Context, ruleID, fieldID string) error {
	s.link("APPLIES_TO", ruleID, fieldID)
	return nil
}

// FieldsByFarmer traverses OWNS then CONTAINS relationships.
func (s *GraphStore) FieldsByFarmer(ctx context.Context, farmerID string) ([]store.FieldRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.FieldRef
	for rel := range s.rels {
		if rel.kind != "OWNS" || rel.from != farmerID {
			continue
		}
		farmID := rel.to
		for inner := range s.rels {
			if inner.kind != "CONTAINS" || inner.from != farmID {
				continue
			}
			if field, ok := s.fields[inner.to]; ok {
				out = append(out, store.FieldRef{FieldID: field.FieldID, Name: field.Name})
			}
		}
	}
	return out, nil
}

// NodeCounts returns node counts per label.
func (s *GraphStore) NodeCounts(ctx context.Context) (store.GraphCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.GraphCounts{
		Farmers: int64(len(s.farmers)),
		Farms:   int64(len(s.farms)),
		Fields:  int64(len(s.fields)),
		Sensors: int64(len(s.sensors)),
		Species: int64(len(s.species)),
		Rules:   int64(len(s.rules)),
	}, nil
}

// RelationshipCount reports the number of distinct relationships. Test hook.
func (s *GraphStore) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rels)
}

// HasRule reports whether a rule node exists. Test hook.
func (s *GraphStore) HasRule(ruleID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rules[ruleID]
	return ok
}
