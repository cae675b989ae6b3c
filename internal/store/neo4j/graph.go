// Package neo4j implements the graph store contract. Every upsert is a
// Cypher MERGE on the node's natural key, so re-running ingestion converges
// to the same node and relationship counts.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

var constraintStatements = []string{
	"CREATE CONSTRAINT farm_id IF NOT EXISTS FOR (f:Farm) REQUIRE f.farm_id IS UNIQUE",
	"CREATE CONSTRAINT field_id IF NOT EXISTS FOR (f:Field) REQUIRE f.field_id IS UNIQUE",
	"CREATE CONSTRAINT farmer_id IF NOT EXISTS FOR (f:Farmer) REQUIRE f.farmer_id IS UNIQUE",
	"CREATE CONSTRAINT sensor_id IF NOT EXISTS FOR (s:Sensor) REQUIRE s.sensor_id IS UNIQUE",
	"CREATE CONSTRAINT species_name IF NOT EXISTS FOR (s:CropSpecies) REQUIRE s.name IS UNIQUE",
	"CREATE CONSTRAINT rule_id IF NOT EXISTS FOR (r:AdvisoryRule) REQUIRE r.rule_id IS UNIQUE",
}

// GraphStore implements store.GraphStore.
type GraphStore struct {
	driver neo4j.DriverWithContext
}

// Open connects to the graph database.
func Open(uri, user, password string) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graph store: %w", err)
	}
	return &GraphStore{driver: driver}, nil
}

// Close tears down the driver.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *GraphStore) run(ctx context.Context, cypher string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx, cypher, params)
	return err
}

// InitSchema creates uniqueness constraints. IF NOT EXISTS makes repeat runs
// a no-op rather than an error.
func (s *GraphStore) InitSchema(ctx context.Context) error {
	for _, stmt := range constraintStatements {
		if err := s.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply graph constraint: %w", err)
		}
	}
	return nil
}

func (s *GraphStore) UpsertFarmer(ctx context.Context, farmer model.Farmer) error {
	return s.run(ctx, `
		MERGE (f:Farmer {farmer_id: $farmer_id})
		SET f.name = $name, f.email = $email`,
		map[string]any{"farmer_id": farmer.FarmerID, "name": farmer.Name, "email": farmer.Email})
}

func (s *GraphStore) UpsertFarm(ctx context.Context, farm model.Farm) error {
	return s.run(ctx, `
		MERGE (f:Farm {farm_id: $farm_id})
		SET f.name = $name, f.longitude = $longitude, f.latitude = $latitude,
		    f.area_hectares = $area_hectares`,
		map[string]any{
			"farm_id":       farm.FarmID,
			"name":          farm.Name,
			"longitude":     farm.Longitude,
			"latitude":      farm.Latitude,
			"area_hectares": farm.TotalAreaHectares,
		})
}

func (s *GraphStore) UpsertField(ctx context.Context, field model.Field) error {
	return s.run(ctx, `
		MERGE (f:Field {field_id: $field_id})
		SET f.name = $name, f.area_hectares = $area_hectares,
		    f.soil_type = $soil_type, f.slope_degrees = $slope_degrees`,
		map[string]any{
			"field_id":      field.FieldID,
			"name":          field.Name,
			"area_hectares": field.AreaHectares,
			"soil_type":     string(field.SoilType),
			"slope_degrees": field.SlopeDegrees,
		})
}

func (s *GraphStore) UpsertSensor(ctx context.Context, sensorID, sensorType string) error {
	return s.run(ctx, `
		MERGE (s:Sensor {sensor_id: $sensor_id})
		SET s.type = $type`,
		map[string]any{"sensor_id": sensorID, "type": sensorType})
}

func (s *GraphStore) UpsertCropSpecies(ctx context.Context, name string) error {
	return s.run(ctx, `MERGE (s:CropSpecies {name: $name})`, map[string]any{"name": name})
}

func (s *GraphStore) UpsertAdvisoryRule(ctx context.Context, rule model.AdvisoryRule) error {
	return s.run(ctx, `
		MERGE (r:AdvisoryRule {rule_id: $rule_id})
		SET r.description = $description, r.priority = $priority,
		    r.conditions = $conditions, r.action = $action`,
		map[string]any{
			"rule_id":     rule.RuleID,
			"description": rule.Description,
			"priority":    rule.Priority,
			"conditions":  rule.Conditions,
			"action":      rule.Action,
		})
}

func (s *GraphStore) LinkOwns(ctx context.Context, farmerID, farmID string) error {
	return s.run(ctx, `
		MATCH (farmer:Farmer {farmer_id: $farmer_id})
		MATCH (farm:Farm {farm_id: $farm_id})
		MERGE (farmer)-[:OWNS]->(farm)`,
		map[string]any{"farmer_id": farmerID, "farm_id": farmID})
}

func (s *GraphStore) LinkContains(ctx context.Context, farmID, fieldID string) error {
	return s.run(ctx, `
		MATCH (farm:Farm {farm_id: $farm_id})
		MATCH (field:Field {field_id: $field_id})
		MERGE (farm)-[:CONTAINS]->(field)`,
		map[string]any{"farm_id": farmID, "field_id": fieldID})
}

func (s *GraphStore) LinkHasSensor(ctx context.Context, fieldID, sensorID string) error {
	return s.run(ctx, `
		MATCH (field:Field {field_id: $field_id})
		MATCH (sensor:Sensor {sensor_id: $sensor_id})
		MERGE (field)-[:HAS_SENSOR]->(sensor)`,
		map[string]any{"field_id": fieldID, "sensor_id": sensorID})
}

func (s *GraphStore) LinkHasSpecies(ctx context.Context, fieldID, species string) error {
	return s.run(ctx, `
		MATCH (field:Field {field_id: $field_id})
		MATCH (species:CropSpecies {name: $name})
		MERGE (field)-[:HAS_SPECIES]->(species)`,
		map[string]any{"field_id": fieldID, "name": species})
}

// LinkReceivedTreatment merges the Treatment node and its relationship in
// one statement; the treatment's natural key is its deterministic event id.
func (s *GraphStore) LinkReceivedTreatment(ctx context.Context, event model.TreatmentEvent) error {
	return s.run(ctx, `
		MATCH (field:Field {field_id: $field_id})
		MERGE (t:Treatment {event_id: $event_id})
		SET t.type = $type, t.date = $date
		MERGE (field)-[:RECEIVED_TREATMENT]->(t)`,
		map[string]any{
			"field_id": event.FieldID,
			"event_id": event.EventID,
			"type":     string(event.EventType),
			"date":     event.EventDate.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
}

func (s *GraphStore) LinkRuleAppliesToSpecies(ctx context.Context, ruleID, species string) error {
	return s.run(ctx, `
		MATCH (rule:AdvisoryRule {rule_id: $rule_id})
		MATCH (species:CropSpecies {name: $name})
		MERGE (rule)-[:APPLIES_TO]->(species)`,
		map[string]any{"rule_id": ruleID, "name": species})
}

func (s *GraphStore) LinkRuleAppliesToField(ctx context.Context, ruleID, fieldID string) error {
	return s.run(ctx, `
		MATCH (rule:AdvisoryRule {rule_id: $rule_id})
		MATCH (field:Field {field_id: $field_id})
		MERGE (rule)-[:APPLIES_TO]->(field)`,
		map[string]any{"rule_id": ruleID, "field_id": fieldID})
}

// FieldsByFarmer traverses farmer -> farms -> fields.
func (s *GraphStore) FieldsByFarmer(ctx context.Context, farmerID string) ([]store.FieldRef, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (farmer:Farmer {farmer_id: $farmer_id})-[:OWNS]->(:Farm)-[:CONTAINS]->(field:Field)
		RETURN field.field_id AS field_id, field.name AS name`,
		map[string]any{"farmer_id": farmerID})
	if err != nil {
		return nil, fmt.Errorf("failed to traverse fields for %s: %w", farmerID, err)
	}

	var out []store.FieldRef
	for result.Next(ctx) {
		record := result.Record()
		fieldID, _ := record.Get("field_id")
		name, _ := record.Get("name")
		out = append(out, store.FieldRef{
			FieldID: asString(fieldID),
			Name:    asString(name),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fields for %s: %w", farmerID, err)
	}
	return out, nil
}

// NodeCounts returns node counts per label.
func (s *GraphStore) NodeCounts(ctx context.Context) (store.GraphCounts, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	var counts store.GraphCounts
	result, err := session.Run(ctx, `
		RETURN count { MATCH (n:Farmer) } AS farmers,
		       count { MATCH (n:Farm) } AS farms,
		       count { MATCH (n:Field) } AS fields,
		       count { MATCH (n:Sensor) } AS sensors,
		       count { MATCH (n:CropSpecies) } AS species,
		       count { MATCH (n:AdvisoryRule) } AS rules`, nil)
	if err != nil {
		return counts, fmt.Errorf("failed to count graph nodes: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return counts, fmt.Errorf("failed to read graph counts: %w", err)
	}

	counts.Farmers = asInt64(record.AsMap()["farmers"])
	counts.Farms = asInt64(record.AsMap()["farms"])
	counts.Fields = asInt64(record.AsMap()["fields"])
	counts.Sensors = asInt64(record.AsMap()["sensors"])
	counts.Species = asInt64(record.AsMap()["species"])
	counts.Rules = asInt64(record.AsMap()["rules"])
	return counts, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}
