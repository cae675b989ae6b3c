package generator

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestNewTopologyRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		numFarms int
	}{
		{name: "zero farms", numFarms: 0},
		{name: "negative farms", numFarms: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTopology(Config{NumFarms: tt.numFarms, Seed: 42})
			if err == nil {
				t.Fatalf("NewTopology(NumFarms=%d) expected error, got nil", tt.numFarms)
			}
		})
	}
}

func TestNewTopologyDeterministic(t *testing.T) {
	cfg := Config{NumFarms: 5, Seed: 42}

	first, err := NewTopology(cfg)
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}
	second, err := NewTopology(cfg)
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("two topologies from the same seed differ")
	}

	other, err := NewTopology(Config{NumFarms: 5, Seed: 43})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}
	if reflect.DeepEqual(first.Fields, other.Fields) {
		t.Error("different seeds produced identical fields")
	}
}

func TestNewTopologyStructure(t *testing.T) {
	topo, err := NewTopology(Config{NumFarms: 5, Seed: 42})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}

	if len(topo.Farms) != 5 {
		t.Errorf("expected 5 farms, got %d", len(topo.Farms))
	}
	if len(topo.Farmers) != 5 {
		t.Errorf("expected 5 farmers, got %d", len(topo.Farmers))
	}

	for i, farm := range topo.Farms {
		expectedID := fmt.Sprintf("farm_%03d", i+1)
		if farm.FarmID != expectedID {
			t.Errorf("farm %d: id = %q, expected %q", i, farm.FarmID, expectedID)
		}
		if farm.OwnerID != fmt.Sprintf("farmer_%03d", i+1) {
			t.Errorf("farm %s: owner = %q", farm.FarmID, farm.OwnerID)
		}
		if farm.EstablishedDate != "2010-01-01" {
			t.Errorf("farm %s: established = %q", farm.FarmID, farm.EstablishedDate)
		}

		fields := topo.FieldsByFarm(farm.FarmID)
		if len(fields) < 3 || len(fields) > 5 {
			t.Errorf("farm %s: %d fields, expected 3-5", farm.FarmID, len(fields))
		}

		var total float64
		for j, field := range fields {
			expectedFieldID := fmt.Sprintf("field_%03d_%02d", i+1, j+1)
			if field.FieldID != expectedFieldID {
				t.Errorf("field id = %q, expected %q", field.FieldID, expectedFieldID)
			}
			total += field.AreaHectares
		}
		if got := math.Round(total*10) / 10; got != farm.TotalAreaHectares {
			t.Errorf("farm %s: total area = %v, sum of fields = %v", farm.FarmID, farm.TotalAreaHectares, got)
		}
	}

	for i, farmer := range topo.Farmers {
		if !strings.HasSuffix(farmer.Email, "@email.com") {
			t.Errorf("farmer %d: email = %q", i, farmer.Email)
		}
		if len(farmer.Farms) != 1 {
			t.Errorf("farmer %s: owns %d farms, expected 1", farmer.FarmerID, len(farmer.Farms))
		}
	}
}

func TestFieldAttributeRanges(t *testing.T) {
	topo, err := NewTopology(Config{NumFarms: 10, Seed: 7})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}

	for _, field := range topo.Fields {
		if field.AreaHectares < 15.0 || field.AreaHectares > 40.0 {
			t.Errorf("field %s: area %v out of [15, 40]", field.FieldID, field.AreaHectares)
		}
		if field.SoilPH < 5.5 || field.SoilPH > 7.5 {
			t.Errorf("field %s: pH %v out of [5.5, 7.5]", field.FieldID, field.SoilPH)
		}
		if field.SlopeDegrees < 0 || field.SlopeDegrees > 15 {
			t.Errorf("field %s: slope %v out of [0, 15]", field.FieldID, field.SlopeDegrees)
		}
		if field.ElevationM < 50 || field.ElevationM > 300 {
			t.Errorf("field %s: elevation %d out of [50, 300]", field.FieldID, field.ElevationM)
		}
		if len(field.Species) == 0 {
			t.Errorf("field %s: no species mix", field.FieldID)
		}
	}
}

func TestBoundaryPolygon(t *testing.T) {
	lon, lat, area := -122.4194, 37.7749, 25.0
	ring := BoundaryPolygon(lon, lat, area)

	if len(ring) != 5 {
		t.Fatalf("expected a 5-point ring, got %d points", len(ring))
	}
	if !reflect.DeepEqual(ring[0], ring[4]) {
		t.Errorf("ring is not closed: first %v, last %v", ring[0], ring[4])
	}

	side := math.Sqrt(area/10000) * 0.01
	gotSide := ring[1][0] - ring[0][0]
	if math.Abs(gotSide-side) > 1e-12 {
		t.Errorf("side length = %v, expected %v", gotSide, side)
	}

	// The ring is centered on the field center.
	if got := (ring[0][0] + ring[1][0]) / 2; math.Abs(got-lon) > 1e-12 {
		t.Errorf("ring center lon = %v, expected %v", got, lon)
	}
	if got := (ring[0][1] + ring[2][1]) / 2; math.Abs(got-lat) > 1e-12 {
		t.Errorf("ring center lat = %v, expected %v", got, lat)
	}
}

func TestGeneratedBoundariesAreClosedRings(t *testing.T) {
	topo, err := NewTopology(Config{NumFarms: 5, Seed: 42})
	if err != nil {
		t.Fatalf("NewTopology failed: %v", err)
	}

	for _, field := range topo.Fields {
		if len(field.Boundary) != 5 {
			t.Errorf("field %s: boundary has %d points", field.FieldID, len(field.Boundary))
			continue
		}
		if !reflect.DeepEqual(field.Boundary[0], field.Boundary[4]) {
			t.Errorf("field %s: boundary ring not closed", field.FieldID)
		}
	}
}

func TestFieldStreamIsKeyedByFieldID(t *testing.T) {
	a1 := FieldStream(42, "field_001_01")
	a2 := FieldStream(42, "field_001_01")
	b := FieldStream(42, "field_001_02")

	sameAsA2 := true
	sameAsB := true
	for i := 0; i < 16; i++ {
		v := a1.Float64()
		if v != a2.Float64() {
			sameAsA2 = false
		}
		if v != b.Float64() {
			sameAsB = false
		}
	}
	if !sameAsA2 {
		t.Error("same seed and field id produced different streams")
	}
	if sameAsB {
		t.Error("different field ids produced identical streams")
	}
}

func TestNamedStreamIndependentOfFieldStreams(t *testing.T) {
	named := Stream(42, "treatment_events")
	field := FieldStream(42, "field_001_01")

	identical := true
	for i := 0; i < 16; i++ {
		if named.Float64() != field.Float64() {
			identical = false
			break
		}
	}
	if identical {
		t.Error("named stream collides with a field stream")
	}
}
