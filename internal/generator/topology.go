// Package generator produces deterministic synthetic pasture data: farm
// topology, correlated multi-metric sensor telemetry, and treatment events.
// All randomness derives from explicitly owned seeded streams so that two
// runs with the same seed generate byte-identical output.
package generator

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"pasture-analytics/internal/model"
)

// Base coordinates to scatter farms around (California).
var baseLocations = [][2]float64{
	{-122.4194, 37.7749}, // San Francisco area
	{-121.8907, 37.3382}, // San Jose area
	{-122.0308, 37.3541}, // Sunnyvale area
	{-122.2711, 37.8044}, // Berkeley area
	{-121.7680, 37.6819}, // Livermore area
}

var soilTypes = []model.SoilType{
	model.SoilLoam,
	model.SoilClayLoam,
	model.SoilSandyLoam,
	model.SoilSiltLoam,
	model.SoilClay,
}

var aspects = []model.Aspect{
	model.AspectNorth,
	model.AspectSouth,
	model.AspectEast,
	model.AspectWest,
	model.AspectNortheast,
	model.AspectNorthwest,
	model.AspectSoutheast,
	model.AspectSouthwest,
}

var speciesMixes = [][]string{
	{"perennial_ryegrass", "white_clover"},
	{"tall_fescue", "red_clover"},
	{"orchardgrass", "alfalfa"},
	{"kentucky_bluegrass", "white_clover"},
	{"timothy", "meadow_fescue"},
}

var farmerNames = []string{"Robert Johnson", "Mary Williams", "James Brown", "Patricia Davis", "Michael Miller"}
var farmNames = []string{"Green Valley Farm", "Sunset Meadows", "Rolling Hills Ranch", "Oak Ridge Farm", "Pleasant View Pastures"}

const establishedDate = "2010-01-01"

// Field-level sampling probabilities for the latent regime flags.
const (
	droughtStressProb      = 0.2
	nutrientDeficiencyProb = 0.15
)

// Config controls topology generation.
type Config struct {
	NumFarms int
	Seed     int64
}

// Topology is a deterministic set of farms, fields, and farmers. It is the
// shared input for telemetry synthesis, event synthesis, and ingestion.
type Topology struct {
	Seed    int64
	Farms   []model.Farm
	Fields  []model.Field
	Farmers []model.Farmer
}

// NewTopology builds the farm structure from a single seeded stream. The draw
// order is fixed; changing it breaks reproducibility for existing seeds.
func NewTopology(cfg Config) (*Topology, error) {
	if cfg.NumFarms <= 0 {
		return nil, fmt.Errorf("invalid topology config: num_farms must be positive, got %d", cfg.NumFarms)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	topo := &Topology{Seed: cfg.Seed}

	for i := 0; i < cfg.NumFarms; i++ {
		farmerID := fmt.Sprintf("farmer_%03d", i+1)
		farmID := fmt.Sprintf("farm_%03d", i+1)

		topo.Farmers = append(topo.Farmers, model.Farmer{
			FarmerID:        farmerID,
			Name:            farmerNames[i%len(farmerNames)],
			Email:           farmerID + "@email.com",
			Phone:           fmt.Sprintf("+1-555-%04d", i+1),
			Farms:           []string{farmID},
			AlertMethods:    []string{"email"},
			ReportFrequency: "weekly",
		})

		numFields := rng.Intn(3) + 3 // 3-5 fields per farm
		location := baseLocations[i%len(baseLocations)]

		farm := model.Farm{
			FarmID:          farmID,
			Name:            farmNames[i%len(farmNames)],
			Longitude:       location[0],
			Latitude:        location[1],
			OwnerID:         farmerID,
			EstablishedDate: establishedDate,
		}

		for j := 0; j < numFields; j++ {
			fieldID := fmt.Sprintf("field_%03d_%02d", i+1, j+1)

			offsetLon := uniform(rng, -0.02, 0.02)
			offsetLat := uniform(rng, -0.01, 0.01)
			centerLon := location[0] + offsetLon
			centerLat := location[1] + offsetLat

			area := round1(uniform(rng, 15.0, 40.0))

			field := model.Field{
				FieldID:      fieldID,
				FarmID:       farmID,
				Name:         fmt.Sprintf("Pasture %c", 'A'+j),
				CenterLon:    centerLon,
				CenterLat:    centerLat,
				Boundary:     BoundaryPolygon(centerLon, centerLat, area),
				AreaHectares: area,
				SoilType:     soilTypes[rng.Intn(len(soilTypes))],
				SoilPH:       round1(uniform(rng, 5.5, 7.5)),
				SlopeDegrees: round1(uniform(rng, 0, 15)),
				Aspect:       aspects[rng.Intn(len(aspects))],
				Species:      speciesMixes[rng.Intn(len(speciesMixes))],
				ElevationM:   rng.Intn(251) + 50,

				HasDroughtStress:      rng.Float64() < droughtStressProb,
				HasNutrientDeficiency: rng.Float64() < nutrientDeficiencyProb,
			}

			farm.TotalAreaHectares += field.AreaHectares
			topo.Fields = append(topo.Fields, field)
		}

		farm.TotalAreaHectares = round1(farm.TotalAreaHectares)
		topo.Farms = append(topo.Farms, farm)
	}

	return topo, nil
}

// FieldsByFarm returns the fields belonging to one farm, in generation order.
func (t *Topology) FieldsByFarm(farmID string) []model.Field {
	var out []model.Field
	for _, f := range t.Fields {
		if f.FarmID == farmID {
			out = append(out, f)
		}
	}
	return out
}

// BoundaryPolygon approximates a field boundary as an axis-aligned square
// centered on (lon, lat), returned as a closed 5-point ring (last == first).
// The side length formula sqrt(area/10000)*0.01 degrees is an intentionally
// crude geodesic approximation and must be preserved exactly for
// reproducibility.
func BoundaryPolygon(lon, lat, areaHectares float64) [][]float64 {
	side := math.Sqrt(areaHectares/10000) * 0.01
	half := side / 2

	return [][]float64{
		{lon - half, lat + half},
		{lon + half, lat + half},
		{lon + half, lat - half},
		{lon - half, lat - half},
		{lon - half, lat + half},
	}
}

// FieldStream derives the independent per-field random stream used for
// telemetry synthesis. Keying the sub-stream by field id keeps parallel
// generation deterministic and order-independent across fields.
func FieldStream(seed int64, fieldID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(fieldID))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

// Stream derives a named auxiliary stream (e.g. for treatment events) from
// the topology seed, independent of every per-field stream.
func Stream(seed int64, name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
