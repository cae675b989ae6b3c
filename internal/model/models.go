package model

import (
	"time"
)

// SoilType classifies the dominant soil texture of a field.
type SoilType string

const (
	SoilLoam      SoilType = "loam"
	SoilClayLoam  SoilType = "clay_loam"
	SoilSandyLoam SoilType = "sandy_loam"
	SoilSiltLoam  SoilType = "silt_loam"
	SoilClay      SoilType = "clay"
)

// Aspect is the compass direction a field's slope faces.
type Aspect string

const (
	AspectNorth     Aspect = "north"
	AspectSouth     Aspect = "south"
	AspectEast      Aspect = "east"
	AspectWest      Aspect = "west"
	AspectNortheast Aspect = "northeast"
	AspectNorthwest Aspect = "northwest"
	AspectSoutheast Aspect = "southeast"
	AspectSouthwest Aspect = "southwest"
)

// MetricType identifies one of the sensor metrics tracked per field.
type MetricType string

const (
	MetricTemperature    MetricType = "temperature"     // Celsius
	MetricHumidity       MetricType = "humidity"        // percent
	MetricSoilMoisture   MetricType = "soil_moisture"   // percent
	MetricNDVI           MetricType = "ndvi"            // 0-1 vegetation index
	MetricGrassHeight    MetricType = "grass_height"    // cm
	MetricSoilPH         MetricType = "soil_ph"         // pH
	MetricSoilNitrogen   MetricType = "soil_nitrogen"   // ppm
	MetricSoilPhosphorus MetricType = "soil_phosphorus" // ppm
	MetricSoilPotassium  MetricType = "soil_potassium"  // ppm
	MetricSolarRadiation MetricType = "solar_radiation" // W/m2
	MetricWindSpeed      MetricType = "wind_speed"      // m/s
)

// MetricTypes lists all tracked metrics in generation order. The order is
// load-bearing: the telemetry synthesizer draws the per-metric quality flag
// from a single stream, so reordering would change generated output for a
// given seed.
var MetricTypes = []MetricType{
	MetricTemperature,
	MetricHumidity,
	MetricSoilMoisture,
	MetricNDVI,
	MetricGrassHeight,
	MetricSoilPH,
	MetricSoilNitrogen,
	MetricSoilPhosphorus,
	MetricSoilPotassium,
	MetricSolarRadiation,
	MetricWindSpeed,
}

// EventType classifies a treatment event.
type EventType string

const (
	EventFertilizer EventType = "fertilizer"
	EventIrrigation EventType = "irrigation"
)

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Farm represents a farm in the metadata store. Farms are created once at
// topology generation and immutable thereafter.
type Farm struct {
	FarmID            string  `gorm:"primaryKey;size:32" json:"farm_id"`
	Name              string  `gorm:"not null;size:255" json:"name"`
	Longitude         float64 `json:"longitude"`
	Latitude          float64 `json:"latitude"`
	TotalAreaHectares float64 `gorm:"type:decimal(10,2)" json:"total_area_hectares"`
	OwnerID           string  `gorm:"size:32;index" json:"owner_id"`
	EstablishedDate   string  `gorm:"size:16" json:"established_date"`
}

// TableName specifies the table name for Farm
func (Farm) TableName() string {
	return "farms"
}

// Field represents a bounded land parcel belonging to a farm, the unit of
// sensor and treatment tracking.
//
// HasDroughtStress and HasNutrientDeficiency are latent regime flags sampled
// once at topology time. They only bias generated readings and are never
// persisted or serialized as visible attributes.
type Field struct {
	FieldID      string      `gorm:"primaryKey;size:32" json:"field_id"`
	FarmID       string      `gorm:"not null;size:32;index" json:"farm_id"`
	Name         string      `gorm:"not null;size:255" json:"name"`
	CenterLon    float64     `json:"center_lon"`
	CenterLat    float64     `json:"center_lat"`
	Boundary     [][]float64 `gorm:"serializer:json" json:"boundary"`
	AreaHectares float64     `gorm:"type:decimal(10,2)" json:"area_hectares"`
	SoilType     SoilType    `gorm:"size:32" json:"soil_type"`
	SoilPH       float64     `gorm:"type:decimal(3,1)" json:"soil_ph"`
	SlopeDegrees float64     `gorm:"type:decimal(4,1)" json:"slope_degrees"`
	Aspect       Aspect      `gorm:"size:16" json:"aspect"`
	ElevationM   int         `json:"elevation_m"`
	Species      []string    `gorm:"serializer:json" json:"current_species"`

	HasDroughtStress      bool `gorm:"-" json:"-"`
	HasNutrientDeficiency bool `gorm:"-" json:"-"`
}

// TableName specifies the table name for Field
func (Field) TableName() string {
	return "fields"
}

// Farmer represents a farmer profile. Each farmer owns exactly one farm in
// generated topologies, but the Farms list keeps the ownership set explicit.
type Farmer struct {
	FarmerID        string   `gorm:"primaryKey;size:32" json:"farmer_id"`
	Name            string   `gorm:"not null;size:255" json:"name"`
	Email           string   `gorm:"uniqueIndex;size:255" json:"email"`
	Phone           string   `gorm:"size:32" json:"phone"`
	Farms           []string `gorm:"serializer:json" json:"farms"`
	AlertMethods    []string `gorm:"serializer:json" json:"alert_methods"`
	ReportFrequency string   `gorm:"size:16" json:"report_frequency"`
}

// TableName specifies the table name for Farmer
func (Farmer) TableName() string {
	return "farmer_profiles"
}

// SensorReading is one observed value for one (field, timestamp, metric)
// tuple. Readings are immutable once generated and expire per store-defined
// retention.
//
// QualityFlag models sensor faults (0 = bad). It must never be interpreted as
// signal by downstream consumers, only filtered or surfaced.
type SensorReading struct {
	FieldID     string     `json:"field_id"`
	Timestamp   time.Time  `json:"timestamp"`
	SensorID    string     `json:"sensor_id"`
	MetricType  MetricType `json:"metric_type"`
	MetricValue float64    `json:"metric_value"`
	QualityFlag int        `json:"quality_flag"`
}

// SensorID derives the deterministic sensor identifier for a metric on a
// field. The format is a cross-store contract: the same id names the Sensor
// node in the graph store and tags readings in the time-series store.
func SensorID(metric MetricType, fieldID string) string {
	return "sensor_" + string(metric) + "_" + fieldID
}

// TreatmentDetails is the type-specific payload of a treatment event. Only
// the fields matching the event's type are populated.
type TreatmentDetails struct {
	FertilizerType string `json:"fertilizer_type,omitempty"`
	NKgPerHa       int    `json:"n_kg_per_ha,omitempty"`
	PKgPerHa       int    `json:"p_kg_per_ha,omitempty"`
	KKgPerHa       int    `json:"k_kg_per_ha,omitempty"`

	AmountMM int    `json:"amount_mm,omitempty"`
	Method   string `json:"method,omitempty"`
}

// TreatmentEvent records a fertilizer or irrigation application on a field.
type TreatmentEvent struct {
	EventID   string           `gorm:"primaryKey;size:64" json:"event_id"`
	FieldID   string           `gorm:"not null;size:32;index" json:"field_id"`
	EventType EventType        `gorm:"size:16;index" json:"event_type"`
	EventDate time.Time        `gorm:"index" json:"event_date"`
	Details   TreatmentDetails `gorm:"serializer:json" json:"details"`
}

// TableName specifies the table name for TreatmentEvent
func (TreatmentEvent) TableName() string {
	return "treatment_events"
}

// FieldMetricsSnapshot is the derived latest-value-per-metric cache entry for
// a field. It is ephemeral, entirely rebuildable from the time-series store,
// and expires unless refreshed.
type FieldMetricsSnapshot struct {
	FieldID   string             `json:"field_id"`
	Metrics   map[string]float64 `json:"metrics"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Alert is a threshold violation appended to the shared alert stream.
type Alert struct {
	FieldID   string    `json:"field_id"`
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// AdvisoryRule is a static recommendation rule kept in the graph store. The
// condition and action are opaque text; this system stores and links them but
// never evaluates them.
type AdvisoryRule struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Conditions  string `json:"conditions"`
	Action      string `json:"action"`
}

// HourlyRollup is one hourly aggregate row for aggregated_metrics_by_field.
type HourlyRollup struct {
	FieldID     string     `json:"field_id"`
	Date        string     `json:"date"` // YYYY-MM-DD
	Hour        int        `json:"hour"`
	MetricType  MetricType `json:"metric_type"`
	AvgValue    float64    `json:"avg_value"`
	MinValue    float64    `json:"min_value"`
	MaxValue    float64    `json:"max_value"`
	SampleCount int        `json:"sample_count"`
}

// MaintenanceTask is a scheduled maintenance entry in the cache store's
// time-ordered schedule.
type MaintenanceTask struct {
	TaskID      string    `json:"task_id"`
	FieldID     string    `json:"field_id"`
	TaskType    string    `json:"task_type"`
	Details     string    `json:"details"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
