package generator

import (
	"math"
	"math/rand"
	"time"

	"pasture-analytics/internal/model"
)

// Probability that any single reading carries a bad quality flag.
const sensorFaultProb = 0.05

// GenerateSensorData produces one reading per (day, hour, metric) for all
// eleven metrics, numDays*readingsPerDay*11 readings in total. Values follow
// the field's causal couplings: a seasonal plus diurnal temperature cycle,
// humidity inverse to temperature, soil moisture shaped by slope, drought
// stress, a downward trend, and stochastic rain pulses, with NDVI and grass
// height suppressed under low moisture.
//
// The caller owns rng. Reusing the same field, start date, and stream yields
// identical output, which is what makes re-ingestion idempotent at the value
// level.
func GenerateSensorData(rng *rand.Rand, field model.Field, start time.Time, numDays, readingsPerDay int) []model.SensorReading {
	readings := make([]model.SensorReading, 0, numDays*readingsPerDay*len(model.MetricTypes))

	slopeFactor := field.SlopeDegrees / 15.0 // 0-1 scale

	for day := 0; day < numDays; day++ {
		currentDate := start.AddDate(0, 0, day)

		for hour := 0; hour < readingsPerDay; hour++ {
			ts := currentDate.Add(time.Duration(hour) * time.Hour)

			// Temperature: seasonal sinusoid over a 30-day window plus a
			// diurnal sinusoid, trough around 06:00.
			baseTemp := 15 + 10*math.Sin((float64(day)/30)*math.Pi)
			hourlyTemp := baseTemp + 8*math.Sin((float64(hour)/24)*2*math.Pi-math.Pi/2)
			temperature := round1(hourlyTemp + rng.NormFloat64()*1.5)

			// Humidity: inverse to temperature.
			baseHumidity := 70 - (temperature-15)*1.5
			humidity := round1(clip(baseHumidity+rng.NormFloat64()*5, 30, 95))

			// Soil moisture: slopes drain faster, drought stress lowers the
			// baseline, and the window trends dry with occasional rain pulses.
			baseMoisture := 25 - slopeFactor*10
			if field.HasDroughtStress {
				baseMoisture -= 8
			}
			moistureTrend := baseMoisture - (float64(day)/float64(numDays))*10
			if rng.Float64() < 0.1 {
				moistureTrend += uniform(rng, 5, 15)
			}
			soilMoisture := round1(clip(moistureTrend+rng.NormFloat64()*2, 5, 45))

			// NDVI: coupled to slope, drought stress, and this hour's moisture.
			baseNDVI := 0.75 - slopeFactor*0.15
			if field.HasDroughtStress {
				baseNDVI -= 0.2
			}
			if soilMoisture < 15 {
				baseNDVI -= 0.1
			}
			ndvi := round2(clip(baseNDVI+rng.NormFloat64()*0.05, 0.2, 0.9))

			// Grass height: grows across the window, suppressed under stress.
			baseHeight := 8 + (float64(day)/float64(numDays))*8
			if field.HasDroughtStress || soilMoisture < 15 {
				baseHeight *= 0.7
			}
			grassHeight := round1(clip(baseHeight+rng.NormFloat64(), 4, 25))

			soilPH := round1(field.SoilPH + rng.NormFloat64()*0.1)

			nBase := 45.0
			if field.HasNutrientDeficiency {
				nBase = 25.0
			}
			soilNitrogen := round1(nBase + rng.NormFloat64()*5)
			soilPhosphorus := round1(25 + rng.NormFloat64()*3)
			soilPotassium := round1(150 + rng.NormFloat64()*10)

			// Solar radiation: half-sine daytime profile, zero at night.
			// Noise is deliberately not clipped at zero near dawn and dusk.
			var solarRadiation float64
			if hour >= 6 && hour <= 18 {
				solarRadiation = round1(800*math.Sin((float64(hour)-6)/12*math.Pi) + rng.NormFloat64()*50)
			}

			windSpeed := round1(clip(3+rng.ExpFloat64()*2, 0, 15))

			values := []float64{
				temperature,
				humidity,
				soilMoisture,
				ndvi,
				grassHeight,
				soilPH,
				soilNitrogen,
				soilPhosphorus,
				soilPotassium,
				solarRadiation,
				windSpeed,
			}

			for k, metric := range model.MetricTypes {
				quality := 1
				if rng.Float64() < sensorFaultProb {
					quality = 0
				}
				readings = append(readings, model.SensorReading{
					FieldID:     field.FieldID,
					Timestamp:   ts,
					SensorID:    model.SensorID(metric, field.FieldID),
					MetricType:  metric,
					MetricValue: values[k],
					QualityFlag: quality,
				})
			}
		}
	}

	return readings
}
