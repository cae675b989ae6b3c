package generator

import (
	"fmt"
	"math/rand"
	"time"

	"pasture-analytics/internal/model"
)

var fertilizerTypes = []string{"NPK", "Urea", "Organic"}
var irrigationMethods = []string{"sprinkler", "drip", "flood"}

// GenerateTreatmentEvents produces fertilizer and irrigation events for each
// field: 0-2 fertilizer applications, and with 70% probability 1-3 irrigation
// runs, each dated uniformly inside the generation window. Event ids carry a
// running per-call counter, so they are unique within one generation call.
func GenerateTreatmentEvents(rng *rand.Rand, fields []model.Field, start time.Time, numDays int) []model.TreatmentEvent {
	var events []model.TreatmentEvent

	for _, field := range fields {
		numFertilizer := rng.Intn(3)
		for k := 0; k < numFertilizer; k++ {
			eventDate := start.AddDate(0, 0, rng.Intn(numDays))
			events = append(events, model.TreatmentEvent{
				EventID:   fmt.Sprintf("evt_%s_%d", field.FieldID, len(events)),
				FieldID:   field.FieldID,
				EventType: model.EventFertilizer,
				EventDate: eventDate,
				Details: model.TreatmentDetails{
					FertilizerType: fertilizerTypes[rng.Intn(len(fertilizerTypes))],
					NKgPerHa:       rng.Intn(51) + 30,
					PKgPerHa:       rng.Intn(26) + 15,
					KKgPerHa:       rng.Intn(26) + 15,
				},
			})
		}

		if rng.Float64() < 0.7 {
			numIrrigation := rng.Intn(3) + 1
			for k := 0; k < numIrrigation; k++ {
				eventDate := start.AddDate(0, 0, rng.Intn(numDays))
				events = append(events, model.TreatmentEvent{
					EventID:   fmt.Sprintf("evt_%s_%d", field.FieldID, len(events)),
					FieldID:   field.FieldID,
					EventType: model.EventIrrigation,
					EventDate: eventDate,
					Details: model.TreatmentDetails{
						AmountMM: rng.Intn(26) + 15,
						Method:   irrigationMethods[rng.Intn(len(irrigationMethods))],
					},
				})
			}
		}
	}

	return events
}
