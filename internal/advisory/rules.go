// Package advisory holds the static agronomy rule catalog and loads it into
// the graph store. Rules are reference data: their condition and action text
// is stored and linked to crop species, never evaluated here.
package advisory

import (
	"context"
	"fmt"
	"log/slog"

	"pasture-analytics/internal/model"
	"pasture-analytics/internal/store"
)

// Rules returns the built-in rule catalog. The catalog is fixed; operators
// consume it through the graph, not through an authoring API.
func Rules() []model.AdvisoryRule {
	return []model.AdvisoryRule{
		{
			RuleID:      "adaptive_grazing",
			Description: "Reduce stocking rate when NDVI declines",
			Conditions:  "NDVI_trend_14d < -0.15 AND grass_height < 6cm",
			Action:      "Reduce stocking rate by 20% for 21 days",
			Priority:    9,
		},
		{
			RuleID:      "irrigation_needed",
			Description: "Apply irrigation when soil moisture low",
			Conditions:  "soil_moisture < 12% AND no_rain_forecast_3d",
			Action:      "Apply 25-30mm irrigation",
			Priority:    8,
		},
		{
			RuleID:      "lime_application",
			Description: "Apply lime for acidic soils",
			Conditions:  "soil_ph < 5.8",
			Action:      "Apply lime in fall, test rate based on pH",
			Priority:    6,
		},
		{
			RuleID:      "reseeding_steep_slopes",
			Description: "Reseed slopes with drought-tolerant species",
			Conditions:  "slope > 10 AND NDVI_loss_pattern",
			Action:      "Overseed with drought-tolerant cultivars",
			Priority:    7,
		},
		{
			RuleID:      "nitrogen_application",
			Description: "Apply nitrogen based on soil tests",
			Conditions:  "soil_nitrogen < 30ppm",
			Action:      "Split application: 40kg/ha now, 30kg/ha in 4 weeks",
			Priority:    7,
		},
	}
}

// SpeciesLinks maps crop species to the rules that apply to them.
func SpeciesLinks() map[string][]string {
	return map[string][]string{
		"perennial_ryegrass": {"adaptive_grazing", "nitrogen_application"},
		"white_clover":       {"lime_application"},
		"tall_fescue":        {"adaptive_grazing", "irrigation_needed"},
	}
}

// Registry loads the rule catalog into a graph store.
type Registry struct {
	graph  store.GraphStore
	logger *slog.Logger
}

func NewRegistry(graph store.GraphStore, logger *slog.Logger) *Registry {
	return &Registry{graph: graph, logger: logger}
}

// Load upserts every rule node and its APPLIES_TO species links. Loading is
// idempotent; re-running against a populated graph changes nothing. Rule
// upserts are required, individual species links are best effort because a
// species node may legitimately be absent from a small topology.
func (r *Registry) Load(ctx context.Context) error {
	rules := Rules()
	for _, rule := range rules {
		if err := r.graph.UpsertAdvisoryRule(ctx, rule); err != nil {
			return fmt.Errorf("advisory rule %s: %w", rule.RuleID, err)
		}
	}

	linked := 0
	for species, ruleIDs := range SpeciesLinks() {
		if err := r.graph.UpsertCropSpecies(ctx, species); err != nil {
			return fmt.Errorf("species node %s: %w", species, err)
		}
		for _, ruleID := range ruleIDs {
			if err := r.graph.LinkRuleAppliesToSpecies(ctx, ruleID, species); err != nil {
				r.logger.Warn("advisory link skipped",
					"rule_id", ruleID, "species", species, "error", err.Error())
				continue
			}
			linked++
		}
	}

	r.logger.Info("advisory catalog loaded", "rules", len(rules), "species_links", linked)
	return nil
}
