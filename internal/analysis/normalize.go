package analysis

import (
	"strings"

	"mcp-meal-analyzer/internal/models"
)

// ScaleToPortion converts a per-100 vector into a per-portion one. Missing
// calories are derived from macros; energy density is recomputed.
func ScaleToPortion(per100 models.Nutrients, portion float64) models.Nutrients {
	if portion <= 0 {
		return models.Nutrients{}
	}
	if per100.Calories <= 0 && per100.HasMacros() {
		per100.Calories = per100.MacroCalories()
	}
	return per100.Scale(portion / 100).Rounded().WithEnergyDensity(portion)
}

// SourceItem builds a trusted item from a resolved source record.
func SourceItem(c models.DetectedComponent, food *models.CanonicalFood, est PortionEstimate) models.AnalyzedItem {
	n := ScaleToPortion(food.Per100, est.Grams)
	unit := "g"
	if c.IsDrinkHint() || food.Category == models.CategoryDrink {
		unit = "ml"
	}
	return models.AnalyzedItem{
		DisplayName:  strings.TrimSpace(c.Name),
		BaseName:     strings.TrimSpace(c.Name),
		Preparation:  c.Preparation,
		Tags:         append([]string(nil), c.Tags...),
		Unit:         unit,
		PortionGrams: est.Grams,
		Nutrients:    n,
		Confidence:   c.ConfidenceOr(1),
		Provenance:   models.ProvenanceSource,
		Source: &models.SourceMatch{
			SourceID:     food.SourceID,
			SourceFoodID: food.SourceFoodID,
			Description:  food.DisplayName,
			MatchScore:   food.MatchConfidence,
			Suspicious:   food.Suspicious,
		},
		HasNutrition: !n.IsZero(),
	}
}
