package analysis

import (
	"strings"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// Augment folds hidden ingredients (cooking oil, dressing, added sugar,
// butter or cream) into an item based on its cooking hints. Each trigger is
// applied at most once per item, so augmenting twice changes nothing.
//
// Source-matched items are only inspected on preparation and tags because
// their name already describes the whole dish. Canonical beverages are never
// augmented.
func Augment(t *tables.Tables, item models.AnalyzedItem) models.AnalyzedItem {
	if item.Beverage != nil {
		return item
	}

	parts := make([]string, 0, len(item.Tags)+2)
	if item.Source == nil {
		parts = append(parts, item.BaseName)
	}
	parts = append(parts, item.Preparation)
	parts = append(parts, item.Tags...)
	text := tables.Normalize(strings.Join(parts, " "))
	if text == "" {
		return item
	}

	fired := make(map[string]bool, len(item.HiddenIngredients))
	for _, h := range item.HiddenIngredients {
		fired[h.Trigger] = true
	}

	out := item.Clone()
	added := false
	for _, r := range t.HiddenIngredients {
		if fired[r.Trigger] || !r.Matches(text) || suppressed(r, fired) {
			continue
		}
		fired[r.Trigger] = true
		out.Nutrients = out.Nutrients.Add(r.Nutrients)
		out.HiddenIngredients = append(out.HiddenIngredients, models.HiddenIngredient{
			Trigger:    r.Trigger,
			Name:       r.Ingredient,
			Grams:      r.Grams,
			Nutrients:  r.Nutrients,
			Confidence: r.Confidence,
		})
		added = true
	}
	if !added {
		return item
	}
	out.Nutrients = out.Nutrients.Rounded().WithEnergyDensity(out.PortionGrams)
	out.HasNutrition = true
	return out
}

func suppressed(r tables.HiddenRule, fired map[string]bool) bool {
	for _, u := range r.Unless {
		if fired[u] {
			return true
		}
	}
	return false
}
