package analysis

import "mcp-meal-analyzer/internal/models"

// Aggregate sums items into meal totals. Energy density is derived from the
// summed calories and portion, never from per-item densities.
func Aggregate(items []models.AnalyzedItem) models.MealTotals {
	var (
		sum     models.Nutrients
		portion float64
	)
	for _, it := range items {
		sum = sum.Add(it.Nutrients)
		portion += it.PortionGrams
	}
	portion = models.Round1(portion)
	return models.MealTotals{
		Nutrients:    sum.Rounded().WithEnergyDensity(portion),
		PortionGrams: portion,
		ItemCount:    len(items),
	}
}
