package analysis

import (
	"fmt"
	"math"

	"mcp-meal-analyzer/internal/models"
)

// Sanity issue types.
const (
	SanityPortionOutOfRange     = "portion_out_of_range"
	SanityCaloriesPerGram       = "calories_per_gram_out_of_range"
	SanityMacroCalorieMismatch  = "macro_calorie_mismatch"
	SanityMealCaloriesPerGram   = "meal_calories_per_gram_out_of_range"
	SanitySuspiciousSourceMatch = "suspicious_source_match"
)

const (
	sanityMinPortion          = 5.0
	sanityMaxPortion          = 800.0
	sanityMinKcalPerGram      = 0.1
	sanityMaxKcalPerGram      = 7.0
	sanityMacroToleranceKcal  = 50.0
	sanityMacroToleranceShare = 0.25
)

// CheckSanity runs the final per-item and per-meal checks.
func CheckSanity(items []models.AnalyzedItem, totals models.MealTotals) []models.SanityIssue {
	issues := []models.SanityIssue{}
	for _, it := range items {
		if it.PortionGrams < sanityMinPortion || it.PortionGrams > sanityMaxPortion {
			issues = append(issues, models.SanityIssue{
				Type:     SanityPortionOutOfRange,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("%s: portion %.0f g is outside %.0f-%.0f g", it.DisplayName, it.PortionGrams, sanityMinPortion, sanityMaxPortion),
				ItemID:   it.ID,
			})
		}

		if it.PortionGrams > 0 && !it.IsCanonicalZeroCalorie() {
			perGram := it.Nutrients.Calories / it.PortionGrams
			if perGram < sanityMinKcalPerGram || perGram > sanityMaxKcalPerGram {
				issues = append(issues, models.SanityIssue{
					Type:     SanityCaloriesPerGram,
					Severity: models.SeverityWarning,
					Message:  fmt.Sprintf("%s: %.2f kcal/g is outside %.1f-%.1f", it.DisplayName, perGram, sanityMinKcalPerGram, sanityMaxKcalPerGram),
					ItemID:   it.ID,
				})
			}
		}

		if it.Nutrients.HasMacros() {
			cal, macro := it.Nutrients.Calories, it.Nutrients.MacroCalories()
			if math.Abs(macro-cal) > math.Max(sanityMacroToleranceKcal, cal*sanityMacroToleranceShare) {
				issues = append(issues, models.SanityIssue{
					Type:     SanityMacroCalorieMismatch,
					Severity: models.SeverityError,
					Message:  fmt.Sprintf("%s: %.0f kcal declared vs %.0f kcal from macros", it.DisplayName, cal, macro),
					ItemID:   it.ID,
				})
			}
		}

		if it.Source != nil && it.Source.Suspicious {
			issues = append(issues, models.SanityIssue{
				Type:     SanitySuspiciousSourceMatch,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("%s: matched source record %q has implausible values", it.DisplayName, it.Source.Description),
				ItemID:   it.ID,
			})
		}
	}

	if totals.PortionGrams > 0 && !allCanonicalZeroCalorie(items) {
		perGram := totals.Calories / totals.PortionGrams
		if perGram < sanityMinKcalPerGram || perGram > sanityMaxKcalPerGram {
			issues = append(issues, models.SanityIssue{
				Type:     SanityMealCaloriesPerGram,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("meal density %.2f kcal/g is outside %.1f-%.1f", perGram, sanityMinKcalPerGram, sanityMaxKcalPerGram),
			})
		}
	}
	return issues
}

// Flags derives the result-level flags from items and sanity issues.
func Flags(items []models.AnalyzedItem, issues []models.SanityIssue) (suspicious, needsReview bool) {
	for _, is := range issues {
		switch is.Type {
		case SanityMacroCalorieMismatch, SanityCaloriesPerGram, SanityMealCaloriesPerGram, SanitySuspiciousSourceMatch:
			suspicious = true
		}
	}

	if len(items) == 0 {
		return suspicious, true
	}
	allZero := true
	for _, it := range items {
		if it.Nutrients.Calories > 0 {
			allZero = false
		}
		if it.Beverage == nil && it.PortionGrams > 0 && !it.Nutrients.HasMacros() {
			needsReview = true
		}
	}
	if allZero && !allCanonicalZeroCalorie(items) {
		needsReview = true
	}
	return suspicious, needsReview
}

func allCanonicalZeroCalorie(items []models.AnalyzedItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.IsCanonicalZeroCalorie() {
			return false
		}
	}
	return true
}
