package analysis

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// Validation issue types.
const (
	IssueInvalidValue         = "invalid_value"
	IssueImpossibleCalories   = "impossible_calories"
	IssuePortionTooSmall      = "portion_too_small"
	IssueMacrosEstimated      = "macros_estimated"
	IssueMacroCalorieMismatch = "macro_calorie_mismatch"
)

const (
	// Share of the category range tolerated before correcting calories.
	categoryTolerance   = 0.30
	macroToleranceKcal  = 30.0
	macroToleranceShare = 0.25
)

// Validator corrects implausible values on unverified items. Trusted items
// (source matches and canonical beverages) are only sanitized.
type Validator struct {
	tables *tables.Tables
	log    zerolog.Logger
}

// NewValidator returns a validator over the given tables.
func NewValidator(t *tables.Tables, log zerolog.Logger) *Validator {
	return &Validator{tables: t, log: log}
}

// Validate returns a corrected copy of item and the issues raised. The input
// is not modified; the returned item carries the issues and, when anything
// changed, a snapshot of its original values.
func (v *Validator) Validate(item models.AnalyzedItem) (models.AnalyzedItem, []models.ValidationIssue) {
	out := item.Clone()
	orig := models.Snapshot{PortionGrams: item.PortionGrams, Nutrients: item.Nutrients}

	var issues []models.ValidationIssue
	out.PortionGrams, out.Nutrients, issues = sanitize(out.PortionGrams, out.Nutrients)

	if out.Trusted() {
		v.checkTrustedMacros(out)
	} else {
		issues = append(issues, v.correct(&out)...)
	}

	if len(issues) == 0 {
		return out, nil
	}
	out.Nutrients = out.Nutrients.Rounded().WithEnergyDensity(out.PortionGrams)
	out.HasNutrition = !out.Nutrients.IsZero()
	out.Issues = append(out.Issues, issues...)
	out.WasValidated = true
	if out.OriginalValues == nil {
		out.OriginalValues = &orig
	}
	return out, issues
}

func (v *Validator) correct(it *models.AnalyzedItem) []models.ValidationIssue {
	var issues []models.ValidationIssue
	fc := v.tables.FoodCategory(it.BaseName)

	if fc != nil && it.PortionGrams > 0 {
		per100 := it.Nutrients.Calories / it.PortionGrams * 100
		if per100 < fc.MinKcal*(1-categoryTolerance) || per100 > fc.MaxKcal*(1+categoryTolerance) {
			before := it.Nutrients.Calories
			target := math.Round(fc.TypicalKcal * it.PortionGrams / 100)
			if before > 0 {
				it.Nutrients = it.Nutrients.Scale(target / before)
			}
			it.Nutrients.Calories = target
			issues = append(issues, models.ValidationIssue{
				Type:      IssueImpossibleCalories,
				Field:     "calories",
				Original:  before,
				Corrected: target,
				Message: fmt.Sprintf("%.0f kcal/100g is outside the %s range %.0f-%.0f; using typical %.0f",
					per100, fc.Name, fc.MinKcal, fc.MaxKcal, fc.TypicalKcal),
			})
		}
	}

	if coarse := v.coarseCategory(it, fc); coarse != "" && it.PortionGrams > 0 {
		if minimum, ok := v.minPortion(it.BaseName, coarse); ok && it.PortionGrams < minimum {
			before := it.PortionGrams
			it.Nutrients = it.Nutrients.Scale(minimum / before)
			it.PortionGrams = minimum
			issues = append(issues, models.ValidationIssue{
				Type:      IssuePortionTooSmall,
				Field:     "portion_grams",
				Original:  before,
				Corrected: minimum,
				Message:   fmt.Sprintf("portion below the %s minimum of %.0f", coarse, minimum),
			})
		}
	}

	if it.Nutrients.Calories > 0 && !it.Nutrients.HasMacros() {
		split := v.tables.Fallback.SolidSplit
		if fc != nil {
			split = fc.Split
		}
		it.Nutrients.Protein, it.Nutrients.Carbs, it.Nutrients.Fat = split.Grams(it.Nutrients.Calories)
		issues = append(issues, models.ValidationIssue{
			Type:      IssueMacrosEstimated,
			Field:     "macros",
			Original:  0,
			Corrected: it.Nutrients.MacroCalories(),
			Message:   "macronutrients missing; estimated from the category energy split",
		})
	}

	if it.Nutrients.HasMacros() {
		cal, macro := it.Nutrients.Calories, it.Nutrients.MacroCalories()
		if math.Abs(macro-cal) > MacroTolerance(cal) {
			it.Nutrients.Calories = macro
			issues = append(issues, models.ValidationIssue{
				Type:      IssueMacroCalorieMismatch,
				Field:     "calories",
				Original:  cal,
				Corrected: macro,
				Message:   fmt.Sprintf("reported %.0f kcal disagrees with %.0f kcal from macros", cal, macro),
			})
		}
	}
	return issues
}

// minPortion returns the coarse-category minimum for an item. When the name
// also falls in a named portion band, the band minimum wins if it is lower so
// a portion already clamped to its band is not raised a second time.
func (v *Validator) minPortion(name, coarse string) (float64, bool) {
	minimum, ok := v.tables.MinPortions[coarse]
	if !ok {
		return 0, false
	}
	if band, b := PortionBand(v.tables, name, false); band != "" && b.Min < minimum {
		minimum = b.Min
	}
	return minimum, true
}

func (v *Validator) coarseCategory(it *models.AnalyzedItem, fc *tables.FoodCategory) string {
	if fc != nil && fc.Coarse != "" {
		return fc.Coarse
	}
	if it.Unit == "ml" || v.tables.IsBeverage(it.BaseName) {
		return models.CategoryDrink
	}
	return ""
}

func (v *Validator) checkTrustedMacros(it models.AnalyzedItem) {
	if !it.Nutrients.HasMacros() {
		return
	}
	cal, macro := it.Nutrients.Calories, it.Nutrients.MacroCalories()
	diff := math.Abs(macro - cal)
	if diff <= MacroTolerance(cal) {
		return
	}
	v.log.Warn().
		Str("item", it.BaseName).
		Float64("calories", cal).
		Float64("macro_calories", macro).
		Bool("extreme", cal > 0 && diff/cal > 0.5).
		Msg("trusted item macro/calorie mismatch left unchanged")
}

// MacroTolerance is the accepted gap between declared and 4/4/9 calories.
func MacroTolerance(calories float64) float64 {
	return math.Max(macroToleranceKcal, calories*macroToleranceShare)
}

func sanitize(portion float64, n models.Nutrients) (float64, models.Nutrients, []models.ValidationIssue) {
	var issues []models.ValidationIssue
	fix := func(field string, p *float64) {
		if bad(*p) {
			issues = append(issues, models.ValidationIssue{
				Type:      IssueInvalidValue,
				Field:     field,
				Original:  finiteOrZero(*p),
				Corrected: 0,
				Message:   fmt.Sprintf("%s was not a valid non-negative number", field),
			})
			*p = 0
		}
	}
	fix("portion_grams", &portion)
	fix("calories", &n.Calories)
	fix("protein", &n.Protein)
	fix("carbs", &n.Carbs)
	fix("fat", &n.Fat)
	fix("fiber", &n.Fiber)
	fix("sugars", &n.Sugars)
	fix("saturated_fat", &n.SaturatedFat)
	return portion, n, issues
}

func sanitizeNutrients(n models.Nutrients) models.Nutrients {
	_, out, _ := sanitize(0, n)
	return out
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// finiteOrZero keeps issue values JSON-encodable.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
