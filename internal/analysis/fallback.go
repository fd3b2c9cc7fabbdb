package analysis

import (
	"strings"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// DefaultMinFallbackConfidence is the lowest recognizer confidence for which
// a fallback item is fabricated.
const DefaultMinFallbackConfidence = 0.7

// DropReason explains why a component produced no item.
type DropReason string

const (
	DropNone          DropReason = ""
	DropLowConfidence DropReason = "low_confidence"
	DropGenericName   DropReason = "generic_name"
)

// BuildFallback constructs an unverified item for a component the resolver
// could not match. Components below minConfidence (a missing confidence counts
// as certain) or with a generic name are dropped.
func BuildFallback(t *tables.Tables, c models.DetectedComponent, est PortionEstimate, minConfidence float64) (models.AnalyzedItem, DropReason) {
	conf := c.ConfidenceOr(1)
	if conf < minConfidence {
		return models.AnalyzedItem{}, DropLowConfidence
	}
	if t.IsGeneric(c.Name) {
		return models.AnalyzedItem{}, DropGenericName
	}

	grams := est.Grams
	drink := c.IsDrinkHint() || t.IsBeverage(c.Name)

	var (
		n    models.Nutrients
		tier models.FallbackTier
	)
	switch {
	case c.EstimatedNutrients != nil && !c.EstimatedNutrients.IsZero():
		tier = models.TierRecognizerEstimate
		factor := 1.0
		if est.Origin == PortionExplicit && est.Original > 0 {
			factor = grams / est.Original
		}
		n = c.EstimatedNutrients.Scale(factor)
		if n.Calories <= 0 {
			n.Calories = n.MacroCalories()
		}
	case drink:
		tier = models.TierBeverageDefault
		base := t.Fallback.UnsweetenedBeverage
		if t.IsSweetened(c.Name) {
			base = t.Fallback.SweetenedBeverage
		}
		n = base.Scale(grams / t.Fallback.BeverageVolumeML)
	default:
		tier = models.TierSolidDefault
		n = solidDefault(t.Fallback, grams)
	}
	n = sanitizeNutrients(n)

	n, clamped := ClampEnergyDensity(n, grams, t.Fallback.MinKcalPerGram, t.Fallback.MaxKcalPerGram)
	n = n.Rounded().WithEnergyDensity(grams)

	unit := "g"
	if drink {
		unit = "ml"
	}
	return models.AnalyzedItem{
		DisplayName:  strings.TrimSpace(c.Name),
		BaseName:     strings.TrimSpace(c.Name),
		Preparation:  c.Preparation,
		Tags:         append([]string(nil), c.Tags...),
		Unit:         unit,
		PortionGrams: grams,
		Nutrients:    n,
		Confidence:   conf,
		Provenance:   models.ProvenanceFallback,
		Fallback:     &models.FallbackDetail{Tier: tier, Clamped: clamped},
		HasNutrition: !n.IsZero(),
	}, DropNone
}

func solidDefault(f tables.Fallback, grams float64) models.Nutrients {
	kcal := f.SolidKcalPerGram * grams
	p, c, fat := f.SolidSplit.Grams(kcal)
	return models.Nutrients{
		Calories:     kcal,
		Protein:      p,
		Carbs:        c,
		Fat:          fat,
		Fiber:        f.SolidFiberPer100g * grams / 100,
		Sugars:       c * f.SolidSugarShareOfCarbs,
		SaturatedFat: fat * f.SolidSatFatShareOfFat,
	}
}

// ClampEnergyDensity rescales every nutrient proportionally so calories per
// gram land inside [minPerGram, maxPerGram]. Macro ratios are preserved.
// A vector with no calories cannot be rescaled and is returned unchanged.
func ClampEnergyDensity(n models.Nutrients, grams, minPerGram, maxPerGram float64) (models.Nutrients, bool) {
	if grams <= 0 || n.Calories <= 0 {
		return n, false
	}
	perGram := n.Calories / grams
	var target float64
	switch {
	case perGram < minPerGram:
		target = minPerGram * grams
	case perGram > maxPerGram:
		target = maxPerGram * grams
	default:
		return n, false
	}
	out := n.Scale(target / n.Calories)
	out.Calories = target
	return out, true
}
