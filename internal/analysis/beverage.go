package analysis

import (
	"strings"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// CanonicalBeverage is a fixed nutrient vector for a known plain drink.
type CanonicalBeverage struct {
	Kind            string
	Name            string
	DefaultVolumeML float64
	// Nutrients are per DefaultVolumeML.
	Nutrients models.Nutrients
}

// ForVolume scales the canonical vector to ml.
func (b CanonicalBeverage) ForVolume(ml float64) models.Nutrients {
	if b.DefaultVolumeML <= 0 || ml <= 0 {
		return models.Nutrients{}
	}
	return b.Nutrients.Scale(ml / b.DefaultVolumeML).Rounded().WithEnergyDensity(ml)
}

// ClassifyBeverage checks name against the ordered beverage rules and returns
// the first match, or nil. A "solid" category hint disables classification.
func ClassifyBeverage(t *tables.Tables, name, category string) *CanonicalBeverage {
	if strings.EqualFold(strings.TrimSpace(category), models.CategorySolid) {
		return nil
	}
	text := tables.Normalize(name)
	if text == "" {
		return nil
	}
	for _, r := range t.Beverages {
		if r.Matches(text) {
			return &CanonicalBeverage{
				Kind:            r.Kind,
				Name:            r.Name,
				DefaultVolumeML: r.DefaultVolumeML,
				Nutrients:       r.Nutrients,
			}
		}
	}
	return nil
}

// BeverageItem builds the item for a classified beverage. The portion comes
// from the estimate, which callers seed with the beverage's default volume.
func BeverageItem(c models.DetectedComponent, bev *CanonicalBeverage, est PortionEstimate) models.AnalyzedItem {
	n := bev.ForVolume(est.Grams)
	return models.AnalyzedItem{
		DisplayName:  strings.TrimSpace(c.Name),
		BaseName:     strings.TrimSpace(c.Name),
		Preparation:  c.Preparation,
		Tags:         append([]string(nil), c.Tags...),
		Unit:         "ml",
		PortionGrams: est.Grams,
		Nutrients:    n,
		Confidence:   c.ConfidenceOr(1),
		Provenance:   models.ProvenanceCanonicalBeverage,
		Beverage:     &models.BeverageMatch{Kind: bev.Kind},
		HasNutrition: !n.IsZero(),
	}
}
