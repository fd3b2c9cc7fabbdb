package models

// Provenance tags where an item's nutrients came from.
type Provenance string

const (
	ProvenanceSource            Provenance = "resolved_from_source"
	ProvenanceCanonicalBeverage Provenance = "canonical_beverage"
	ProvenanceFallback          Provenance = "fallback_estimate"
	ProvenanceManual            Provenance = "manually_edited"
)

// SourceMatch details an item resolved from a nutrition source.
type SourceMatch struct {
	SourceID     string  `json:"source_id"`
	SourceFoodID string  `json:"source_food_id"`
	Description  string  `json:"description"`
	MatchScore   float64 `json:"match_score"`
	Suspicious   bool    `json:"suspicious,omitempty"`
}

// BeverageMatch details an item produced by the beverage classifier.
type BeverageMatch struct {
	Kind string `json:"kind"` // water | black_coffee_tea | milk_coffee
}

// FallbackTier identifies which fallback produced the nutrients.
type FallbackTier string

const (
	TierRecognizerEstimate FallbackTier = "recognizer_estimate"
	TierBeverageDefault    FallbackTier = "beverage_default"
	TierSolidDefault       FallbackTier = "solid_default"
)

// FallbackDetail details an item built by the fallback constructor.
type FallbackDetail struct {
	Tier    FallbackTier `json:"tier"`
	Clamped bool         `json:"clamped,omitempty"`
}

// Snapshot keeps pre-correction values for audit.
type Snapshot struct {
	PortionGrams float64   `json:"portion_grams"`
	Nutrients    Nutrients `json:"nutrients"`
}

// ValidationIssue records one correction (or observation) on an item.
type ValidationIssue struct {
	Type      string  `json:"type"`
	Field     string  `json:"field,omitempty"`
	Original  float64 `json:"original"`
	Corrected float64 `json:"corrected"`
	Message   string  `json:"message"`
}

// HiddenIngredient is an inferred, invisible contributor folded into an item.
type HiddenIngredient struct {
	Trigger    string    `json:"trigger"`
	Name       string    `json:"name"`
	Grams      float64   `json:"grams"`
	Nutrients  Nutrients `json:"nutrients"`
	Confidence float64   `json:"confidence"`
}

// AnalyzedItem is one food that survived the pipeline.
//
// Exactly one of Source, Beverage or Fallback is set, matching the origin of the
// nutrients. Manually edited items keep the detail of whichever path resolved them.
type AnalyzedItem struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	BaseName     string     `json:"base_name"`
	Preparation  string     `json:"preparation,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Unit         string     `json:"unit"`
	PortionGrams float64    `json:"portion_grams"`
	Nutrients    Nutrients  `json:"nutrients"`
	Confidence   float64    `json:"confidence"`
	Provenance   Provenance `json:"provenance"`

	Source   *SourceMatch    `json:"source,omitempty"`
	Beverage *BeverageMatch  `json:"beverage,omitempty"`
	Fallback *FallbackDetail `json:"fallback,omitempty"`

	HasNutrition      bool               `json:"has_nutrition"`
	WasValidated      bool               `json:"was_validated"`
	OriginalValues    *Snapshot          `json:"original_values,omitempty"`
	Issues            []ValidationIssue  `json:"issues,omitempty"`
	HiddenIngredients []HiddenIngredient `json:"hidden_ingredients,omitempty"`
}

// Trusted reports whether the nutrients came from a scored source match or a
// canonical beverage table rather than a heuristic estimate.
func (it AnalyzedItem) Trusted() bool {
	return it.Source != nil || it.Beverage != nil
}

// IsCanonicalZeroCalorie reports whether the item is a canonical beverage with no energy.
func (it AnalyzedItem) IsCanonicalZeroCalorie() bool {
	return it.Beverage != nil && it.Nutrients.Calories <= 0
}

// Clone returns a deep copy so stages can return new items without sharing slices.
func (it AnalyzedItem) Clone() AnalyzedItem {
	out := it
	if it.Tags != nil {
		out.Tags = append([]string(nil), it.Tags...)
	}
	if it.Issues != nil {
		out.Issues = append([]ValidationIssue(nil), it.Issues...)
	}
	if it.HiddenIngredients != nil {
		out.HiddenIngredients = append([]HiddenIngredient(nil), it.HiddenIngredients...)
	}
	if it.OriginalValues != nil {
		snap := *it.OriginalValues
		out.OriginalValues = &snap
	}
	if it.Source != nil {
		s := *it.Source
		out.Source = &s
	}
	if it.Beverage != nil {
		b := *it.Beverage
		out.Beverage = &b
	}
	if it.Fallback != nil {
		f := *it.Fallback
		out.Fallback = &f
	}
	return out
}
