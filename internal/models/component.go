package models

import "strings"

// Category hints used by the recognizer and the lookup context.
const (
	CategoryDrink   = "drink"
	CategorySolid   = "solid"
	CategoryUnknown = "unknown"
)

// Portion is a raw amount as reported upstream.
type Portion struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"` // "g" or "ml"
}

// DetectedComponent is one untrusted food guess from the recognizer.
type DetectedComponent struct {
	Name        string   `json:"name"`
	Preparation string   `json:"preparation,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Portion     *Portion `json:"portion,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Category    string   `json:"category,omitempty"`
	Minor       bool     `json:"minor,omitempty"`

	// EstimatedNutrients are the recognizer's own guesses for Portion, if any.
	EstimatedNutrients *Nutrients `json:"estimated_nutrients,omitempty"`
}

// PortionValue returns the estimated portion or 0.
func (c DetectedComponent) PortionValue() float64 {
	if c.Portion == nil || c.Portion.Value < 0 {
		return 0
	}
	return c.Portion.Value
}

// ConfidenceOr returns the confidence, or def when the recognizer gave none.
func (c DetectedComponent) ConfidenceOr(def float64) float64 {
	if c.Confidence == nil {
		return def
	}
	return *c.Confidence
}

// IsDrinkHint reports whether the recognizer tagged the component as a drink.
func (c DetectedComponent) IsDrinkHint() bool {
	switch strings.ToLower(strings.TrimSpace(c.Category)) {
	case CategoryDrink, "beverage", "drinks", "beverages":
		return true
	}
	return false
}

// LookupContext is passed by value to the resolver.
type LookupContext struct {
	Locale   string `json:"locale"`
	Region   string `json:"region,omitempty"`
	Category string `json:"category,omitempty"` // drink | solid | unknown
}

// CanonicalFood is a resolved, per-100-unit nutrition record.
type CanonicalFood struct {
	SourceID        string    `json:"source_id"`
	SourceFoodID    string    `json:"source_food_id"`
	DisplayName     string    `json:"display_name"`
	Category        string    `json:"category,omitempty"`
	DefaultPortion  float64   `json:"default_portion,omitempty"`
	Per100          Nutrients `json:"per_100"`
	MatchConfidence float64   `json:"match_confidence"`
	Suspicious      bool      `json:"suspicious"`
}

// ManualEdit is a user-corrected item used for re-analysis.
type ManualEdit struct {
	Name         string  `json:"name"`
	PortionGrams float64 `json:"portion_grams"`
}
