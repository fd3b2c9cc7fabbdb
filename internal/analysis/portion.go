package analysis

import (
	"math"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// Where a portion estimate came from.
const (
	PortionExplicit = "explicit"
	PortionFallback = "fallback"
	PortionDefault  = "default"
)

// PortionEstimate is the outcome of portion estimation. Original is the value
// before clamping so callers can log adjustments.
type PortionEstimate struct {
	Original float64
	Grams    float64
	Clamped  bool
	Origin   string
	Category string
	Band     tables.Band
}

// EstimatePortion picks the explicit estimate, then fallback, then the global
// default, and bounds the result into the component's category band.
// It never fails; out-of-band input is clamped.
func EstimatePortion(t *tables.Tables, c models.DetectedComponent, fallback float64) PortionEstimate {
	est := PortionEstimate{Origin: PortionDefault, Original: t.DefaultPortionGrams}
	switch {
	case validPortion(c.PortionValue()):
		est.Origin, est.Original = PortionExplicit, c.PortionValue()
	case validPortion(fallback):
		est.Origin, est.Original = PortionFallback, fallback
	}

	est.Category, est.Band = PortionBand(t, c.Name, c.Minor)
	est.Grams = est.Band.Clamp(est.Original)
	est.Clamped = est.Grams != est.Original
	return est
}

// PortionBand returns the band that applies to a named component.
func PortionBand(t *tables.Tables, name string, minor bool) (string, tables.Band) {
	if minor {
		if mc := t.MinorCategory(); mc != nil {
			return mc.Name, mc.Band()
		}
	}
	if pc := t.PortionCategory(name); pc != nil {
		return pc.Name, pc.Band()
	}
	return "", t.DefaultPortionBand
}

// ClampPortion bounds grams into the band for name. Clamping a clamped value
// is a no-op.
func ClampPortion(t *tables.Tables, name string, minor bool, grams float64) float64 {
	_, band := PortionBand(t, name, minor)
	return band.Clamp(grams)
}

func validPortion(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
