package analysis

import (
	"strings"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// DedupeKey returns the grouping key for a component: its drink/solid class
// plus the longest synonym term it contains, or a short prefix of its longest
// content word when no synonym applies.
func DedupeKey(t *tables.Tables, c models.DetectedComponent) string {
	class := "s"
	if c.IsDrinkHint() || t.IsBeverage(c.Name) {
		class = "d"
	}
	text := tables.Normalize(c.Name)

	best, bestLen := "", 0
	for _, g := range t.Synonyms {
		for _, term := range g.Terms {
			if len(term) > bestLen && tables.ContainsPhrase(text, term) {
				best, bestLen = g.Key, len(term)
			}
		}
	}
	if best != "" {
		return class + ":" + best
	}

	words := t.ContentWords(text)
	if len(words) == 0 {
		words = strings.Fields(text)
	}
	longest := ""
	for _, w := range words {
		if len([]rune(w)) > len([]rune(longest)) {
			longest = w
		}
	}
	r := []rune(longest)
	if len(r) > t.DedupePrefixLen {
		r = r[:t.DedupePrefixLen]
	}
	return class + ":" + string(r)
}

// Dedupe merges components sharing a key. Portions are summed, the
// highest-confidence member supplies the label, and groups keep the order of
// their first appearance.
func Dedupe(t *tables.Tables, components []models.DetectedComponent) []models.DetectedComponent {
	var order []string
	groups := make(map[string][]models.DetectedComponent)
	for _, c := range components {
		k := DedupeKey(t, c)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	out := make([]models.DetectedComponent, 0, len(order))
	for _, k := range order {
		out = append(out, merge(groups[k]))
	}
	return out
}

func merge(members []models.DetectedComponent) models.DetectedComponent {
	if len(members) == 1 {
		return members[0]
	}

	best := 0
	for i, m := range members {
		if m.ConfidenceOr(0) > members[best].ConfidenceOr(0) {
			best = i
		}
	}
	out := members[best]

	var (
		total      float64
		unit       string
		hasPortion bool
		estimates  models.Nutrients
		tags       []string
	)
	allEst := true
	seenTag := make(map[string]bool)
	for _, m := range members {
		if m.Portion != nil {
			hasPortion = true
			total += m.PortionValue()
			if unit == "" {
				unit = m.Portion.Unit
			}
		}
		if m.EstimatedNutrients == nil {
			allEst = false
		} else {
			estimates = estimates.Add(*m.EstimatedNutrients)
		}
		if out.Preparation == "" && m.Preparation != "" {
			out.Preparation = m.Preparation
		}
		for _, tag := range m.Tags {
			if !seenTag[tag] {
				seenTag[tag] = true
				tags = append(tags, tag)
			}
		}
		out.Minor = out.Minor && m.Minor
	}

	if hasPortion {
		out.Portion = &models.Portion{Value: total, Unit: unit}
	}
	// Estimates only stay meaningful for the merged portion when every member had them.
	if allEst {
		out.EstimatedNutrients = &estimates
	} else {
		out.EstimatedNutrients = nil
	}
	out.Tags = tags
	return out
}
