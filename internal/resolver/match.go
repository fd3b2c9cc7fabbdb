package resolver

import (
	"math"
	"strings"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

// Similarity scores how well a source description covers a query, in [0,1].
// Coverage of the query's content words dominates; precision against the
// description breaks ties between short and verbose records.
func Similarity(t *tables.Tables, query, description string) float64 {
	q := stemSet(t.ContentWords(query))
	d := stemSet(t.ContentWords(description))
	if len(q) == 0 || len(d) == 0 {
		return 0
	}
	shared := 0
	for w := range q {
		if d[w] {
			shared++
		}
	}
	coverage := float64(shared) / float64(len(q))
	precision := float64(shared) / float64(len(d))
	return math.Round((coverage*0.8+precision*0.2)*100) / 100
}

// Overlaps reports whether a candidate description shares enough words with
// the query. Solid foods need one shared content word. Beverage queries need a
// shared beverage keyword or two shared content words, so a vague drink is
// not matched to an unrelated solid.
func Overlaps(t *tables.Tables, query, description string, beverage bool) bool {
	q := stemSet(t.ContentWords(query))
	d := stemSet(t.ContentWords(description))
	shared := 0
	for w := range q {
		if d[w] {
			shared++
		}
	}
	if !beverage {
		return shared >= 1
	}
	if shared >= 2 {
		return true
	}
	nq, nd := tables.Normalize(query), tables.Normalize(description)
	for _, kw := range t.BeverageKeywords {
		if tables.ContainsPhrase(nq, kw) && tables.ContainsPhrase(nd, kw) {
			return true
		}
	}
	return false
}

// Implausible reports physically impossible per-100 values: more than 900
// kcal, more than 100 g of any macro, or declared energy more than 50% away
// from the 4/4/9 estimate.
func Implausible(per100 models.Nutrients) bool {
	if per100.Calories > 900 {
		return true
	}
	if per100.Protein > 100 || per100.Carbs > 100 || per100.Fat > 100 {
		return true
	}
	macro := per100.MacroCalories()
	if per100.Calories > 0 && macro > 0 {
		if math.Abs(macro-per100.Calories)/per100.Calories > 0.5 {
			return true
		}
	}
	return false
}

func stemSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[stem(w)] = true
	}
	return out
}

func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "oes"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
