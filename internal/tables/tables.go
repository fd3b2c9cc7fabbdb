// Package tables holds the read-only keyword, range and synonym tables used by
// the analysis stages. The defaults are embedded and parsed once per process;
// an override file can replace them at startup. Nothing mutates a Tables value
// after Load returns.
package tables

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mcp-meal-analyzer/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// KeywordRule matches when any Include phrase is present and no Exclude phrase is.
type KeywordRule struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Matches reports whether the rule fires on normalized text (see Normalize).
func (r KeywordRule) Matches(text string) bool {
	return ContainsAny(text, r.Include) && !ContainsAny(text, r.Exclude)
}

// BeverageRule is a canonical zero/near-zero calorie drink.
type BeverageRule struct {
	KeywordRule `yaml:",inline"`

	Kind            string           `yaml:"kind"`
	Name            string           `yaml:"name"`
	DefaultVolumeML float64          `yaml:"default_volume_ml"`
	Nutrients       models.Nutrients `yaml:"nutrients"`
}

// SynonymGroup maps cross-language terms onto one dedupe key.
type SynonymGroup struct {
	Key   string   `yaml:"key"`
	Terms []string `yaml:"terms"`
}

// Band is an inclusive [Min, Max] range.
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp bounds v into the band.
func (b Band) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// PortionCategory bounds portion estimates for a class of foods.
type PortionCategory struct {
	KeywordRule `yaml:",inline"`

	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// Band returns the category's portion band.
func (c PortionCategory) Band() Band { return Band{Min: c.Min, Max: c.Max} }

// MacroSplit is the share of energy from each macronutrient.
type MacroSplit struct {
	Protein float64 `yaml:"protein"`
	Carbs   float64 `yaml:"carbs"`
	Fat     float64 `yaml:"fat"`
}

// Grams converts an energy amount into macro grams following the split.
func (s MacroSplit) Grams(kcal float64) (protein, carbs, fat float64) {
	return kcal * s.Protein / 4, kcal * s.Carbs / 4, kcal * s.Fat / 9
}

// FoodCategory is an expected kcal/100 g range used to correct estimates.
type FoodCategory struct {
	KeywordRule `yaml:",inline"`

	Name        string     `yaml:"name"`
	Coarse      string     `yaml:"coarse"`
	MinKcal     float64    `yaml:"min_kcal"`
	MaxKcal     float64    `yaml:"max_kcal"`
	TypicalKcal float64    `yaml:"typical_kcal"`
	Split       MacroSplit `yaml:"split"`
}

// HiddenRule adds a fixed amount of an invisible ingredient when it fires.
type HiddenRule struct {
	KeywordRule `yaml:",inline"`

	Trigger    string           `yaml:"trigger"`
	Ingredient string           `yaml:"ingredient"`
	Grams      float64          `yaml:"grams"`
	Confidence float64          `yaml:"confidence"`
	Nutrients  models.Nutrients `yaml:"nutrients"`

	// Unless lists triggers that suppress this one when they already fired.
	Unless []string `yaml:"unless"`
}

// Fallback holds the defaults used when no source matched.
type Fallback struct {
	SolidKcalPerGram       float64          `yaml:"solid_kcal_per_gram"`
	SolidSplit             MacroSplit       `yaml:"solid_split"`
	SolidFiberPer100g      float64          `yaml:"solid_fiber_per_100g"`
	SolidSugarShareOfCarbs float64          `yaml:"solid_sugar_share_of_carbs"`
	SolidSatFatShareOfFat  float64          `yaml:"solid_sat_fat_share_of_fat"`
	BeverageVolumeML       float64          `yaml:"beverage_volume_ml"`
	SweetenedBeverage      models.Nutrients `yaml:"sweetened_beverage"`
	UnsweetenedBeverage    models.Nutrients `yaml:"unsweetened_beverage"`
	MinKcalPerGram         float64          `yaml:"min_kcal_per_gram"`
	MaxKcalPerGram         float64          `yaml:"max_kcal_per_gram"`
}

// Tables is the full static configuration.
type Tables struct {
	DedupePrefixLen     int                `yaml:"dedupe_prefix_len"`
	DefaultPortionGrams float64            `yaml:"default_portion_grams"`
	Beverages           []BeverageRule     `yaml:"beverages"`
	Synonyms            []SynonymGroup     `yaml:"synonyms"`
	DefaultPortionBand  Band               `yaml:"default_portion_band"`
	PortionCategories   []PortionCategory  `yaml:"portion_categories"`
	FoodCategories      []FoodCategory     `yaml:"food_categories"`
	MinPortions         map[string]float64 `yaml:"min_portions"`
	HiddenIngredients   []HiddenRule       `yaml:"hidden_ingredients"`
	GenericNames        []string           `yaml:"generic_names"`
	BeverageKeywords    []string           `yaml:"beverage_keywords"`
	SweetenedKeywords   []string           `yaml:"sweetened_keywords"`
	UnsweetenedKeywords []string           `yaml:"unsweetened_keywords"`
	StopWords           []string           `yaml:"stop_words"`
	Fallback            Fallback           `yaml:"fallback"`
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// Default returns the embedded tables, parsed once.
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = Parse(defaultsYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded tables are invalid: %v", defaultErr))
	}
	return defaultTables
}

// Load reads an override file; an empty path returns the defaults.
func Load(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML table document.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tables: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.normalize()
	return &t, nil
}

func (t *Tables) validate() error {
	if t.DefaultPortionGrams <= 0 {
		return fmt.Errorf("tables: default_portion_grams must be positive")
	}
	if t.DefaultPortionBand.Min <= 0 || t.DefaultPortionBand.Max < t.DefaultPortionBand.Min {
		return fmt.Errorf("tables: invalid default_portion_band")
	}
	for _, c := range t.PortionCategories {
		if c.Min <= 0 || c.Max < c.Min {
			return fmt.Errorf("tables: portion category %q has an invalid band", c.Name)
		}
	}
	for _, c := range t.FoodCategories {
		if c.MaxKcal < c.MinKcal || c.TypicalKcal < c.MinKcal || c.TypicalKcal > c.MaxKcal {
			return fmt.Errorf("tables: food category %q has an invalid kcal range", c.Name)
		}
		sum := c.Split.Protein + c.Split.Carbs + c.Split.Fat
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("tables: food category %q split sums to %.2f", c.Name, sum)
		}
	}
	for _, b := range t.Beverages {
		if b.DefaultVolumeML <= 0 {
			return fmt.Errorf("tables: beverage %q needs a default volume", b.Kind)
		}
	}
	f := t.Fallback
	if f.SolidKcalPerGram <= 0 || f.BeverageVolumeML <= 0 || f.MinKcalPerGram <= 0 || f.MaxKcalPerGram <= f.MinKcalPerGram {
		return fmt.Errorf("tables: invalid fallback section")
	}
	if t.DedupePrefixLen <= 0 {
		t.DedupePrefixLen = 5
	}
	return nil
}

// normalize folds every keyword once so matching can compare normalized text.
func (t *Tables) normalize() {
	fold := func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if n := Normalize(s); n != "" {
				out = append(out, n)
			}
		}
		return out
	}
	foldRule := func(r *KeywordRule) {
		r.Include = fold(r.Include)
		r.Exclude = fold(r.Exclude)
	}
	for i := range t.Beverages {
		foldRule(&t.Beverages[i].KeywordRule)
	}
	for i := range t.Synonyms {
		t.Synonyms[i].Terms = fold(t.Synonyms[i].Terms)
	}
	for i := range t.PortionCategories {
		foldRule(&t.PortionCategories[i].KeywordRule)
	}
	for i := range t.FoodCategories {
		foldRule(&t.FoodCategories[i].KeywordRule)
	}
	for i := range t.HiddenIngredients {
		foldRule(&t.HiddenIngredients[i].KeywordRule)
	}
	t.GenericNames = fold(t.GenericNames)
	t.BeverageKeywords = fold(t.BeverageKeywords)
	t.SweetenedKeywords = fold(t.SweetenedKeywords)
	t.UnsweetenedKeywords = fold(t.UnsweetenedKeywords)
	t.StopWords = fold(t.StopWords)
}

// PortionCategory returns the first portion category matching name, or nil.
func (t *Tables) PortionCategory(name string) *PortionCategory {
	text := Normalize(name)
	for i := range t.PortionCategories {
		if t.PortionCategories[i].Matches(text) {
			return &t.PortionCategories[i]
		}
	}
	return nil
}

// MinorCategory returns the portion category used for garnish items.
func (t *Tables) MinorCategory() *PortionCategory {
	for i := range t.PortionCategories {
		if t.PortionCategories[i].Name == "minor" {
			return &t.PortionCategories[i]
		}
	}
	return nil
}

// FoodCategory returns the first food category matching name, or nil.
func (t *Tables) FoodCategory(name string) *FoodCategory {
	text := Normalize(name)
	for i := range t.FoodCategories {
		if t.FoodCategories[i].Matches(text) {
			return &t.FoodCategories[i]
		}
	}
	return nil
}

// IsGeneric reports whether name is too vague to fabricate nutrients for.
func (t *Tables) IsGeneric(name string) bool {
	n := Normalize(name)
	if n == "" {
		return true
	}
	for _, g := range t.GenericNames {
		if n == g {
			return true
		}
	}
	return false
}

// IsBeverage reports whether text mentions a beverage keyword.
func (t *Tables) IsBeverage(name string) bool {
	return ContainsAny(Normalize(name), t.BeverageKeywords)
}

// IsSweetened reports whether a beverage name suggests added sugar.
func (t *Tables) IsSweetened(name string) bool {
	n := Normalize(name)
	return ContainsAny(n, t.SweetenedKeywords) && !ContainsAny(n, t.UnsweetenedKeywords)
}

// ContentWords splits normalized text into words minus stop words.
func (t *Tables) ContentWords(text string) []string {
	words := strings.Fields(Normalize(text))
	out := words[:0]
	for _, w := range words {
		if len(w) < 2 || t.isStopWord(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (t *Tables) isStopWord(w string) bool {
	for _, s := range t.StopWords {
		if s == w {
			return true
		}
	}
	return false
}

var accentFolder = runes.Remove(runes.In(unicode.Mn))

// Normalize lowercases, strips accents and collapses every non-alphanumeric run
// into a single space.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, accentFolder, norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// ContainsPhrase reports whether normalized text contains phrase as whole words.
// Simple plurals ("s", "es") of the phrase also match.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	padded := " " + text + " "
	for _, suffix := range []string{"", "s", "es"} {
		if strings.Contains(padded, " "+phrase+suffix+" ") {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any phrase occurs in normalized text.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(text, p) {
			return true
		}
	}
	return false
}
