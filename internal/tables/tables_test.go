package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	tb := Default()
	require.NotNil(t, tb)

	assert.Equal(t, 5, tb.DedupePrefixLen)
	assert.Equal(t, 150.0, tb.DefaultPortionGrams)
	assert.Equal(t, Band{Min: 10, Max: 800}, tb.DefaultPortionBand)
	require.Len(t, tb.Beverages, 3)
	assert.Equal(t, "water", tb.Beverages[0].Kind)
	assert.Equal(t, 250.0, tb.Beverages[0].DefaultVolumeML)
	assert.Equal(t, 105.0, tb.Beverages[2].Nutrients.Calories)
	assert.Contains(t, tb.StopWords, "on")
	assert.Equal(t, 1.2, tb.Fallback.SolidKcalPerGram)
	assert.Equal(t, 7.0, tb.Fallback.MaxKcalPerGram)
	assert.Same(t, tb, Default())
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Café con Leche":          "cafe con leche",
		"  Pollo   alla-griglia!": "pollo alla griglia",
		"Hähnchen":                "hahnchen",
		"":                        "",
		"100% Juice":              "100 juice",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, ContainsPhrase("grilled chicken", "chicken"))
	assert.True(t, ContainsPhrase("cherry tomatoes", "tomato"))
	assert.True(t, ContainsPhrase("two eggs", "egg"))
	assert.True(t, ContainsPhrase("a glass of mineral water", "mineral water"))
	assert.False(t, ContainsPhrase("watermelon", "water"))
	assert.False(t, ContainsPhrase("eggplant", "egg"))
	assert.False(t, ContainsPhrase("anything", ""))
}

func TestKeywordRule_Matches(t *testing.T) {
	r := KeywordRule{Include: []string{"coffee"}, Exclude: []string{"milk"}}
	assert.True(t, r.Matches("black coffee"))
	assert.False(t, r.Matches("coffee with milk"))
	assert.False(t, r.Matches("tea"))
}

func TestLookups(t *testing.T) {
	tb := Default()

	pc := tb.PortionCategory("Grilled Chicken Breast")
	require.NotNil(t, pc)
	assert.Equal(t, "protein", pc.Name)
	assert.Equal(t, 500.0, pc.Band().Clamp(900))

	assert.Equal(t, "minor", tb.MinorCategory().Name)
	assert.Nil(t, tb.PortionCategory("mystery"))

	fc := tb.FoodCategory("French Fries")
	require.NotNil(t, fc)
	assert.Equal(t, "fried_potato", fc.Name)
	assert.Equal(t, "vegetable", fc.Coarse)
	assert.Equal(t, "sweet_drink", tb.FoodCategory("Orange soda").Name)
	assert.Nil(t, tb.FoodCategory("Diet soda"))
	assert.Nil(t, tb.FoodCategory("Coke Zero"))

	assert.True(t, tb.IsGeneric("Food"))
	assert.True(t, tb.IsGeneric("  "))
	assert.False(t, tb.IsGeneric("lasagna"))

	assert.True(t, tb.IsBeverage("orange juice"))
	assert.False(t, tb.IsBeverage("orange"))
	assert.True(t, tb.IsSweetened("orange juice"))
	assert.False(t, tb.IsSweetened("diet cola"))

	assert.Equal(t, []string{"chicken", "rice"}, tb.ContentWords("Chicken with the rice"))
}

func TestMacroSplit_Grams(t *testing.T) {
	p, c, f := MacroSplit{Protein: 0.25, Carbs: 0.5, Fat: 0.25}.Grams(360)
	assert.InDelta(t, 22.5, p, 1e-9)
	assert.InDelta(t, 45, c, 1e-9)
	assert.InDelta(t, 10, f, 1e-9)
}

func TestLoad(t *testing.T) {
	tb, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), tb)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("default_portion_grams: 0\n"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	override := filepath.Join(t.TempDir(), "tables.yaml")
	doc := `
default_portion_grams: 120
default_portion_band: {min: 5, max: 600}
food_categories:
  - name: bad_split
    include: [thing]
    min_kcal: 10
    max_kcal: 20
    typical_kcal: 15
    split: {protein: 0.5, carbs: 0.5, fat: 0.5}
fallback: {solid_kcal_per_gram: 1, beverage_volume_ml: 200, min_kcal_per_gram: 0.1, max_kcal_per_gram: 7}
`
	require.NoError(t, os.WriteFile(override, []byte(doc), 0o600))
	_, err = Load(override)
	assert.ErrorContains(t, err, "bad_split")
}
