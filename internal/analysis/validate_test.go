package analysis

import (
	"bytes"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

func unverified(name string, portion float64, n models.Nutrients) models.AnalyzedItem {
	return models.AnalyzedItem{
		ID:           name,
		DisplayName:  name,
		BaseName:     name,
		Unit:         "g",
		PortionGrams: portion,
		Nutrients:    n.WithEnergyDensity(portion),
		Provenance:   models.ProvenanceFallback,
		Fallback:     &models.FallbackDetail{Tier: models.TierRecognizerEstimate},
		HasNutrition: true,
	}
}

func trusted(name string, portion float64, n models.Nutrients) models.AnalyzedItem {
	it := unverified(name, portion, n)
	it.Provenance = models.ProvenanceSource
	it.Fallback = nil
	it.Source = &models.SourceMatch{SourceID: "usda", SourceFoodID: "1", MatchScore: 0.9}
	return it
}

func issueTypes(issues []models.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Type)
	}
	return out
}

func TestValidate_ImpossibleCaloriesCorrected(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	in := unverified("fried potato", 100, models.Nutrients{Calories: 50})

	out, issues := v.Validate(in)

	require.NotEmpty(t, issues)
	assert.Equal(t, IssueImpossibleCalories, issues[0].Type)
	assert.Equal(t, 50.0, issues[0].Original)
	assert.Equal(t, 270.0, issues[0].Corrected)
	assert.Equal(t, 270.0, out.Nutrients.Calories)
	assert.Equal(t, 270.0, out.Nutrients.EnergyDensity)
	assert.True(t, out.WasValidated)
	require.NotNil(t, out.OriginalValues)
	assert.Equal(t, 50.0, out.OriginalValues.Nutrients.Calories)
	assert.Equal(t, issues, out.Issues)

	assert.Equal(t, 50.0, in.Nutrients.Calories)
	assert.Nil(t, in.OriginalValues)
}

func TestValidate_TrustedOnlySanitized(t *testing.T) {
	var buf bytes.Buffer
	v := NewValidator(tables.Default(), zerolog.New(&buf))
	in := trusted("chicken breast", 150, models.Nutrients{Calories: 5, Protein: 20, Fat: 2})

	out, issues := v.Validate(in)
	assert.Empty(t, issues)
	assert.Equal(t, in.Nutrients, out.Nutrients)
	assert.False(t, out.WasValidated)
	assert.Contains(t, buf.String(), "macro/calorie mismatch")
	assert.Contains(t, buf.String(), `"extreme":true`)

	bad := trusted("chicken breast", 150, models.Nutrients{Calories: math.NaN(), Protein: -3})
	out, issues = v.Validate(bad)
	assert.Equal(t, []string{IssueInvalidValue, IssueInvalidValue}, issueTypes(issues))
	assert.Equal(t, 0.0, out.Nutrients.Calories)
	assert.Equal(t, 0.0, out.Nutrients.Protein)
	assert.Equal(t, 0.0, issues[0].Original)
	assert.Equal(t, -3.0, issues[1].Original)
}

func TestValidate_MinimumPortionScalesNutrients(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	out, issues := v.Validate(unverified("schnitzel", 20, models.Nutrients{Calories: 52, Protein: 4, Carbs: 2.5, Fat: 2.9}))

	assert.Equal(t, []string{IssuePortionTooSmall}, issueTypes(issues))
	assert.Equal(t, 40.0, out.PortionGrams)
	assert.Equal(t, 104.0, out.Nutrients.Calories)
	assert.Equal(t, 8.0, out.Nutrients.Protein)
	assert.Equal(t, 5.8, out.Nutrients.Fat)
	assert.Equal(t, 20.0, out.OriginalValues.PortionGrams)
}

func TestValidate_PortionBandMinimumWins(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())

	// salmon is in the protein band (min 30) and the fish category (min 40).
	out, issues := v.Validate(unverified("salmon", 20, models.Nutrients{Calories: 40, Protein: 4, Fat: 2.6}))
	assert.Equal(t, []string{IssuePortionTooSmall}, issueTypes(issues))
	assert.Equal(t, 30.0, out.PortionGrams)
	assert.Equal(t, 60.0, out.Nutrients.Calories)
	assert.Equal(t, 3.9, out.Nutrients.Fat)

	out, issues = v.Validate(unverified("salmon", 30, models.Nutrients{Calories: 60, Protein: 6, Fat: 3.9}))
	assert.Empty(t, issues)
	assert.Equal(t, 30.0, out.PortionGrams)
}

func TestValidate_UnsweetenedDrinkKeepsCalories(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())

	diet := unverified("diet soda", 330, models.Nutrients{Calories: 33, Protein: 1.7, Carbs: 6.6})
	diet.Unit = "ml"
	out, issues := v.Validate(diet)
	assert.NotContains(t, issueTypes(issues), IssueImpossibleCalories)
	assert.Equal(t, 33.0, out.Nutrients.Calories)
	assert.Zero(t, out.Nutrients.Sugars)

	cola := unverified("cola", 330, models.Nutrients{Calories: 33, Protein: 1.7, Carbs: 6.6})
	cola.Unit = "ml"
	_, issues = v.Validate(cola)
	assert.Contains(t, issueTypes(issues), IssueImpossibleCalories)
}

func TestValidate_MacroMismatchUsesMacros(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	out, issues := v.Validate(unverified("mystery stew", 200, models.Nutrients{Calories: 100, Protein: 30, Carbs: 30, Fat: 10}))

	assert.Equal(t, []string{IssueMacroCalorieMismatch}, issueTypes(issues))
	assert.Equal(t, 330.0, out.Nutrients.Calories)
	assert.Equal(t, 100.0, issues[0].Original)
}

func TestValidate_MissingMacrosEstimated(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	out, issues := v.Validate(unverified("mystery stew", 200, models.Nutrients{Calories: 200}))

	assert.Equal(t, []string{IssueMacrosEstimated}, issueTypes(issues))
	assert.Equal(t, 7.5, out.Nutrients.Protein)
	assert.Equal(t, 25.0, out.Nutrients.Carbs)
	assert.Equal(t, 7.8, out.Nutrients.Fat)
	assert.Equal(t, 200.0, out.Nutrients.Calories)
}

func TestValidate_PlausibleItemUntouched(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	in := unverified("grilled chicken", 150, models.Nutrients{Calories: 300, Protein: 37.5, Fat: 16.7})
	out, issues := v.Validate(in)
	assert.Empty(t, issues)
	assert.False(t, out.WasValidated)
	assert.Equal(t, in.Nutrients, out.Nutrients)
}

func TestValidate_UnverifiedMacroConsistencyHolds(t *testing.T) {
	v := NewValidator(tables.Default(), zerolog.Nop())
	cases := []models.AnalyzedItem{
		unverified("fried potato", 100, models.Nutrients{Calories: 50}),
		unverified("fried potato", 100, models.Nutrients{Calories: 900, Protein: 1, Carbs: 1, Fat: 1}),
		unverified("pizza", 250, models.Nutrients{Calories: 0, Protein: 25, Carbs: 80, Fat: 20}),
		unverified("salad", 10, models.Nutrients{Calories: 400, Fat: 2}),
		unverified("soup", 50, models.Nutrients{Calories: 25}),
		unverified("cake", 80, models.Nutrients{Calories: 320, Carbs: 10}),
		unverified("mystery stew", 300, models.Nutrients{Calories: 2, Protein: 50}),
		unverified("orange juice", 30, models.Nutrients{Calories: 15, Carbs: 3.5}),
	}
	for _, in := range cases {
		out, _ := v.Validate(in)
		n := out.Nutrients
		diff := math.Abs(n.MacroCalories() - n.Calories)
		assert.LessOrEqual(t, diff, math.Max(30, n.Calories*0.25), "%s %+v", in.BaseName, n)
		assert.Equal(t, models.EnergyDensity(n.Calories, out.PortionGrams), n.EnergyDensity)
	}
}
