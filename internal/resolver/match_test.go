package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

func TestSimilarity(t *testing.T) {
	tb := tables.Default()
	assert.Equal(t, 1.0, Similarity(tb, "chicken breast", "Chicken Breast"))
	assert.Equal(t, 1.0, Similarity(tb, "apples", "Apple, raw"))
	assert.Equal(t, 0.59, Similarity(tb, "grilled chicken breast", "Chicken, broilers or fryers, breast, meat only, cooked, roasted"))
	assert.Equal(t, 0.5, Similarity(tb, "chicken breast", "Chicken Nuggets"))
	assert.Equal(t, 0.0, Similarity(tb, "", "Chicken"))
	assert.Equal(t, 0.0, Similarity(tb, "rice", "Pasta"))
}

func TestOverlaps(t *testing.T) {
	tb := tables.Default()
	assert.True(t, Overlaps(tb, "rice", "Rice, white, cooked", false))
	assert.False(t, Overlaps(tb, "rice", "Pasta, dry", false))

	assert.False(t, Overlaps(tb, "orange juice", "Orange, raw", true))
	assert.True(t, Overlaps(tb, "orange juice", "Juice, orange, fresh", true))
	assert.True(t, Overlaps(tb, "cola", "Cola soft drink", true))
	assert.False(t, Overlaps(tb, "green smoothie", "Green beans", true))
}

func TestImplausible(t *testing.T) {
	assert.True(t, Implausible(models.Nutrients{Calories: 950}))
	assert.True(t, Implausible(models.Nutrients{Calories: 400, Protein: 101}))
	assert.True(t, Implausible(models.Nutrients{Calories: 400, Protein: 5, Carbs: 5, Fat: 5}))
	assert.False(t, Implausible(models.Nutrients{Calories: 100, Protein: 25}))
	assert.False(t, Implausible(models.Nutrients{Calories: 884, Fat: 100}))
	assert.False(t, Implausible(models.Nutrients{}))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "berry", stem("berries"))
	assert.Equal(t, "tomato", stem("tomatoes"))
	assert.Equal(t, "egg", stem("eggs"))
	assert.Equal(t, "glass", stem("glass"))
	assert.Equal(t, "gas", stem("gas"))
}
