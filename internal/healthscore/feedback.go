package healthscore

import "mcp-meal-analyzer/internal/models"

const (
	maxFeedback       = 6
	surplusCalories   = 800
	snackCalories     = 300
	weakFactorScore   = 40
	strongFactorScore = 80
)

type factorRule struct {
	score      func(models.FactorScores) float64
	weak       string
	strong     string
	skipDrinks bool
}

// factorRules is walked in order for warnings, then again for positives.
var factorRules = []factorRule{
	{func(f models.FactorScores) float64 { return f.Protein }, CodeLowProtein, CodeGoodProtein, true},
	{func(f models.FactorScores) float64 { return f.Fiber }, CodeLowFiber, CodeGoodFiber, true},
	{func(f models.FactorScores) float64 { return f.SaturatedFat }, CodeHighSaturatedFat, CodeLowSaturatedFat, false},
	{func(f models.FactorScores) float64 { return f.Sugars }, CodeHighSugar, CodeLowSugar, false},
	{func(f models.FactorScores) float64 { return f.EnergyDensity }, CodeHighEnergyDensity, CodeLowEnergyDensity, false},
}

func feedback(hs models.HealthScore, meal Meal, locale string) []models.Feedback {
	out := make([]models.Feedback, 0, maxFeedback)
	add := func(typ, code string) {
		if len(out) < maxFeedback {
			out = append(out, models.Feedback{Type: typ, Code: code, Message: Message(locale, code)})
		}
	}

	switch hs.Level {
	case models.LevelExcellent:
		add(models.FeedbackPositive, CodeOverallExcellent)
	case models.LevelGood:
		add(models.FeedbackPositive, CodeOverallGood)
	case models.LevelAverage:
		add(models.FeedbackWarning, CodeOverallAverage)
	default:
		add(models.FeedbackWarning, CodeOverallPoor)
	}

	cal := meal.Totals.Calories
	if cal >= surplusCalories {
		add(models.FeedbackWarning, CodeCalorieSurplus)
	} else if cal > 0 && cal <= snackCalories && !meal.BeverageOnly {
		add(models.FeedbackWarning, CodeLightMeal)
	}

	for _, r := range factorRules {
		if r.skipDrinks && meal.BeverageOnly {
			continue
		}
		if r.score(hs.Factors) < weakFactorScore {
			add(models.FeedbackWarning, r.weak)
		}
	}
	for _, r := range factorRules {
		if r.skipDrinks && meal.BeverageOnly {
			continue
		}
		if r.score(hs.Factors) >= strongFactorScore {
			add(models.FeedbackPositive, r.strong)
		}
	}
	return out
}
