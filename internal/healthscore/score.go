// Package healthscore maps meal totals to a bounded 0-100 wellness score with
// five factor sub-scores, guardrail floors and localized feedback.
package healthscore

import (
	"errors"
	"math"

	"mcp-meal-analyzer/internal/models"
)

// Weights controls how the five factors combine. They are normalized by their
// sum, so only the ratios matter.
type Weights struct {
	Protein       float64 `json:"protein" mapstructure:"protein"`
	Fiber         float64 `json:"fiber" mapstructure:"fiber"`
	SaturatedFat  float64 `json:"saturated_fat" mapstructure:"saturated-fat"`
	Sugars        float64 `json:"sugars" mapstructure:"sugars"`
	EnergyDensity float64 `json:"energy_density" mapstructure:"energy-density"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{Protein: 0.25, Fiber: 0.20, SaturatedFat: 0.20, Sugars: 0.15, EnergyDensity: 0.20}
}

// Validate rejects negative weights and an all-zero set.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Protein, w.Fiber, w.SaturatedFat, w.Sugars, w.EnergyDensity} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("score weights must be finite and non-negative")
		}
	}
	if w.sum() <= 0 {
		return errors.New("score weights must not all be zero")
	}
	return nil
}

func (w Weights) sum() float64 {
	return w.Protein + w.Fiber + w.SaturatedFat + w.Sugars + w.EnergyDensity
}

// Guardrail names.
const (
	GuardrailCleanLowCalorie  = "clean_low_calorie"
	GuardrailZeroCalorieDrink = "zero_calorie_drink"
	GuardrailPlainDrink       = "plain_coffee_tea"
)

// Meal describes what is being scored. BeverageOnly is set when every item is
// a drink.
type Meal struct {
	Totals       models.MealTotals
	BeverageOnly bool
}

// MealFromItems builds a Meal from analyzed items and their totals.
func MealFromItems(items []models.AnalyzedItem, totals models.MealTotals) Meal {
	bev := len(items) > 0
	for _, it := range items {
		if it.Beverage == nil && it.Unit != "ml" {
			bev = false
			break
		}
	}
	return Meal{Totals: totals, BeverageOnly: bev}
}

// Calculator computes health scores with a fixed weighting.
type Calculator struct {
	weights Weights
}

// NewCalculator validates w and returns a calculator.
func NewCalculator(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w}, nil
}

// Score computes the health score for a meal. It never fails: a meal without
// usable data gets a zero score and a diagnostic.
func (c *Calculator) Score(meal Meal, locale string) models.HealthScore {
	t := meal.Totals
	if t.ItemCount == 0 || (t.Calories <= 0 && t.PortionGrams <= 0) {
		return models.HealthScore{
			Level:      models.LevelPoor,
			Grade:      "F",
			Diagnostic: CodeInsufficientData,
			Feedback: []models.Feedback{{
				Type:    models.FeedbackWarning,
				Code:    CodeInsufficientData,
				Message: Message(locale, CodeInsufficientData),
			}},
		}
	}

	f := Factors(t)
	w := c.weights
	weighted := math.Round((f.Protein*w.Protein +
		f.Fiber*w.Fiber +
		f.SaturatedFat*w.SaturatedFat +
		f.Sugars*w.Sugars +
		f.EnergyDensity*w.EnergyDensity) / w.sum())

	total := weighted
	guardrail, floor := guardrailFloor(meal, f)
	if floor > total {
		total = floor
	} else {
		guardrail = ""
	}

	hs := models.HealthScore{
		Total:     total,
		Weighted:  weighted,
		Level:     Level(total),
		Grade:     Grade(total),
		Factors:   f,
		Guardrail: guardrail,
	}
	hs.Feedback = feedback(hs, meal, locale)
	return hs
}

// Factors computes the five 0-100 sub-scores from totals.
func Factors(t models.MealTotals) models.FactorScores {
	var f models.FactorScores
	if t.Calories > 0 {
		f.Protein = ramp(t.Protein/t.Calories*1000, 0, 15)
		f.Fiber = ramp(t.Fiber/t.Calories*1000, 0, 14)
		f.Sugars = 100 - ramp(t.Sugars*4/t.Calories*100, 0, 25)
	} else {
		f.Sugars = 100
	}
	if t.Fat > 0 {
		f.SaturatedFat = 100 - ramp(t.SaturatedFat/t.Fat*100, 0, 40)
	} else {
		f.SaturatedFat = 100
	}
	f.EnergyDensity = 100 - ramp(t.EnergyDensity/100, 0.5, 3.0)

	f.Protein = models.Round1(f.Protein)
	f.Fiber = models.Round1(f.Fiber)
	f.SaturatedFat = models.Round1(f.SaturatedFat)
	f.Sugars = models.Round1(f.Sugars)
	f.EnergyDensity = models.Round1(f.EnergyDensity)
	return f
}

// ramp maps v linearly from [lo, hi] onto [0, 100], clamped.
func ramp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v <= lo {
		return 0
	}
	if v >= hi {
		return 100
	}
	return (v - lo) / (hi - lo) * 100
}

func guardrailFloor(meal Meal, f models.FactorScores) (string, float64) {
	cal := meal.Totals.Calories
	switch {
	case meal.BeverageOnly && cal <= 5:
		return GuardrailZeroCalorieDrink, 90
	case meal.BeverageOnly && cal <= 30 && f.Sugars >= 80 && f.SaturatedFat >= 80:
		return GuardrailPlainDrink, 85
	case cal <= 80 && f.Sugars >= 80 && f.SaturatedFat >= 80 && f.EnergyDensity >= 80:
		return GuardrailCleanLowCalorie, 80
	}
	return "", 0
}

// Level buckets a total score.
func Level(total float64) string {
	switch {
	case total < 40:
		return models.LevelPoor
	case total < 60:
		return models.LevelAverage
	case total < 80:
		return models.LevelGood
	default:
		return models.LevelExcellent
	}
}

// Grade maps a total score to a letter grade.
func Grade(total float64) string {
	switch {
	case total >= 90:
		return "A"
	case total >= 80:
		return "B"
	case total >= 70:
		return "C"
	case total >= 60:
		return "D"
	default:
		return "F"
	}
}
