package models

import "math"

// Nutrients holds per-portion values. EnergyDensity is kcal per 100 g/ml and is
// always derived from Calories and the portion, never copied from a source.
type Nutrients struct {
	Calories      float64 `json:"calories" yaml:"calories"`
	Protein       float64 `json:"protein" yaml:"protein"`
	Carbs         float64 `json:"carbs" yaml:"carbs"`
	Fat           float64 `json:"fat" yaml:"fat"`
	Fiber         float64 `json:"fiber" yaml:"fiber"`
	Sugars        float64 `json:"sugars" yaml:"sugars"`
	SaturatedFat  float64 `json:"saturated_fat" yaml:"saturated_fat"`
	EnergyDensity float64 `json:"energy_density" yaml:"energy_density"`
}

// MacroCalories applies the 4/4/9 rule.
func (n Nutrients) MacroCalories() float64 {
	return n.Protein*4 + n.Carbs*4 + n.Fat*9
}

// HasMacros reports whether any macronutrient is positive.
func (n Nutrients) HasMacros() bool {
	return n.Protein > 0 || n.Carbs > 0 || n.Fat > 0
}

// IsZero reports whether every nutrient value is zero.
func (n Nutrients) IsZero() bool {
	return n.Calories == 0 && !n.HasMacros() && n.Fiber == 0 && n.Sugars == 0 && n.SaturatedFat == 0
}

// Scale multiplies every mass/energy value by f. EnergyDensity is left for the
// caller to recompute against the new portion.
func (n Nutrients) Scale(f float64) Nutrients {
	return Nutrients{
		Calories:      n.Calories * f,
		Protein:       n.Protein * f,
		Carbs:         n.Carbs * f,
		Fat:           n.Fat * f,
		Fiber:         n.Fiber * f,
		Sugars:        n.Sugars * f,
		SaturatedFat:  n.SaturatedFat * f,
		EnergyDensity: n.EnergyDensity,
	}
}

// Add sums two nutrient vectors; EnergyDensity is not summed.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories:     n.Calories + o.Calories,
		Protein:      n.Protein + o.Protein,
		Carbs:        n.Carbs + o.Carbs,
		Fat:          n.Fat + o.Fat,
		Fiber:        n.Fiber + o.Fiber,
		Sugars:       n.Sugars + o.Sugars,
		SaturatedFat: n.SaturatedFat + o.SaturatedFat,
	}
}

// Rounded rounds every value to one decimal.
func (n Nutrients) Rounded() Nutrients {
	return Nutrients{
		Calories:      Round1(n.Calories),
		Protein:       Round1(n.Protein),
		Carbs:         Round1(n.Carbs),
		Fat:           Round1(n.Fat),
		Fiber:         Round1(n.Fiber),
		Sugars:        Round1(n.Sugars),
		SaturatedFat:  Round1(n.SaturatedFat),
		EnergyDensity: Round1(n.EnergyDensity),
	}
}

// WithEnergyDensity returns n with EnergyDensity recomputed for portion grams.
func (n Nutrients) WithEnergyDensity(portion float64) Nutrients {
	n.EnergyDensity = EnergyDensity(n.Calories, portion)
	return n
}

// EnergyDensity returns kcal per 100 units rounded to one decimal, or 0 when
// the portion is not positive.
func EnergyDensity(calories, portion float64) float64 {
	if portion <= 0 {
		return 0
	}
	return Round1(calories / portion * 100)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
