package models

import "time"

// MealTotals sums every item; EnergyDensity is recomputed from the sums.
type MealTotals struct {
	Nutrients
	PortionGrams float64 `json:"portion_grams"`
	ItemCount    int     `json:"item_count"`
}

// Health levels.
const (
	LevelPoor      = "poor"
	LevelAverage   = "average"
	LevelGood      = "good"
	LevelExcellent = "excellent"
)

// FactorScores holds the five 0-100 sub-scores.
type FactorScores struct {
	Protein       float64 `json:"protein"`
	Fiber         float64 `json:"fiber"`
	SaturatedFat  float64 `json:"saturated_fat"`
	Sugars        float64 `json:"sugars"`
	EnergyDensity float64 `json:"energy_density"`
}

// Feedback entry types.
const (
	FeedbackPositive = "positive"
	FeedbackWarning  = "warning"
)

// Feedback is one localized, coded remark about the meal.
type Feedback struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthScore is computed once per meal and never edited afterwards.
type HealthScore struct {
	Total      float64      `json:"total"`
	Weighted   float64      `json:"weighted"`
	Level      string       `json:"level"`
	Grade      string       `json:"grade"`
	Factors    FactorScores `json:"factors"`
	Guardrail  string       `json:"guardrail,omitempty"`
	Feedback   []Feedback   `json:"feedback"`
	Diagnostic string       `json:"diagnostic,omitempty"`
}

// Sanity issue severities.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// SanityIssue is produced fresh on every evaluation.
type SanityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	ItemID   string `json:"item_id,omitempty"`
}

// AnalysisResult is the outward result of one analysis.
type AnalysisResult struct {
	Items        []AnalyzedItem `json:"items"`
	Totals       MealTotals     `json:"totals"`
	HealthScore  HealthScore    `json:"health_score"`
	SanityIssues []SanityIssue  `json:"sanity_issues"`
	IsSuspicious bool           `json:"is_suspicious"`
	NeedsReview  bool           `json:"needs_review"`
	Locale       string         `json:"locale"`
}

// Meal is a persisted analysis.
type Meal struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Source      string         `json:"source"` // "image", "text", "components", "manual"
	Result      AnalysisResult `json:"result"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
