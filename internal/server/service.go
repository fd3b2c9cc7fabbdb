package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/recognizer"
)

// Meal sources recorded with each persisted analysis.
const (
	SourceImage      = "image"
	SourceText       = "text"
	SourceComponents = "components"
	SourceManual     = "manual"
)

const (
	defaultLocale    = "en"
	defaultMealLimit = 20
	maxMealLimit     = 200
	dateLayout       = "2006-01-02"
)

var errStoreDisabled = errors.New("meal storage is not configured")

type AnalyzeMealParams struct {
	Text      string `json:"text,omitempty" description:"Free-text description of the meal"`
	Image     string `json:"image,omitempty" description:"Meal photo as base64 or a data URI; wins over text"`
	Locale    string `json:"locale,omitempty" description:"Locale for names and feedback (defaults to en)"`
	Mode      string `json:"mode,omitempty" description:"quick or detailed (default)"`
	Timestamp string `json:"timestamp,omitempty" description:"ISO timestamp of when the meal was eaten (defaults to now)"`
}

type AnalyzeComponentsParams struct {
	Description string                     `json:"description,omitempty" description:"Label stored with the analysis"`
	Components  []models.DetectedComponent `json:"components" description:"Detected food components"`
	Locale      string                     `json:"locale,omitempty"`
	Timestamp   string                     `json:"timestamp,omitempty"`
}

type ReanalyzeParams struct {
	MealID    string              `json:"meal_id,omitempty" description:"Stored meal whose description and timestamp are reused"`
	Edits     []models.ManualEdit `json:"edits" description:"User-corrected items (name and portion in grams)"`
	Locale    string              `json:"locale,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

type GetMealsParams struct {
	StartDate string `json:"start_date,omitempty" form:"start_date" description:"Start date for meal query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" form:"end_date" description:"End date for meal query (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" form:"limit" description:"Maximum number of meals to return"`
}

// AnalysisResponse is returned by every analysis operation. MealID is empty
// when the result was not persisted.
type AnalysisResponse struct {
	MealID     string                     `json:"meal_id,omitempty"`
	Components []models.DetectedComponent `json:"components,omitempty"`
	Result     *models.AnalysisResult     `json:"result"`
}

func (s *MealAnalyzerServer) analyzeMeal(ctx context.Context, p AnalyzeMealParams) (*AnalysisResponse, error) {
	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return nil, err
	}

	in := recognizer.Input{Text: p.Text}
	source, description := SourceText, strings.TrimSpace(p.Text)
	if p.Image != "" {
		img, err := recognizer.DecodeDataURI(p.Image)
		if err != nil {
			return nil, err
		}
		in.Image, in.MIME = img.Image, img.MIME
		source = SourceImage
		if description == "" {
			description = "meal photo"
		}
	}

	res, components, err := s.analyzer.AnalyzeInput(ctx, in, localeOr(p.Locale), p.Mode)
	if err != nil {
		return nil, err
	}
	return &AnalysisResponse{
		MealID:     s.persist(ctx, description, source, ts, res),
		Components: components,
		Result:     res,
	}, nil
}

func (s *MealAnalyzerServer) analyzeComponents(ctx context.Context, p AnalyzeComponentsParams) (*AnalysisResponse, error) {
	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return nil, err
	}
	res, err := s.analyzer.AnalyzeComponents(ctx, p.Components, localeOr(p.Locale))
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = describe(res)
	}
	return &AnalysisResponse{
		MealID: s.persist(ctx, description, SourceComponents, ts, res),
		Result: res,
	}, nil
}

func (s *MealAnalyzerServer) reanalyze(ctx context.Context, p ReanalyzeParams) (*AnalysisResponse, error) {
	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(p.Edits) == 0 {
		return nil, apperr.User("at least one edited item is required")
	}

	description := ""
	if p.MealID != "" {
		prev, err := s.getMeal(ctx, p.MealID)
		if err != nil {
			return nil, err
		}
		description = prev.Description
		if ts.IsZero() {
			ts = prev.Timestamp
		}
	}

	res, err := s.analyzer.ReanalyzeWithManualEdits(ctx, p.Edits, localeOr(p.Locale))
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = describe(res)
	}
	return &AnalysisResponse{
		MealID: s.persist(ctx, description, SourceManual, ts, res),
		Result: res,
	}, nil
}

func (s *MealAnalyzerServer) listMeals(ctx context.Context, p GetMealsParams) ([]*models.Meal, error) {
	if s.store == nil {
		return nil, errStoreDisabled
	}
	for _, d := range []string{p.StartDate, p.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return nil, apperr.Userf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}
	if p.Limit <= 0 {
		p.Limit = defaultMealLimit
	}
	p.Limit = min(p.Limit, maxMealLimit)
	meals, err := s.store.GetMeals(ctx, p.StartDate, p.EndDate, p.Limit)
	if err != nil {
		return nil, err
	}
	if meals == nil {
		meals = []*models.Meal{}
	}
	return meals, nil
}

func (s *MealAnalyzerServer) getMeal(ctx context.Context, id string) (*models.Meal, error) {
	if s.store == nil {
		return nil, errStoreDisabled
	}
	return s.store.GetMeal(ctx, id)
}

// persist stores the result and returns the new meal id. Storage failures are
// logged and leave the id empty; the analysis itself is still returned.
func (s *MealAnalyzerServer) persist(ctx context.Context, description, source string, ts time.Time, res *models.AnalysisResult) string {
	if s.store == nil || res == nil {
		return ""
	}
	meal := &models.Meal{
		Description: description,
		Timestamp:   ts,
		Source:      source,
		Result:      *res,
	}
	if err := s.store.SaveMeal(ctx, meal); err != nil {
		s.log.Error().Err(err).Str("source", source).Msg("failed to save meal")
		return ""
	}
	return meal.ID
}

func parseTimestamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Userf("invalid timestamp %q, expected RFC 3339", v)
	}
	return ts, nil
}

func localeOr(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return defaultLocale
	}
	return locale
}

// describe joins item names for meals stored without a caller description.
func describe(res *models.AnalysisResult) string {
	names := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		names = append(names, it.DisplayName)
	}
	return strings.Join(names, ", ")
}
