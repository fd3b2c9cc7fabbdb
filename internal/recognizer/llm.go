package recognizer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/gateway"
	"mcp-meal-analyzer/internal/models"
)

// Completer is the subset of gateway.Client used by LLM.
type Completer interface {
	Complete(ctx context.Context, req gateway.CompletionRequest) (string, error)
}

// LLM recognizes meals through the completion gateway. It accepts both text
// and images.
type LLM struct {
	gw  Completer
	log zerolog.Logger
}

func NewLLM(gw Completer, log zerolog.Logger) *LLM {
	return &LLM{gw: gw, log: log}
}

const llmSystemPrompt = `You are a nutrition expert that identifies the foods and drinks in a meal.

IMPORTANT: Always respond with valid JSON in this exact format:
{
  "components": [
    {
      "name": "specific food name in English",
      "preparation": "grilled|fried|boiled|raw|...",
      "portion": {"value": [number], "unit": "g|ml"},
      "confidence": [number between 0 and 1],
      "category": "drink|solid",
      "minor": [true if it is a condiment, garnish or side under 30 g],
      "tags": ["visible cooking cues such as oil, butter, dressing, sauce"],
      "estimated_nutrients": {"calories": [number], "protein": [number], "carbs": [number], "fat": [number], "fiber": [number], "sugars": [number], "saturated_fat": [number]}
    }
  ]
}

Nutrient estimates are for the stated portion. Report one entry per distinct food. Use English food names even when the description is in another language.`

func userPrompt(in Input, locale, mode string) string {
	var b strings.Builder
	if in.IsImage() {
		b.WriteString("Identify every food and drink in this photo.")
	} else {
		fmt.Fprintf(&b, "Identify every food and drink in this meal description: %q", in.Text)
	}
	if locale != "" {
		fmt.Fprintf(&b, "\nThe user's locale is %s.", locale)
	}
	if mode == ModeQuick {
		b.WriteString("\nList only the main items; skip condiments and garnishes, and omit tags.")
	} else {
		b.WriteString("\nInclude condiments, sauces, cooking fats and garnishes as separate minor items, and describe the preparation method.")
	}
	return b.String()
}

// Extract asks the gateway for a component list.
func (r *LLM) Extract(ctx context.Context, in Input, locale, mode string) ([]models.DetectedComponent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	mode = NormalizeMode(mode)

	prompt := userPrompt(in, locale, mode)
	var content any = prompt
	if in.IsImage() {
		dataURI := "data:" + in.ImageMIME() + ";base64," + base64.StdEncoding.EncodeToString(in.Image)
		content = []gateway.Part{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &gateway.ImageURL{URL: dataURI}},
		}
	}

	out, err := r.gw.Complete(ctx, gateway.CompletionRequest{
		SystemPrompt: llmSystemPrompt,
		Messages:     []gateway.Message{{Role: "user", Content: content}},
		MaxTokens:    2000,
		Temperature:  0.1,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.log.Error().Err(err).Bool("image", in.IsImage()).Msg("recognizer call failed")
		return nil, apperr.Recognition(err)
	}

	comps, err := parseComponents(out, r.log)
	if err != nil {
		r.log.Error().Err(err).Msg("recognizer returned an unreadable response")
		return nil, apperr.Recognition(err)
	}
	r.log.Debug().Int("components", len(comps)).Str("mode", mode).Msg("recognizer extracted components")
	return comps, nil
}

type wireComponent struct {
	Name        string   `json:"name"`
	Preparation string   `json:"preparation"`
	Tags        []string `json:"tags"`
	Portion     *struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	} `json:"portion"`
	Confidence         *float64          `json:"confidence"`
	Category           string            `json:"category"`
	Minor              bool              `json:"minor"`
	EstimatedNutrients *models.Nutrients `json:"estimated_nutrients"`
}

var errNoJSON = errors.New("no JSON object in recognizer response")

// parseComponents reads the completion. A response without a components list
// is an error; individual malformed entries are skipped.
func parseComponents(out string, log zerolog.Logger) ([]models.DetectedComponent, error) {
	raw, ok := gateway.ExtractJSON(out)
	if !ok {
		return nil, errNoJSON
	}
	var doc struct {
		Components *[]json.RawMessage `json:"components"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse recognizer JSON: %w", err)
	}
	if doc.Components == nil {
		return nil, errors.New("recognizer response has no components")
	}

	comps := make([]models.DetectedComponent, 0, len(*doc.Components))
	for i, item := range *doc.Components {
		var w wireComponent
		if err := json.Unmarshal(item, &w); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping malformed component")
			continue
		}
		c, ok := w.component()
		if !ok {
			log.Warn().Int("index", i).Msg("skipping component without a name")
			continue
		}
		comps = append(comps, c)
	}
	return comps, nil
}

func (w wireComponent) component() (models.DetectedComponent, bool) {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return models.DetectedComponent{}, false
	}
	c := models.DetectedComponent{
		Name:        name,
		Preparation: strings.TrimSpace(w.Preparation),
		Minor:       w.Minor,
		Category:    normalizeCategory(w.Category),
	}
	for _, t := range w.Tags {
		if t = strings.TrimSpace(t); t != "" {
			c.Tags = append(c.Tags, t)
		}
	}
	if w.Portion != nil {
		if value, unit, ok := normalizeUnit(w.Portion.Value, w.Portion.Unit); ok {
			c.Portion = &models.Portion{Value: value, Unit: unit}
		}
	}
	if w.Confidence != nil && !math.IsNaN(*w.Confidence) {
		conf := math.Max(0, math.Min(1, *w.Confidence))
		c.Confidence = &conf
	}
	if n := w.EstimatedNutrients; n != nil && validEstimate(*n) {
		est := *n
		est.EnergyDensity = 0
		c.EstimatedNutrients = &est
	}
	return c, true
}

func normalizeCategory(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.CategoryDrink, "beverage", "drinks", "beverages":
		return models.CategoryDrink
	case models.CategorySolid, "food":
		return models.CategorySolid
	}
	return models.CategoryUnknown
}

// normalizeUnit converts a portion to grams or millilitres.
func normalizeUnit(value float64, unit string) (float64, string, bool) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, "", false
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ml", "milliliter", "milliliters", "millilitre", "millilitres":
		return value, "ml", true
	case "l", "liter", "liters", "litre", "litres":
		return value * 1000, "ml", true
	case "cl":
		return value * 10, "ml", true
	case "kg":
		return value * 1000, "g", true
	case "oz":
		return value * 28.35, "g", true
	}
	return value, "g", true
}

func validEstimate(n models.Nutrients) bool {
	for _, v := range []float64{n.Calories, n.Protein, n.Carbs, n.Fat, n.Fiber, n.Sugars, n.SaturatedFat} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
