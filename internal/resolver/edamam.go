package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

const (
	edamamDefaultBaseURL = "https://api.edamam.com"
	edamamGramMeasure    = "http://www.edamam.com/ontologies/edamam.owl#Measure_gram"
)

// EdamamConfig configures the Edamam Food Database source.
type EdamamConfig struct {
	AppID   string
	AppKey  string
	BaseURL string
	Client  *http.Client
}

// Edamam is a Source backed by the Edamam Food Database parser and nutrients
// endpoints.
type Edamam struct {
	appID, appKey string
	baseURL       string
	client        *http.Client
	tables        *tables.Tables
}

// NewEdamam returns an Edamam source.
func NewEdamam(cfg EdamamConfig, t *tables.Tables) *Edamam {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = edamamDefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Edamam{appID: cfg.AppID, appKey: cfg.AppKey, baseURL: base, client: client, tables: t}
}

func (s *Edamam) ID() string { return "edamam" }

type edamamParserResponse struct {
	Hints []struct {
		Food struct {
			FoodID        string             `json:"foodId"`
			Label         string             `json:"label"`
			Category      string             `json:"category"`
			CategoryLabel string             `json:"categoryLabel"`
			Nutrients     map[string]float64 `json:"nutrients"`
		} `json:"food"`
	} `json:"hints"`
}

// Search calls the parser endpoint and scores each hint against query.
func (s *Edamam) Search(ctx context.Context, query string, opts SearchOptions) ([]Candidate, error) {
	q := url.Values{}
	q.Set("ingr", query)
	q.Set("app_id", s.appID)
	q.Set("app_key", s.appKey)
	q.Set("nutrition-type", "logging")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/food-database/v2/parser?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create edamam parser request: %w", err)
	}
	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var pr edamamParserResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse edamam parser JSON: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]Candidate, 0, len(pr.Hints))
	for _, h := range pr.Hints {
		if h.Food.FoodID == "" || seen[h.Food.FoodID] {
			continue
		}
		seen[h.Food.FoodID] = true
		score := Similarity(s.tables, query, h.Food.Label)
		if score < opts.MinScore {
			continue
		}
		category := models.CategorySolid
		if s.tables.IsBeverage(h.Food.Label) {
			category = models.CategoryDrink
		}
		out = append(out, Candidate{ID: h.Food.FoodID, Description: h.Food.Label, Score: score, Category: category})
		if opts.MaxResults > 0 && len(out) >= opts.MaxResults {
			break
		}
	}
	return out, nil
}

type edamamNutrientsResponse struct {
	TotalNutrients map[string]struct {
		Quantity float64 `json:"quantity"`
	} `json:"totalNutrients"`
}

// FetchNormalized requests nutrients for 100 g of the food.
func (s *Edamam) FetchNormalized(ctx context.Context, id string) (models.Nutrients, error) {
	payload := map[string]any{
		"ingredients": []map[string]any{{
			"quantity":   100,
			"measureURI": edamamGramMeasure,
			"foodId":     id,
		}},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return models.Nutrients{}, fmt.Errorf("failed to marshal edamam nutrients payload: %w", err)
	}

	q := url.Values{}
	q.Set("app_id", s.appID)
	q.Set("app_key", s.appKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/food-database/v2/nutrients?"+q.Encode(), bytes.NewReader(b))
	if err != nil {
		return models.Nutrients{}, fmt.Errorf("failed to create edamam nutrients request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return models.Nutrients{}, err
	}
	var nr edamamNutrientsResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return models.Nutrients{}, fmt.Errorf("failed to parse edamam nutrients JSON: %w", err)
	}
	get := func(code string) float64 { return nr.TotalNutrients[code].Quantity }
	return models.Nutrients{
		Calories:     get("ENERC_KCAL"),
		Protein:      get("PROCNT"),
		Carbs:        get("CHOCDF"),
		Fat:          get("FAT"),
		Fiber:        get("FIBTG"),
		Sugars:       get("SUGAR"),
		SaturatedFat: get("FASAT"),
	}, nil
}

func (s *Edamam) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: s.ID(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read edamam response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: s.ID(), StatusCode: resp.StatusCode}
	}
	return body, nil
}
