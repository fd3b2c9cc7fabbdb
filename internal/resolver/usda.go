package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

const usdaDefaultBaseURL = "https://api.nal.usda.gov/fdc/v1"

// FoodData Central nutrient ids.
const (
	usdaEnergy          = 1008
	usdaEnergyAtwater   = 2047
	usdaEnergyAtwaterSp = 2048
	usdaProtein         = 1003
	usdaFat             = 1004
	usdaCarbs           = 1005
	usdaFiber           = 1079
	usdaSugars          = 2000
	usdaSaturatedFat    = 1258
)

// USDAConfig configures the FoodData Central source.
type USDAConfig struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// USDA is a Source backed by USDA FoodData Central. Foundation, SR Legacy and
// survey records are reported per 100 g.
type USDA struct {
	apiKey  string
	baseURL string
	client  *http.Client
	tables  *tables.Tables
}

// NewUSDA returns a FoodData Central source.
func NewUSDA(cfg USDAConfig, t *tables.Tables) *USDA {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = usdaDefaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &USDA{apiKey: cfg.APIKey, baseURL: base, client: client, tables: t}
}

func (s *USDA) ID() string { return "usda" }

type usdaSearchResponse struct {
	Foods []struct {
		FdcID           int     `json:"fdcId"`
		Description     string  `json:"description"`
		FoodCategory    string  `json:"foodCategory"`
		ServingSize     float64 `json:"servingSize"`
		ServingSizeUnit string  `json:"servingSizeUnit"`
	} `json:"foods"`
}

// Search queries /foods/search and scores descriptions against query.
func (s *USDA) Search(ctx context.Context, query string, opts SearchOptions) ([]Candidate, error) {
	pageSize := opts.MaxResults * 3
	if pageSize <= 0 {
		pageSize = 15
	}
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("query", query)
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("dataType", "Foundation,SR Legacy,Survey (FNDDS)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/foods/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create usda search request: %w", err)
	}
	body, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var sr usdaSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse usda search JSON: %w", err)
	}

	out := make([]Candidate, 0, len(sr.Foods))
	for _, f := range sr.Foods {
		score := Similarity(s.tables, query, f.Description)
		if f.FdcID == 0 || score < opts.MinScore {
			continue
		}
		category := models.CategorySolid
		if strings.Contains(strings.ToLower(f.FoodCategory), "beverage") || s.tables.IsBeverage(f.Description) {
			category = models.CategoryDrink
		}
		var serving float64
		if strings.EqualFold(f.ServingSizeUnit, "g") || strings.EqualFold(f.ServingSizeUnit, "ml") {
			serving = f.ServingSize
		}
		out = append(out, Candidate{
			ID:             strconv.Itoa(f.FdcID),
			Description:    f.Description,
			Score:          score,
			Category:       category,
			DefaultPortion: serving,
		})
		if opts.MaxResults > 0 && len(out) >= opts.MaxResults {
			break
		}
	}
	return out, nil
}

type usdaFoodResponse struct {
	FoodNutrients []struct {
		Nutrient struct {
			ID int `json:"id"`
		} `json:"nutrient"`
		Amount float64 `json:"amount"`
	} `json:"foodNutrients"`
}

// FetchNormalized loads /food/{id}; values are already per 100 g.
func (s *USDA) FetchNormalized(ctx context.Context, id string) (models.Nutrients, error) {
	q := url.Values{}
	q.Set("api_key", s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/food/"+url.PathEscape(id)+"?"+q.Encode(), nil)
	if err != nil {
		return models.Nutrients{}, fmt.Errorf("failed to create usda food request: %w", err)
	}
	body, err := s.do(req)
	if err != nil {
		return models.Nutrients{}, err
	}

	var fr usdaFoodResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return models.Nutrients{}, fmt.Errorf("failed to parse usda food JSON: %w", err)
	}

	values := make(map[int]float64, len(fr.FoodNutrients))
	for _, n := range fr.FoodNutrients {
		values[n.Nutrient.ID] = n.Amount
	}
	energy := values[usdaEnergy]
	if energy == 0 {
		energy = values[usdaEnergyAtwaterSp]
	}
	if energy == 0 {
		energy = values[usdaEnergyAtwater]
	}
	return models.Nutrients{
		Calories:     energy,
		Protein:      values[usdaProtein],
		Carbs:        values[usdaCarbs],
		Fat:          values[usdaFat],
		Fiber:        values[usdaFiber],
		Sugars:       values[usdaSugars],
		SaturatedFat: values[usdaSaturatedFat],
	}, nil
}

func (s *USDA) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Source: s.ID(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read usda response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Source: s.ID(), StatusCode: resp.StatusCode}
	}
	return body, nil
}
