package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/tables"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// rewriteToServer sends every request to srv while keeping path and query.
func rewriteToServer(srv *httptest.Server) *http.Client {
	target, _ := url.Parse(srv.URL)
	return &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r2 := r.Clone(r.Context())
		r2.URL.Scheme = target.Scheme
		r2.URL.Host = target.Host
		r2.Host = target.Host
		return http.DefaultTransport.RoundTrip(r2)
	})}
}

func TestEdamam_SearchAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id", r.URL.Query().Get("app_id"))
		assert.Equal(t, "key", r.URL.Query().Get("app_key"))
		switch r.URL.Path {
		case "/api/food-database/v2/parser":
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "chicken breast", r.URL.Query().Get("ingr"))
			_, _ = w.Write([]byte(`{"hints":[
				{"food":{"foodId":"food_a","label":"Chicken Breast","category":"Generic foods"}},
				{"food":{"foodId":"food_a","label":"Chicken Breast","category":"Generic foods"}},
				{"food":{"foodId":"food_b","label":"Chicken Nuggets"}},
				{"food":{"foodId":"","label":"Chicken Breast"}}
			]}`))
		case "/api/food-database/v2/nutrients":
			assert.Equal(t, http.MethodPost, r.Method)
			var body struct {
				Ingredients []struct {
					Quantity   float64 `json:"quantity"`
					MeasureURI string  `json:"measureURI"`
					FoodID     string  `json:"foodId"`
				} `json:"ingredients"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Ingredients, 1)
			assert.Equal(t, "food_a", body.Ingredients[0].FoodID)
			assert.Equal(t, 100.0, body.Ingredients[0].Quantity)
			assert.Equal(t, edamamGramMeasure, body.Ingredients[0].MeasureURI)
			_, _ = w.Write([]byte(`{"totalNutrients":{
				"ENERC_KCAL":{"quantity":165},"PROCNT":{"quantity":31},"CHOCDF":{"quantity":0},
				"FAT":{"quantity":3.6},"FASAT":{"quantity":1},"SUGAR":{"quantity":0}
			}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewEdamam(EdamamConfig{AppID: "id", AppKey: "key", BaseURL: srv.URL + "/", Client: srv.Client()}, tables.Default())
	assert.Equal(t, "edamam", src.ID())

	cands, err := src.Search(context.Background(), "chicken breast", SearchOptions{MinScore: 0.7, MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, Candidate{ID: "food_a", Description: "Chicken Breast", Score: 1, Category: models.CategorySolid}, cands[0])

	n, err := src.FetchNormalized(context.Background(), "food_a")
	require.NoError(t, err)
	assert.Equal(t, models.Nutrients{Calories: 165, Protein: 31, Fat: 3.6, SaturatedFat: 1}, n)
}

func TestEdamam_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewEdamam(EdamamConfig{BaseURL: srv.URL, Client: srv.Client()}, tables.Default())
	_, err := src.Search(context.Background(), "rice", SearchOptions{})
	assert.True(t, IsRateLimited(err))

	_, err = src.FetchNormalized(context.Background(), "food_x")
	assert.True(t, IsRateLimited(err))
}

func TestUSDA_SearchAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/fdc/v1/foods/search":
			q := r.URL.Query()
			assert.Equal(t, "orange juice", q.Get("query"))
			assert.Equal(t, "6", q.Get("pageSize"))
			assert.Equal(t, "Foundation,SR Legacy,Survey (FNDDS)", q.Get("dataType"))
			_, _ = w.Write([]byte(`{"foods":[
				{"fdcId":169098,"description":"Orange juice, raw","foodCategory":"Fruits and Fruit Juices","servingSize":248,"servingSizeUnit":"g"},
				{"fdcId":0,"description":"Orange juice"},
				{"fdcId":171688,"description":"Apples, raw, with skin","foodCategory":"Fruits and Fruit Juices"}
			]}`))
		case "/fdc/v1/food/169098":
			_, _ = w.Write([]byte(`{"foodNutrients":[
				{"nutrient":{"id":2047},"amount":47},
				{"nutrient":{"id":1003},"amount":0.7},
				{"nutrient":{"id":1005},"amount":10.4},
				{"nutrient":{"id":1004},"amount":0.2},
				{"nutrient":{"id":1079},"amount":0.2},
				{"nutrient":{"id":2000},"amount":8.4},
				{"nutrient":{"id":1258},"amount":0.02}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewUSDA(USDAConfig{APIKey: "demo", Client: rewriteToServer(srv)}, tables.Default())
	assert.Equal(t, "usda", src.ID())

	cands, err := src.Search(context.Background(), "orange juice", SearchOptions{MinScore: 0.7, MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "169098", cands[0].ID)
	assert.Equal(t, models.CategoryDrink, cands[0].Category)
	assert.Equal(t, 248.0, cands[0].DefaultPortion)
	assert.Equal(t, 1.0, cands[0].Score)

	n, err := src.FetchNormalized(context.Background(), "169098")
	require.NoError(t, err)
	assert.Equal(t, models.Nutrients{Calories: 47, Protein: 0.7, Carbs: 10.4, Fat: 0.2, Fiber: 0.2, Sugars: 8.4, SaturatedFat: 0.02}, n)

	_, err = src.FetchNormalized(context.Background(), "1")
	assert.True(t, IsNotFound(err))
}

func TestUSDA_PrefersMeasuredEnergy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"foodNutrients":[
			{"nutrient":{"id":2047},"amount":120},
			{"nutrient":{"id":2048},"amount":115},
			{"nutrient":{"id":1008},"amount":110}
		]}`))
	}))
	defer srv.Close()

	src := NewUSDA(USDAConfig{BaseURL: srv.URL, Client: srv.Client()}, tables.Default())
	n, err := src.FetchNormalized(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 110.0, n.Calories)
}

func TestUSDA_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	src := NewUSDA(USDAConfig{BaseURL: base}, tables.Default())
	_, err := src.Search(context.Background(), "rice", SearchOptions{})
	var se *SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "usda", se.Source)
	assert.Zero(t, se.StatusCode)
}
