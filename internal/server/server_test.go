package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/recognizer"
	"mcp-meal-analyzer/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeAnalyzer struct {
	inputs  []recognizer.Input
	edits   []models.ManualEdit
	extract error
}

func result(names ...string) *models.AnalysisResult {
	res := &models.AnalysisResult{Locale: "en", SanityIssues: []models.SanityIssue{}}
	for i, n := range names {
		res.Items = append(res.Items, models.AnalyzedItem{
			ID: string(rune('a' + i)), DisplayName: n, BaseName: n, Unit: "g", PortionGrams: 100,
			Nutrients:  models.Nutrients{Calories: 100},
			Provenance: models.ProvenanceFallback,
		})
	}
	res.Totals = models.MealTotals{Nutrients: models.Nutrients{Calories: 100 * float64(len(names))}, ItemCount: len(names)}
	return res
}

func (f *fakeAnalyzer) AnalyzeInput(_ context.Context, in recognizer.Input, locale, _ string) (*models.AnalysisResult, []models.DetectedComponent, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	f.inputs = append(f.inputs, in)
	if f.extract != nil {
		return nil, nil, f.extract
	}
	res := result("Toast")
	res.Locale = locale
	return res, []models.DetectedComponent{{Name: "toast"}}, nil
}

func (f *fakeAnalyzer) AnalyzeComponents(_ context.Context, components []models.DetectedComponent, locale string) (*models.AnalysisResult, error) {
	names := make([]string, 0, len(components))
	for _, c := range components {
		names = append(names, c.Name)
	}
	res := result(names...)
	res.Locale = locale
	return res, nil
}

func (f *fakeAnalyzer) ReanalyzeWithManualEdits(_ context.Context, edits []models.ManualEdit, _ string) (*models.AnalysisResult, error) {
	f.edits = edits
	names := make([]string, 0, len(edits))
	for _, e := range edits {
		if e.Name == "" {
			return nil, apperr.User("edited item name is required")
		}
		names = append(names, e.Name)
	}
	return result(names...), nil
}

func newTestServer(t *testing.T, withStore bool) (*MealAnalyzerServer, *fakeAnalyzer, *storage.SQLiteStorage) {
	t.Helper()
	fa := &fakeAnalyzer{}
	if !withStore {
		return New(Config{Port: 0}, fa, nil, zerolog.Nop()), fa, nil
	}
	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "meals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(Config{Port: 0, Version: "test"}, fa, st, zerolog.Nop()), fa, st
}

func do(t *testing.T, s *MealAnalyzerServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func callTool(t *testing.T, s *MealAnalyzerServer, name string, args map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodPost, "/mcp", map[string]any{"name": name, "arguments": args})
}

// toolText unwraps the single text content of a CallToolResult.
func toolText(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var res struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), out))
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	w := do(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "meal-analyzer")
}

func TestMCP_AnalyzeMealText(t *testing.T) {
	s, fa, st := newTestServer(t, true)

	w := callTool(t, s, "analyze_meal", map[string]any{"text": "buttered toast", "locale": "it"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalysisResponse
	toolText(t, w, &resp)
	require.NotEmpty(t, resp.MealID)
	assert.Equal(t, "it", resp.Result.Locale)
	require.Len(t, resp.Components, 1)
	require.Len(t, fa.inputs, 1)
	assert.Equal(t, "buttered toast", fa.inputs[0].Text)

	meal, err := st.GetMeal(context.Background(), resp.MealID)
	require.NoError(t, err)
	assert.Equal(t, SourceText, meal.Source)
	assert.Equal(t, "buttered toast", meal.Description)
	require.Len(t, meal.Result.Items, 1)
}

func TestMCP_AnalyzeMealImage(t *testing.T) {
	s, fa, st := newTestServer(t, true)
	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

	w := callTool(t, s, "analyze_meal", map[string]any{"image": img})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalysisResponse
	toolText(t, w, &resp)
	require.Len(t, fa.inputs, 1)
	assert.True(t, fa.inputs[0].IsImage())
	assert.Equal(t, "image/png", fa.inputs[0].MIME)

	meal, err := st.GetMeal(context.Background(), resp.MealID)
	require.NoError(t, err)
	assert.Equal(t, SourceImage, meal.Source)
	assert.Equal(t, "meal photo", meal.Description)
}

func TestMCP_Errors(t *testing.T) {
	s, fa, _ := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/mcp", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = callTool(t, s, "log_meal", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = callTool(t, s, "analyze_meal", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = callTool(t, s, "analyze_meal", map[string]any{"image": "data:image/png;base64,%%%"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = callTool(t, s, "analyze_meal", map[string]any{"text": "soup", "timestamp": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "timestamp")

	w = callTool(t, s, "analyze_components", map[string]any{"components": "rice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid parameters")

	fa.extract = apperr.Recognition(errors.New("gateway down"))
	w = callTool(t, s, "analyze_meal", map[string]any{"text": "soup"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])
	assert.NotEmpty(t, body["hint"])
	assert.NotContains(t, w.Body.String(), "gateway down")

	fa.extract = errors.New("boom")
	w = callTool(t, s, "analyze_meal", map[string]any{"text": "soup"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestMCP_ComponentsAndGetMeals(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	w := callTool(t, s, "analyze_components", map[string]any{
		"components": []map[string]any{{"name": "rice"}, {"name": "beans"}},
		"timestamp":  "2025-03-10T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp AnalysisResponse
	toolText(t, w, &resp)
	require.Len(t, resp.Result.Items, 2)

	w = callTool(t, s, "get_meals", map[string]any{"start_date": "2025-03-10", "end_date": "2025-03-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var meals []*models.Meal
	toolText(t, w, &meals)
	require.Len(t, meals, 1)
	assert.Equal(t, resp.MealID, meals[0].ID)
	assert.Equal(t, "rice, beans", meals[0].Description)
	assert.Equal(t, SourceComponents, meals[0].Source)

	w = callTool(t, s, "get_meals", map[string]any{"start_date": "2025-03-11"})
	require.Equal(t, http.StatusOK, w.Code)
	toolText(t, w, &meals)
	assert.Empty(t, meals)

	w = callTool(t, s, "get_meals", map[string]any{"start_date": "03/10/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestREST_ReanalyzeInheritsMeal(t *testing.T) {
	s, fa, st := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/v1/analyses", AnalyzeMealParams{Text: "pasta night", Timestamp: "2025-03-09T19:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = do(t, s, http.MethodPost, "/v1/analyses/reanalyze", ReanalyzeParams{
		MealID: first.MealID,
		Edits:  []models.ManualEdit{{Name: "pasta", PortionGrams: 250}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var second AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.NotEqual(t, first.MealID, second.MealID)
	assert.Equal(t, []models.ManualEdit{{Name: "pasta", PortionGrams: 250}}, fa.edits)

	meal, err := st.GetMeal(context.Background(), second.MealID)
	require.NoError(t, err)
	assert.Equal(t, "pasta night", meal.Description)
	assert.Equal(t, SourceManual, meal.Source)
	assert.Equal(t, "2025-03-09", meal.Timestamp.UTC().Format(dateLayout))

	w = do(t, s, http.MethodPost, "/v1/analyses/reanalyze", ReanalyzeParams{
		MealID: "missing",
		Edits:  []models.ManualEdit{{Name: "pasta", PortionGrams: 250}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/v1/analyses/reanalyze", ReanalyzeParams{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/analyses/reanalyze", ReanalyzeParams{Edits: []models.ManualEdit{{PortionGrams: 10}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestREST_ListAndGet(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	for _, name := range []string{"eggs", "salad", "soup"} {
		w := do(t, s, http.MethodPost, "/v1/analyses/components", AnalyzeComponentsParams{
			Components: []models.DetectedComponent{{Name: name}},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, s, http.MethodGet, "/v1/analyses?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Meals []*models.Meal `json:"meals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Meals, 2)

	w = do(t, s, http.MethodGet, "/v1/analyses/"+list.Meals[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meal models.Meal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meal))
	assert.Equal(t, list.Meals[0].ID, meal.ID)

	w = do(t, s, http.MethodGet, "/v1/analyses/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/v1/analyses?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithoutStore(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	w := do(t, s, http.MethodPost, "/v1/analyses", AnalyzeMealParams{Text: "toast"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.MealID)
	require.NotNil(t, resp.Result)

	w = do(t, s, http.MethodGet, "/v1/analyses", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/v1/analyses", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPInfo(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	w := do(t, s, http.MethodGet, "/mcp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, tool := range []string{"analyze_meal", "analyze_components", "reanalyze_meal", "get_meals"} {
		assert.Contains(t, w.Body.String(), tool)
	}
}
