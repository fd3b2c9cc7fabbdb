package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"
)

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var tools = []toolInfo{
	{"analyze_meal", "Recognize a meal from text or a photo and return nutrients, sanity issues and a health score"},
	{"analyze_components", "Analyze an already detected list of food components"},
	{"reanalyze_meal", "Recompute an analysis from user-corrected item names and portions"},
	{"get_meals", "List stored analyses by date range"},
}

// extractParams converts the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target any) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

func (s *MealAnalyzerServer) handleMCPInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"server": s.info, "tools": tools})
}

func (s *MealAnalyzerServer) handleMCP(c *gin.Context) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	ctx := c.Request.Context()
	var data any
	var err error
	switch request.Name {
	case "analyze_meal":
		data, err = s.handleAnalyzeMeal(ctx, &request)
	case "analyze_components":
		data, err = s.handleAnalyzeComponents(ctx, &request)
	case "reanalyze_meal":
		data, err = s.handleReanalyzeMeal(ctx, &request)
	case "get_meals":
		data, err = s.handleGetMeals(ctx, &request)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown tool: %s", request.Name)})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := createJSONResponse(data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *MealAnalyzerServer) handleAnalyzeMeal(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var params AnalyzeMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	return s.analyzeMeal(ctx, params)
}

func (s *MealAnalyzerServer) handleAnalyzeComponents(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var params AnalyzeComponentsParams
	if err := extractParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	return s.analyzeComponents(ctx, params)
}

func (s *MealAnalyzerServer) handleReanalyzeMeal(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var params ReanalyzeParams
	if err := extractParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	return s.reanalyze(ctx, params)
}

func (s *MealAnalyzerServer) handleGetMeals(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var params GetMealsParams
	if err := extractParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	return s.listMeals(ctx, params)
}
