package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mcp-meal-analyzer/internal/apperr"
)

func invalidParams(err error) error {
	return apperr.Userf("invalid parameters: %v", err)
}

func (s *MealAnalyzerServer) handleCreateAnalysis(c *gin.Context) {
	var p AnalyzeMealParams
	if err := c.ShouldBindJSON(&p); err != nil {
		s.writeError(c, invalidParams(err))
		return
	}
	resp, err := s.analyzeMeal(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *MealAnalyzerServer) handleCreateComponentAnalysis(c *gin.Context) {
	var p AnalyzeComponentsParams
	if err := c.ShouldBindJSON(&p); err != nil {
		s.writeError(c, invalidParams(err))
		return
	}
	resp, err := s.analyzeComponents(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *MealAnalyzerServer) handleReanalyze(c *gin.Context) {
	var p ReanalyzeParams
	if err := c.ShouldBindJSON(&p); err != nil {
		s.writeError(c, invalidParams(err))
		return
	}
	resp, err := s.reanalyze(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *MealAnalyzerServer) handleListAnalyses(c *gin.Context) {
	var p GetMealsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		s.writeError(c, invalidParams(err))
		return
	}
	meals, err := s.listMeals(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

func (s *MealAnalyzerServer) handleGetAnalysis(c *gin.Context) {
	meal, err := s.getMeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}
