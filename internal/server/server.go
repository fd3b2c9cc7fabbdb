// Package server exposes the analysis pipeline over HTTP: a REST API under
// /v1 and an MCP tools/call endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
	"mcp-meal-analyzer/internal/recognizer"
	"mcp-meal-analyzer/internal/storage"
)

// Analyzer is the analysis pipeline as seen by the transport layer.
type Analyzer interface {
	AnalyzeInput(ctx context.Context, in recognizer.Input, locale, mode string) (*models.AnalysisResult, []models.DetectedComponent, error)
	AnalyzeComponents(ctx context.Context, components []models.DetectedComponent, locale string) (*models.AnalysisResult, error)
	ReanalyzeWithManualEdits(ctx context.Context, edits []models.ManualEdit, locale string) (*models.AnalysisResult, error)
}

// MealStore persists analyses. storage.SQLiteStorage implements it.
type MealStore interface {
	SaveMeal(ctx context.Context, meal *models.Meal) error
	GetMeal(ctx context.Context, id string) (*models.Meal, error)
	GetMeals(ctx context.Context, startDate, endDate string, limit int) ([]*models.Meal, error)
}

type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	Version     string
}

type MealAnalyzerServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	analyzer   Analyzer
	store      MealStore
	log        zerolog.Logger
	info       protocol.Implementation
}

// New wires the routes. store may be nil, in which case results are returned
// but not persisted and the listing endpoints report 503.
func New(cfg Config, analyzer Analyzer, store MealStore, log zerolog.Logger) *MealAnalyzerServer {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &MealAnalyzerServer{
		analyzer: analyzer,
		store:    store,
		log:      log.With().Str("component", "server").Logger(),
		info:     protocol.Implementation{Name: "meal-analyzer", Version: version},
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log), cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/healthz", s.handleHealth)

	// MCP over plain HTTP POST, as served behind mcp-compose.
	r.POST("/", s.handleMCP)
	r.POST("/mcp", s.handleMCP)
	r.GET("/mcp", s.handleMCPInfo)

	v1 := r.Group("/v1")
	v1.POST("/analyses", s.handleCreateAnalysis)
	v1.POST("/analyses/components", s.handleCreateComponentAnalysis)
	v1.POST("/analyses/reanalyze", s.handleReanalyze)
	v1.GET("/analyses", s.handleListAnalyses)
	v1.GET("/analyses/:id", s.handleGetAnalysis)

	s.engine = r
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed engine.
func (s *MealAnalyzerServer) Handler() http.Handler { return s.engine }

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *MealAnalyzerServer) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting meal analyzer server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *MealAnalyzerServer) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *MealAnalyzerServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "server": s.info})
}

// writeError maps the error taxonomy onto HTTP statuses. Only invalid requests
// and recognition failures carry their message to the caller.
func (s *MealAnalyzerServer) writeError(c *gin.Context, err error) {
	var rec *apperr.RecognitionError
	switch {
	case apperr.IsUser(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &rec):
		c.JSON(http.StatusBadGateway, gin.H{"error": apperr.ErrRecognitionFailed.Error(), "hint": rec.Hint(), "retryable": true})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
	case errors.Is(err, errStoreDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "analysis timed out"})
	default:
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func createJSONResponse(data any) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
