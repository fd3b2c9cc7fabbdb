// Package resolver turns a free-text food name into one canonical per-100
// nutrition record by querying nutrition sources, filtering their candidates
// and fetching normalized nutrients for the best survivor.
package resolver

import (
	"context"

	"mcp-meal-analyzer/internal/models"
)

// Candidate is one scored search hit from a source.
type Candidate struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Category    string  `json:"category,omitempty"`
	// DefaultPortion is the source's serving size in grams, 0 if unknown.
	DefaultPortion float64 `json:"default_portion,omitempty"`
}

// SearchOptions narrows a source search.
type SearchOptions struct {
	MaxResults   int
	MinScore     float64
	CategoryHint string
}

// Source is a nutrition database. Search returns an empty slice, not an
// error, when nothing matches; errors mean the source is unavailable.
type Source interface {
	ID() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]Candidate, error)
	FetchNormalized(ctx context.Context, id string) (models.Nutrients, error)
}
