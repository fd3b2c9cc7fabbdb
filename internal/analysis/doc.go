// Package analysis contains the pure, per-meal stages of nutrition resolution:
// beverage classification, deduplication, portion estimation, normalization,
// fallback construction, validation, hidden-ingredient augmentation,
// aggregation and sanity checks.
//
// Nothing here performs I/O. Every stage takes the read-only tables and
// returns new values; inputs are never modified in place.
package analysis
