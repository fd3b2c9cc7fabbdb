// Package storage persists analyses and the shared cache in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mcp-meal-analyzer/internal/cache"
	"mcp-meal-analyzer/internal/models"
)

// ErrNotFound is returned by GetMeal for an unknown id.
var ErrNotFound = errors.New("meal not found")

type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; concurrent cache writes otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, now: time.Now}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS analyses (
        id TEXT PRIMARY KEY,
        description TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        source TEXT NOT NULL,
        locale TEXT NOT NULL,
        total_calories REAL NOT NULL,
        health_score REAL NOT NULL,
        health_level TEXT NOT NULL,
        is_suspicious INTEGER NOT NULL,
        needs_review INTEGER NOT NULL,
        totals_json TEXT NOT NULL,
        health_json TEXT NOT NULL,
        issues_json TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS analysis_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        analysis_id TEXT NOT NULL,
        item_id TEXT NOT NULL,
        name TEXT NOT NULL,
        portion_grams REAL NOT NULL,
        calories REAL NOT NULL,
        provenance TEXT NOT NULL,
        item_json TEXT NOT NULL,
        FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS cache (
        key TEXT PRIMARY KEY,
        value BLOB NOT NULL,
        expires_at INTEGER NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);
    CREATE INDEX IF NOT EXISTS idx_analysis_items_analysis_id ON analysis_items(analysis_id);
    CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Fixed-width UTC timestamps so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// SaveMeal inserts the meal and its items. Missing ids and timestamps are
// filled in on the passed meal.
func (s *SQLiteStorage) SaveMeal(ctx context.Context, meal *models.Meal) error {
	now := s.now().UTC()
	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.Timestamp.IsZero() {
		meal.Timestamp = now
	}
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = now
	}
	meal.UpdatedAt = now

	res := meal.Result
	totals, err := json.Marshal(res.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode totals: %w", err)
	}
	health, err := json.Marshal(res.HealthScore)
	if err != nil {
		return fmt.Errorf("failed to encode health score: %w", err)
	}
	issues, err := json.Marshal(res.SanityIssues)
	if err != nil {
		return fmt.Errorf("failed to encode sanity issues: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	mealQuery := `
        INSERT INTO analyses (id, description, timestamp, source, locale, total_calories, health_score, health_level,
            is_suspicious, needs_review, totals_json, health_json, issues_json, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, mealQuery,
		meal.ID, meal.Description, formatTime(meal.Timestamp), meal.Source, res.Locale,
		res.Totals.Calories, res.HealthScore.Total, res.HealthScore.Level,
		res.IsSuspicious, res.NeedsReview, string(totals), string(health), string(issues),
		formatTime(meal.CreatedAt), formatTime(meal.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	itemQuery := `
        INSERT INTO analysis_items (analysis_id, item_id, name, portion_grams, calories, provenance, item_json)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	for _, item := range res.Items {
		raw, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
		}
		_, err = tx.ExecContext(ctx, itemQuery,
			meal.ID, item.ID, item.DisplayName, item.PortionGrams, item.Nutrients.Calories,
			string(item.Provenance), string(raw))
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	return tx.Commit()
}

const mealColumns = `id, description, timestamp, source, locale, is_suspicious, needs_review,
        totals_json, health_json, issues_json, created_at, updated_at`

// GetMeal loads one meal by id.
func (s *SQLiteStorage) GetMeal(ctx context.Context, id string) (*models.Meal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mealColumns+` FROM analyses WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal: %w", err)
	}
	meals, err := s.scanMeals(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return nil, ErrNotFound
	}
	return meals[0], nil
}

// GetMeals lists meals newest first. Dates are inclusive YYYY-MM-DD bounds in
// UTC; empty strings leave the range open.
func (s *SQLiteStorage) GetMeals(ctx context.Context, startDate, endDate string, limit int) ([]*models.Meal, error) {
	query := `
        SELECT ` + mealColumns + `
        FROM analyses
        WHERE 1=1
    `
	args := []any{}

	if startDate != "" {
		query += " AND DATE(timestamp) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND DATE(timestamp) <= ?"
		args = append(args, endDate)
	}

	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	return s.scanMeals(ctx, rows)
}

func (s *SQLiteStorage) scanMeals(ctx context.Context, rows *sql.Rows) ([]*models.Meal, error) {
	var meals []*models.Meal
	for rows.Next() {
		meal := &models.Meal{}
		var timestampStr, createdAtStr, updatedAtStr string
		var totals, health, issues string

		err := rows.Scan(
			&meal.ID, &meal.Description, &timestampStr, &meal.Source, &meal.Result.Locale,
			&meal.Result.IsSuspicious, &meal.Result.NeedsReview,
			&totals, &health, &issues, &createdAtStr, &updatedAtStr)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if meal.Timestamp, err = time.Parse(timeLayout, timestampStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		if meal.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if meal.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		if err := errors.Join(
			json.Unmarshal([]byte(totals), &meal.Result.Totals),
			json.Unmarshal([]byte(health), &meal.Result.HealthScore),
			json.Unmarshal([]byte(issues), &meal.Result.SanityIssues),
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode meal %s: %w", meal.ID, err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}
	// Items are loaded after the cursor is released; the pool holds a single
	// connection.
	rows.Close()

	for _, meal := range meals {
		if err := s.loadItemsForMeal(ctx, meal); err != nil {
			return nil, fmt.Errorf("failed to load items for meal %s: %w", meal.ID, err)
		}
	}
	return meals, nil
}

func (s *SQLiteStorage) loadItemsForMeal(ctx context.Context, meal *models.Meal) error {
	query := `
        SELECT item_json
        FROM analysis_items
        WHERE analysis_id = ?
        ORDER BY id
    `

	rows, err := s.db.QueryContext(ctx, query, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.AnalyzedItem{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		var item models.AnalyzedItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	meal.Result.Items = items
	return nil
}

// Get implements cache.Store.
func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	if s.now().UnixNano() >= expiresAt {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return nil, fmt.Errorf("failed to evict cache entry: %w", err)
		}
		return nil, cache.ErrMiss
	}
	return value, nil
}

// Set implements cache.Store.
func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
    `, key, value, s.now().Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired cache entries and returns how many were removed.
func (s *SQLiteStorage) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}
