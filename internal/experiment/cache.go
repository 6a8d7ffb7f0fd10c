package experiment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/relprobe/relprobe/internal/score"
)

// ScoreKey addresses one choice's raw permutation scores in the cache.
// Aggregation knobs are deliberately absent: a sweep over lambdas and
// aggregation names reuses the same rows.
type ScoreKey struct {
	Method   string
	Template string
	Split    string
	Question int
	Choice   int
}

// Cache stores score.TemplatePrimitives rows in a sqlite file so that
// aggregation-only reruns never touch the model.
type Cache struct {
	db *sql.DB
}

func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("experiment: cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("experiment: open cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("experiment: cache pragma: %w", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS scores (
		method   TEXT NOT NULL,
		template TEXT NOT NULL,
		split    TEXT NOT NULL,
		question INTEGER NOT NULL,
		choice   INTEGER NOT NULL,
		payload  TEXT NOT NULL,
		PRIMARY KEY (method, template, split, question, choice)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("experiment: cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached primitives for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key ScoreKey) (*score.TemplatePrimitives, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM scores WHERE method=? AND template=? AND split=? AND question=? AND choice=?`,
		key.Method, key.Template, key.Split, key.Question, key.Choice,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("experiment: cache get: %w", err)
	}
	var prims score.TemplatePrimitives
	if err := json.Unmarshal(payload, &prims); err != nil {
		return nil, fmt.Errorf("experiment: cache decode: %w", err)
	}
	return &prims, nil
}

// Put stores the primitives for key, replacing any previous row.
func (c *Cache) Put(ctx context.Context, key ScoreKey, prims score.TemplatePrimitives) error {
	payload, err := json.Marshal(prims)
	if err != nil {
		return fmt.Errorf("experiment: cache encode: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scores (method, template, split, question, choice, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		key.Method, key.Template, key.Split, key.Question, key.Choice, payload,
	)
	if err != nil {
		return fmt.Errorf("experiment: cache put: %w", err)
	}
	return nil
}
