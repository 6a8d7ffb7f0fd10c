package experiment

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

const (
	outputsDir   = "outputs"
	cacheDir     = "cache"
	configFile   = "config.json"
	accuracyFile = "accuracy.json"
)

// Accuracy is the measured outcome of one run.
type Accuracy struct {
	Accuracy float64 `json:"accuracy"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Split    string  `json:"split"`
}

// Run is a persisted config with its accuracy.
type Run struct {
	ID       string   `json:"id"`
	Dir      string   `json:"-"`
	Config   Config   `json:"config"`
	Accuracy Accuracy `json:"accuracy"`
}

// Store keeps runs under <root>/outputs/<ulid>/ as a config.json and
// accuracy.json pair, and primitive caches under <root>/cache/.
type Store struct {
	root string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewStore(root string) *Store {
	return &Store{root: root, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *Store) Root() string { return s.root }

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

// Save persists a finished run under a fresh ULID directory.
func (s *Store) Save(cfg Config, acc Accuracy) (Run, error) {
	id := s.newID()
	dir := filepath.Join(s.root, outputsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, fmt.Errorf("experiment: create run dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, configFile), cfg); err != nil {
		return Run{}, err
	}
	if err := writeJSON(filepath.Join(dir, accuracyFile), acc); err != nil {
		return Run{}, err
	}
	return Run{ID: id, Dir: dir, Config: cfg, Accuracy: acc}, nil
}

// Runs loads every persisted run, oldest first. Directories missing either
// file are skipped; they belong to runs that never finished.
func (s *Store) Runs() ([]Run, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, outputsDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("experiment: list runs: %w", err)
	}
	var runs []Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, outputsDir, e.Name())
		run := Run{ID: e.Name(), Dir: dir}
		if err := readJSON(filepath.Join(dir, configFile), &run.Config); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := readJSON(filepath.Join(dir, accuracyFile), &run.Accuracy); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		runs = append(runs, run)
	}
	// ULIDs sort lexicographically by creation time.
	slices.SortFunc(runs, func(a, b Run) int { return strings.Compare(a.ID, b.ID) })
	return runs, nil
}

// Find returns the stored run whose config equals cfg, or nil.
func (s *Store) Find(cfg Config) (*Run, error) {
	runs, err := s.Runs()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Config.Equal(cfg) {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// Delete removes one run directory.
func (s *Store) Delete(id string) error {
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("experiment: bad run id %q", id)
	}
	return os.RemoveAll(filepath.Join(s.root, outputsDir, id))
}

// CachePath returns the primitive-cache location for a config. One database
// serves every run against the same data, model, and length budget.
func (s *Store) CachePath(cfg Config) string {
	name := fmt.Sprintf("%s__%s__%d.db", cfg.DataName(), sanitize(cfg.Model), cfg.MaxLength)
	return filepath.Join(s.root, cacheDir, name)
}

// ReleaseCache deletes the primitive cache for a config.
func (s *Store) ReleaseCache(cfg Config) error {
	err := os.Remove(s.CachePath(cfg))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// DataName labels the dataset a config evaluates: the named set, or the
// basename of an explicit file.
func (c Config) DataName() string {
	if c.Data != "" {
		return c.Data
	}
	base := filepath.Base(c.PathToData)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sanitize makes a model name usable as a file name fragment. Hub-style
// names carry slashes.
func sanitize(name string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(name)
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("experiment: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("experiment: decode %s: %w", path, err)
	}
	return nil
}
