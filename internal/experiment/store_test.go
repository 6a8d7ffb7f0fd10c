package experiment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func storeConfig(data string, lambda float64) Config {
	cfg := DefaultConfig()
	cfg.Model = "lmtest-fake"
	cfg.Data = data
	cfg.PPLPMILambda = lambda
	return cfg
}

func TestStoreSaveAndRuns(t *testing.T) {
	t.Parallel()
	st := NewStore(t.TempDir())

	first, err := st.Save(storeConfig("sat", 1), Accuracy{Accuracy: 0.5, Correct: 1, Total: 2, Split: "valid"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := st.Save(storeConfig("u2", 1), Accuracy{Accuracy: 1, Correct: 2, Total: 2, Split: "valid"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("run ids collide")
	}

	runs, err := st.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != first.ID || runs[1].ID != second.ID {
		t.Fatalf("runs out of order: %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Config.Data != "sat" || runs[0].Accuracy.Correct != 1 {
		t.Fatalf("first run did not round-trip: %+v", runs[0])
	}
}

func TestStoreRunsSkipsUnfinished(t *testing.T) {
	t.Parallel()
	st := NewStore(t.TempDir())
	if _, err := st.Save(storeConfig("sat", 1), Accuracy{Total: 1, Split: "valid"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A crashed run leaves a directory without accuracy.json.
	stale := filepath.Join(st.Root(), outputsDir, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := writeJSON(filepath.Join(stale, configFile), storeConfig("u2", 1)); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	runs, err := st.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want the finished one only", len(runs))
	}
}

func TestStoreFind(t *testing.T) {
	t.Parallel()
	st := NewStore(t.TempDir())
	saved, err := st.Save(storeConfig("sat", 1), Accuracy{Total: 1, Split: "valid"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	probe := storeConfig("sat", 1)
	probe.BatchSize = 4
	hit, err := st.Find(probe)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if hit == nil || hit.ID != saved.ID {
		t.Fatalf("Find = %+v, want run %s", hit, saved.ID)
	}

	miss, err := st.Find(storeConfig("sat", 0.5))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if miss != nil {
		t.Fatalf("Find matched a different lambda: %+v", miss)
	}
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()
	st := NewStore(t.TempDir())
	run, err := st.Save(storeConfig("sat", 1), Accuracy{Total: 1, Split: "valid"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Delete(run.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	runs, err := st.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("run survived delete: %+v", runs)
	}
	if err := st.Delete("../escape"); err == nil {
		t.Fatal("path-escaping id accepted")
	}
	if err := st.Delete(""); err == nil {
		t.Fatal("empty id accepted")
	}
}

func TestStoreCachePath(t *testing.T) {
	t.Parallel()
	st := NewStore(t.TempDir())
	cfg := storeConfig("sat", 1)
	cfg.Model = "roberta/large"
	cfg.MaxLength = 64

	path := st.CachePath(cfg)
	if filepath.Base(path) != "sat__roberta-large__64.db" {
		t.Fatalf("cache file = %s", filepath.Base(path))
	}
	if !strings.HasPrefix(path, st.Root()) {
		t.Fatalf("cache outside store root: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := st.ReleaseCache(cfg); err != nil {
		t.Fatalf("ReleaseCache: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cache survived release: %v", err)
	}
	if err := st.ReleaseCache(cfg); err != nil {
		t.Fatalf("second release not idempotent: %v", err)
	}
}
