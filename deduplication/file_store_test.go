package deduplication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "seen_hashes.json"))
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreSaveReplacesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seen_hashes.json")
	store := NewFileStore(path)

	for _, body := range []string{`{"hashes":["a"]}`, `{"hashes":["a","b"]}`} {
		if err := store.Save(context.Background(), []byte(body)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		got, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if string(got) != body {
			t.Fatalf("expected %s, got %s", body, got)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreFailedReplaceKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory at the ledger path makes the final rename fail.
	path := filepath.Join(dir, "seen_hashes.json")
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path)
	if err := store.Save(context.Background(), []byte(`{"hashes":[]}`)); err == nil {
		t.Fatal("expected rename over a directory to fail")
	}

	if _, err := os.Stat(filepath.Join(path, "keep")); err != nil {
		t.Fatalf("previous content was disturbed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
