package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))
	var doc map[string]any
	ok, err := s.Load(&doc)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "doc.json"))
	if err := s.Save(map[string]any{"user_name": "Sam", "count": 2}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	var doc map[string]any
	ok, err := s.Load(&doc)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if doc["user_name"] != "Sam" {
		t.Errorf("user_name = %v", doc["user_name"])
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "nested", "deep", "doc.json"))
	if err := s.Save(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("expected file to exist: %v", err)
	}
}

func TestSave_ReplacesExisting(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "doc.json"))
	s.Save(map[string]string{"k": "old"})
	s.Save(map[string]string{"k": "new"})

	var doc map[string]string
	if _, err := s.Load(&doc); err != nil {
		t.Fatal(err)
	}
	if doc["k"] != "new" {
		t.Errorf("k = %q, want new", doc["k"])
	}
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "doc.json"))
	s.Save(map[string]string{"k": "v"})

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only doc.json in dir, found %d entries", len(entries))
	}
}

func TestLoad_CorruptPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	os.WriteFile(path, []byte("not json at all"), 0o600)

	s := New(path)
	var doc map[string]any
	if _, err := s.Load(&doc); err == nil {
		t.Fatal("expected decode error for corrupt payload")
	}
}

func TestLoad_TypeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	os.WriteFile(path, []byte(`["a","list"]`), 0o600)

	s := New(path)
	var doc map[string]any
	if _, err := s.Load(&doc); err == nil {
		t.Fatal("expected error decoding list into map")
	}
}
