package facts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nugget/voicebridge/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.json")
	s := NewStore(storage.New(path), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func TestSetGetAll(t *testing.T) {
	s, _ := newTestStore(t)

	s.Set("user_name", "Sam")
	s.Set("kids", []string{"Ada", "Leo"})

	if v, ok := s.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("Get(user_name) = %v, %v", v, ok)
	}
	all := s.All()
	if len(all) != 2 {
		t.Errorf("All() len = %d, want 2", len(all))
	}

	// Mutating the copy must not affect the store.
	delete(all, "user_name")
	if _, ok := s.Get("user_name"); !ok {
		t.Error("All() must return a copy")
	}
}

func TestRoundTripThroughReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")

	s1 := NewStore(storage.New(path), testLogger())
	s1.Load()
	s1.Set("user_name", "Sam")
	s1.Set("bedroom_temp", "prefers 68F at night")
	if err := s1.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s2 := NewStore(storage.New(path), testLogger())
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := s2.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("after reload, user_name = %v, %v", v, ok)
	}
	if s2.Count() != 2 {
		t.Errorf("after reload, count = %d, want 2", s2.Count())
	}
}

func TestLoad_CorruptDocumentResetsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	os.WriteFile(path, []byte(`["not","a","mapping"]`), 0o600)

	s := NewStore(storage.New(path), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load should self-heal, got error: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("corrupt store should reset empty, count = %d", s.Count())
	}

	// The store must be usable after the reset.
	s.Set("user_name", "Sam")
	if err := s.Save(); err != nil {
		t.Fatalf("Save after reset: %v", err)
	}
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("k", "v")

	if !s.Remove("k") {
		t.Error("Remove existing key should return true")
	}
	if s.Remove("k") {
		t.Error("Remove missing key should return false")
	}
}

func TestValidCategory(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"user_name", true},
		{"family_members", true},
		{"preferences", true},
		{"device_nicknames", true},
		{"locations", true},
		{"routines", true},
		{"", false},
		{"architecture", false},
	}
	for _, tt := range tests {
		if got := ValidCategory(tt.in); got != tt.want {
			t.Errorf("ValidCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
