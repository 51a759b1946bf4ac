// Package facts is the long-term memory for learned user facts. Facts
// live in a flat key/value namespace persisted as a single JSON document;
// categories guide the model's tool use but do not partition storage.
package facts

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nugget/voicebridge/internal/storage"
)

// Category labels the kind of fact being learned. Categories are
// informational: they appear in tool schemas and extraction prompts but
// facts are stored flat by key.
type Category string

const (
	CategoryUserName        Category = "user_name"
	CategoryFamilyMembers   Category = "family_members"
	CategoryPreferences     Category = "preferences"
	CategoryDeviceNicknames Category = "device_nicknames"
	CategoryLocations       Category = "locations"
	CategoryRoutines        Category = "routines"
)

// Categories returns all valid categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryUserName,
		CategoryFamilyMembers,
		CategoryPreferences,
		CategoryDeviceNicknames,
		CategoryLocations,
		CategoryRoutines,
	}
}

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	for _, c := range Categories() {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Store holds learned facts in memory and persists them through a
// storage.Store. Values are strings or lists of strings as produced by
// the model; they round-trip through JSON untouched.
type Store struct {
	mu     sync.RWMutex
	facts  map[string]any
	doc    *storage.Store
	logger *slog.Logger
}

// NewStore creates a fact store backed by doc. Call Load before use.
func NewStore(doc *storage.Store, logger *slog.Logger) *Store {
	return &Store{
		facts:  make(map[string]any),
		doc:    doc,
		logger: logger,
	}
}

// Load reads persisted facts from disk. A corrupt document (unreadable
// or not a JSON object) is logged and replaced with an empty set rather
// than failing startup; memory beats a crash loop here.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := make(map[string]any)
	ok, err := s.doc.Load(&loaded)
	if err != nil {
		s.logger.Warn("fact store corrupt, starting empty",
			"path", s.doc.Path(), "error", err)
		s.facts = make(map[string]any)
		return nil
	}
	if !ok {
		s.logger.Debug("no fact store on disk yet", "path", s.doc.Path())
		s.facts = make(map[string]any)
		return nil
	}

	s.facts = loaded
	s.logger.Info("loaded facts", "count", len(s.facts))
	return nil
}

// Set stores or replaces a fact in memory. Call Save to persist.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[key] = value
}

// Get returns a fact by key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.facts[key]
	return v, ok
}

// All returns a copy of every fact.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.facts))
	for k, v := range s.facts {
		out[k] = v
	}
	return out
}

// Remove deletes a fact by key, reporting whether it existed.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.facts[key]
	delete(s.facts, key)
	return ok
}

// Count returns the number of stored facts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// Save persists the current fact set to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	snapshot := make(map[string]any, len(s.facts))
	for k, v := range s.facts {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	if err := s.doc.Save(snapshot); err != nil {
		return fmt.Errorf("save facts: %w", err)
	}
	return nil
}
