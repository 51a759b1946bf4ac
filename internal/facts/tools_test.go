package facts

import (
	"strings"
	"testing"
)

func newTestTools(t *testing.T) *Tools {
	t.Helper()
	s, _ := newTestStore(t)
	return NewTools(s, testLogger())
}

func TestLearnFact_StoresAndPersists(t *testing.T) {
	tools := newTestTools(t)

	res := tools.Handle("learn_fact", map[string]any{
		"category": "user_name",
		"key":      "user_name",
		"value":    "Sam",
	})
	if res["success"] != true {
		t.Fatalf("learn_fact failed: %v", res)
	}

	if v, ok := tools.store.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("fact not stored: %v, %v", v, ok)
	}
}

func TestLearnFact_MissingKeyOrValue(t *testing.T) {
	tools := newTestTools(t)

	tests := []map[string]any{
		{"category": "user_name", "value": "Sam"},
		{"category": "user_name", "key": "user_name"},
		{"category": "user_name", "key": "user_name", "value": ""},
	}
	for _, args := range tests {
		res := tools.Handle("learn_fact", args)
		if res["success"] != false {
			t.Errorf("learn_fact(%v) should fail", args)
		}
		if !strings.Contains(res["error"].(string), "key and value") {
			t.Errorf("error should name the missing params: %v", res["error"])
		}
	}
}

func TestLearnFact_RejectsUnknownCategory(t *testing.T) {
	tools := newTestTools(t)
	res := tools.Handle("learn_fact", map[string]any{
		"category": "horoscope",
		"key":      "sign",
		"value":    "libra",
	})
	if res["success"] != false {
		t.Error("expected failure for unknown category")
	}
}

func TestQueryFacts_IgnoresCategoryFilter(t *testing.T) {
	tools := newTestTools(t)
	tools.store.Set("user_name", "Sam")
	tools.store.Set("office_location", "upstairs")

	// A category argument is accepted but every fact comes back; storage
	// is flat and the model does its own filtering.
	res := tools.Handle("query_facts", map[string]any{"category": "locations"})
	if res["success"] != true {
		t.Fatalf("query_facts failed: %v", res)
	}
	got := res["facts"].(map[string]any)
	if len(got) != 2 {
		t.Errorf("facts len = %d, want all 2 regardless of category", len(got))
	}
	if got["user_name"] != "Sam" {
		t.Errorf("user_name missing from category-filtered query: %v", got)
	}
}

func TestQueryFacts_Empty(t *testing.T) {
	tools := newTestTools(t)
	res := tools.Handle("query_facts", map[string]any{})
	if res["success"] != true {
		t.Fatalf("query_facts failed: %v", res)
	}
	if res["message"] != "Found 0 fact(s)" {
		t.Errorf("message = %v", res["message"])
	}
}

func TestHandle_UnknownTool(t *testing.T) {
	tools := newTestTools(t)
	res := tools.Handle("forget_fact", map[string]any{})
	if res["success"] != false {
		t.Error("expected failure for unknown tool")
	}
}

func TestIsFactTool(t *testing.T) {
	if !IsFactTool("learn_fact") || !IsFactTool("query_facts") {
		t.Error("fact meta-tools should be recognized")
	}
	if IsFactTool("query_tools") {
		t.Error("query_tools is not a fact tool")
	}
}

func TestDefinitions_Schema(t *testing.T) {
	tools := newTestTools(t)
	defs := tools.Definitions()
	if len(defs) != 2 {
		t.Fatalf("definitions len = %d, want 2", len(defs))
	}
	for _, def := range defs {
		fn := def["function"].(map[string]any)
		name := fn["name"].(string)
		if name != "learn_fact" && name != "query_facts" {
			t.Errorf("unexpected tool name %q", name)
		}
	}
}
