package facts

import (
	"fmt"
	"log/slog"
)

// Tools exposes the fact meta-tools (learn_fact, query_facts) to the
// conversation loop.
type Tools struct {
	store  *Store
	logger *slog.Logger
}

// NewTools creates the fact tool handlers.
func NewTools(store *Store, logger *slog.Logger) *Tools {
	return &Tools{store: store, logger: logger}
}

// IsFactTool reports whether name is one of the fact meta-tools.
func IsFactTool(name string) bool {
	return name == "learn_fact" || name == "query_facts"
}

// Definitions returns the fact tool schemas in OpenAI function format.
func (t *Tools) Definitions() []map[string]any {
	var categories []string
	for _, c := range Categories() {
		categories = append(categories, string(c))
	}

	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "learn_fact",
				"description": "Store a personal fact about the user for future conversations (their name, family members, preferences, device nicknames, locations, routines). Use when the user shares something worth remembering.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{
							"type":        "string",
							"enum":        categories,
							"description": "The kind of fact being stored.",
						},
						"key": map[string]any{
							"type":        "string",
							"description": "Short identifier for the fact, e.g. 'user_name' or 'bedroom_temperature'.",
						},
						"value": map[string]any{
							"type":        "string",
							"description": "The fact itself.",
						},
					},
					"required": []string{"category", "key", "value"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "query_facts",
				"description": "Retrieve previously learned facts about the user. Use before asking the user for information they may have already shared.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"category": map[string]any{
							"type":        "string",
							"enum":        categories,
							"description": "Optional: the kind of facts you are interested in.",
						},
					},
					"required": []string{},
				},
			},
		},
	}
}

// Handle executes a fact meta-tool and returns its JSON-shaped result.
func (t *Tools) Handle(name string, args map[string]any) map[string]any {
	switch name {
	case "learn_fact":
		return t.learnFact(args)
	case "query_facts":
		return t.queryFacts(args)
	default:
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("unknown fact tool: %s", name),
		}
	}
}

func (t *Tools) learnFact(args map[string]any) map[string]any {
	category, _ := args["category"].(string)
	key, _ := args["key"].(string)
	value := args["value"]

	if key == "" || value == nil || value == "" {
		return map[string]any{
			"success": false,
			"error":   "Missing required parameters: key and value are required",
		}
	}
	if category != "" && !ValidCategory(category) {
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Unknown category %q", category),
		}
	}

	t.store.Set(key, value)
	if err := t.store.Save(); err != nil {
		t.logger.Error("failed to persist fact", "key", key, "error", err)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Failed to store fact: %v", err),
		}
	}

	t.logger.Info("stored fact", "key", key, "category", category)
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully stored %s", key),
	}
}

// queryFacts returns the entire fact set. The category argument is
// accepted but not used as a filter: facts are stored flat without
// categories, so the model filters the result itself.
func (t *Tools) queryFacts(args map[string]any) map[string]any {
	category, _ := args["category"].(string)
	all := t.store.All()

	if category != "" {
		t.logger.Info("queried facts", "count", len(all), "category_requested", category)
	} else {
		t.logger.Info("queried facts", "count", len(all))
	}

	return map[string]any{
		"success": true,
		"facts":   all,
		"message": fmt.Sprintf("Found %d fact(s)", len(all)),
	}
}
