// Package tools defines the platform tool registry and the router that
// dispatches model tool calls to their executors.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nugget/voicebridge/internal/homeassistant"
)

const defaultSearchLimit = 10

// Platform is the Home Assistant surface the registry executes against.
// Satisfied by *homeassistant.Client.
type Platform interface {
	GetState(ctx context.Context, entityID string) (*homeassistant.State, error)
	GetStates(ctx context.Context) ([]homeassistant.State, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	GetAreas(ctx context.Context) ([]homeassistant.Area, error)
}

// ServicesSource provides HA service schemas for tool discovery.
// Satisfied by *homeassistant.WSClient.
type ServicesSource interface {
	GetServices(ctx context.Context) (map[string]map[string]homeassistant.Service, error)
}

// Tool is a callable platform tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) map[string]any
}

// Registry holds the always-available platform tools and answers tool
// discovery queries.
type Registry struct {
	ha       Platform
	services ServicesSource
	logger   *slog.Logger
	tools    map[string]*Tool
	order    []string
}

// NewRegistry creates a registry over the HA clients. services may be
// nil when the websocket connection is unavailable; discovery then
// returns only the core tools.
func NewRegistry(ha Platform, services ServicesSource, logger *slog.Logger) *Registry {
	r := &Registry{
		ha:       ha,
		services: services,
		logger:   logger,
		tools:    make(map[string]*Tool),
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Lookup returns the named tool, or nil.
func (r *Registry) Lookup(name string) *Tool {
	return r.tools[name]
}

// Definitions returns OpenAI-format schemas for the core tools, in
// registration order.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return defs
}

// QueryTools answers the discovery meta-tool: core definitions merged
// with tool definitions derived from HA's service registry, optionally
// filtered to one domain.
func (r *Registry) QueryTools(ctx context.Context, domain string) ([]map[string]any, error) {
	defs := r.Definitions()

	if r.services == nil {
		return defs, nil
	}
	services, err := r.services.GetServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	return append(defs, homeassistant.ServicesToTools(services, domain)...), nil
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "get_entity_state",
		Description: "Get the current state of a Home Assistant entity: lights, sensors, doors, thermostats.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": map[string]any{
					"type":        "string",
					"description": "The entity id, e.g. light.living_room or sensor.outdoor_temperature.",
				},
			},
			"required": []string{"entity_id"},
		},
		Handler: r.handleGetEntityState,
	})

	r.Register(&Tool{
		Name:        "call_service",
		Description: "Call a Home Assistant service to control a device: turn lights on or off, lock doors, set temperatures.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "Service domain, e.g. light, switch, climate, lock.",
				},
				"service": map[string]any{
					"type":        "string",
					"description": "Service name, e.g. turn_on, turn_off, set_temperature.",
				},
				"entity_id": map[string]any{
					"type":        "string",
					"description": "Target entity id.",
				},
				"data": map[string]any{
					"type":        "object",
					"description": "Additional service data, e.g. brightness or temperature.",
				},
			},
			"required": []string{"domain", "service", "entity_id"},
		},
		Handler: r.handleCallService,
	})

	r.Register(&Tool{
		Name:        "search_entities",
		Description: "Fuzzy-search entities by name when the exact entity id is unknown.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Name to search for, e.g. 'kitchen light'.",
				},
				"domain": map[string]any{
					"type":        "string",
					"description": "Restrict results to one domain, e.g. light.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum results to return (default 10).",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleSearchEntities,
	})

	r.Register(&Tool{
		Name:        "get_area_entities",
		Description: "List entities that belong to a room or area.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"area": map[string]any{
					"type":        "string",
					"description": "Area name, e.g. 'Kitchen'.",
				},
			},
			"required": []string{"area"},
		},
		Handler: r.handleGetAreaEntities,
	})

	r.Register(&Tool{
		Name:        "list_areas",
		Description: "List all areas (rooms) configured in Home Assistant.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
		Handler: r.handleListAreas,
	})
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func (r *Registry) handleGetEntityState(ctx context.Context, args map[string]any) map[string]any {
	entityID, _ := args["entity_id"].(string)
	if entityID == "" {
		return failure("entity_id is required")
	}

	state, err := r.ha.GetState(ctx, entityID)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get state for %s: %v", entityID, err))
	}
	return map[string]any{
		"success":       true,
		"entity_id":     state.EntityID,
		"state":         state.State,
		"friendly_name": state.FriendlyName(),
		"attributes":    state.Attributes,
	}
}

func (r *Registry) handleCallService(ctx context.Context, args map[string]any) map[string]any {
	domain, _ := args["domain"].(string)
	service, _ := args["service"].(string)
	entityID, _ := args["entity_id"].(string)
	if domain == "" || service == "" || entityID == "" {
		return failure("domain, service, and entity_id are required")
	}

	data := map[string]any{"entity_id": entityID}
	if extra, ok := args["data"].(map[string]any); ok {
		for k, v := range extra {
			data[k] = v
		}
	}

	if err := r.ha.CallService(ctx, domain, service, data); err != nil {
		return failure(fmt.Sprintf("Failed to call %s.%s: %v", domain, service, err))
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Called %s.%s on %s", domain, service, entityID),
	}
}

// entitySource adapts entity states for fuzzy matching over the
// friendly name and entity id together.
type entitySource []homeassistant.State

func (s entitySource) String(i int) string {
	return s[i].FriendlyName() + " " + s[i].EntityID
}

func (s entitySource) Len() int { return len(s) }

func (r *Registry) handleSearchEntities(ctx context.Context, args map[string]any) map[string]any {
	query, _ := args["query"].(string)
	if query == "" {
		return failure("query is required")
	}

	states, err := r.ha.GetStates(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to list entities: %v", err))
	}

	if domain, _ := args["domain"].(string); domain != "" {
		var filtered []homeassistant.State
		for _, s := range states {
			if s.Domain() == domain {
				filtered = append(filtered, s)
			}
		}
		states = filtered
	}

	limit := defaultSearchLimit
	if l, ok := args["limit"].(float64); ok && int(l) > 0 {
		limit = int(l)
	}

	matches := fuzzy.FindFrom(query, entitySource(states))
	var results []map[string]any
	for i, m := range matches {
		if i >= limit {
			break
		}
		s := states[m.Index]
		results = append(results, map[string]any{
			"entity_id":     s.EntityID,
			"friendly_name": s.FriendlyName(),
			"state":         s.State,
		})
	}

	return map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Found %d matching entities", len(results)),
		"entities": results,
	}
}

func (r *Registry) handleGetAreaEntities(ctx context.Context, args map[string]any) map[string]any {
	area, _ := args["area"].(string)
	if area == "" {
		return failure("area is required")
	}

	states, err := r.ha.GetStates(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to list entities: %v", err))
	}

	// States do not carry area ids over REST, so match by name: an
	// entity belongs to a room when the room name appears in its
	// friendly name or entity id.
	needle := strings.ToLower(strings.TrimSpace(area))
	var results []map[string]any
	for _, s := range states {
		name := strings.ToLower(s.FriendlyName())
		id := strings.ReplaceAll(strings.ToLower(s.EntityID), "_", " ")
		if strings.Contains(name, needle) || strings.Contains(id, needle) {
			results = append(results, map[string]any{
				"entity_id":     s.EntityID,
				"friendly_name": s.FriendlyName(),
				"state":         s.State,
			})
		}
	}

	return map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Found %d entities in %s", len(results), area),
		"entities": results,
	}
}

func (r *Registry) handleListAreas(ctx context.Context, args map[string]any) map[string]any {
	areas, err := r.ha.GetAreas(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to list areas: %v", err))
	}

	names := make([]string, 0, len(areas))
	for _, a := range areas {
		names = append(names, a.Name)
	}
	sort.Strings(names)

	return map[string]any{
		"success": true,
		"areas":   names,
	}
}
