package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nugget/voicebridge/internal/facts"
	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/music"
	"github.com/nugget/voicebridge/internal/search"
)

const discoveryNote = "These tools are now available for you to use. You can call them directly."

// Result is the outcome of routing one tool call. Content is the JSON
// payload reinjected as the tool-role message. Discovered carries tool
// definitions surfaced by query_tools for the conversation loop to
// merge into its live tool set.
type Result struct {
	ToolCallID string
	Name       string
	Content    string
	Discovered []map[string]any
	Notice     string
}

// Router classifies tool calls and dispatches them to their executors.
type Router struct {
	registry *Registry
	facts    *facts.Tools
	music    *music.Handler
	search   *search.Tavily
	logger   *slog.Logger
}

// NewRouter wires a router. facts, music, and search may each be nil
// when the corresponding feature is disabled.
func NewRouter(registry *Registry, factTools *facts.Tools, musicHandler *music.Handler, tavily *search.Tavily, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		facts:    factTools,
		music:    musicHandler,
		search:   tavily,
		logger:   logger,
	}
}

// InitialTools returns the tool definitions presented at the start of a
// conversation: the core platform tools, the discovery meta-tool, and
// the enabled feature tool sets.
func (r *Router) InitialTools() []map[string]any {
	defs := r.registry.Definitions()
	defs = append(defs, queryToolsDefinition())
	if r.facts != nil {
		defs = append(defs, r.facts.Definitions()...)
	}
	if r.music != nil {
		defs = append(defs, music.Definitions()...)
	}
	if r.search != nil {
		defs = append(defs, search.Definition())
	}
	return defs
}

// Route executes every tool call and returns one result per call, in
// order. It never fails as a whole: bad arguments, handler errors, and
// panics all become error results the model can read.
func (r *Router) Route(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.route(ctx, call))
	}
	return results
}

func (r *Router) route(ctx context.Context, call llm.ToolCall) (result Result) {
	name := call.Function.Name
	result = Result{ToolCallID: call.ID, Name: name}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool executor panicked", "tool", name, "panic", rec)
			result.Content = encode(failure(fmt.Sprintf("Tool '%s' failed unexpectedly", name)))
		}
	}()

	args, err := call.DecodeArguments()
	if err != nil {
		r.logger.Warn("bad tool arguments", "tool", name, "error", err)
		result.Content = encode(failure(fmt.Sprintf("Invalid arguments for %s: %v", name, err)))
		return result
	}

	r.logger.Debug("routing tool call", "tool", name)

	switch {
	case r.facts != nil && facts.IsFactTool(name):
		result.Content = encode(r.facts.Handle(name, args))

	case name == "query_tools":
		r.queryTools(ctx, args, &result)

	case r.music != nil && music.IsMusicTool(name):
		result.Content = encode(r.music.Handle(ctx, name, args))

	case r.search != nil && search.IsSearchTool(name):
		result.Content = encode(r.search.Handle(ctx, args))

	default:
		tool := r.registry.Lookup(name)
		if tool == nil {
			result.Content = encode(failure(fmt.Sprintf("Tool '%s' not found", name)))
			return result
		}
		result.Content = encode(tool.Handler(ctx, args))
	}

	return result
}

func (r *Router) queryTools(ctx context.Context, args map[string]any, result *Result) {
	domain, _ := args["domain"].(string)

	defs, err := r.registry.QueryTools(ctx, domain)
	if err != nil {
		r.logger.Error("tool discovery failed", "domain", domain, "error", err)
		result.Content = encode(failure(fmt.Sprintf("Failed to query tools: %v", err)))
		return
	}

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		if fn, ok := def["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				names = append(names, name)
			}
		}
	}

	message := fmt.Sprintf("Found %d tools", len(names))
	notice := fmt.Sprintf("Discovered %d tools", len(names))
	if domain != "" {
		message = fmt.Sprintf("Found %d tools for domain '%s'", len(names), domain)
		notice = fmt.Sprintf("Discovered %d tools for %s", len(names), domain)
	}

	result.Discovered = defs
	result.Notice = notice
	result.Content = encode(map[string]any{
		"success": true,
		"result": map[string]any{
			"message": message,
			"tools":   names,
			"note":    discoveryNote,
		},
	})
}

func queryToolsDefinition() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        "query_tools",
			"description": "Discover Home Assistant tools for controlling devices. Call this with a domain (e.g. light, climate, cover) to get the tools for that device type, then call those tools directly.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"domain": map[string]any{
						"type":        "string",
						"description": "Device domain to discover tools for, e.g. light, switch, climate. Omit to list everything.",
					},
				},
				"required": []string{},
			},
		},
	}
}

func encode(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(data)
}
