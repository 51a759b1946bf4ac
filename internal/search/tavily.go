// Package search provides web search as a conversation tool, backed by
// the Tavily API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nugget/voicebridge/internal/httpkit"
)

const (
	tavilyEndpoint = "https://api.tavily.com/search"

	defaultMaxResults = 5
	maxResultsCap     = 10
)

// Tavily calls the Tavily web search API.
type Tavily struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewTavily creates a Tavily search client. An empty apiKey is allowed;
// searches will fail with a configuration error until one is set.
func NewTavily(apiKey string, logger *slog.Logger) *Tavily {
	return &Tavily{
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
		client:   httpkit.NewClient(),
		logger:   logger,
	}
}

// Configured reports whether an API key is set.
func (t *Tavily) Configured() bool {
	return t.apiKey != ""
}

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Handle executes the web_search tool and returns its JSON-shaped
// result. It never returns an error; failures become error results the
// model can read back.
func (t *Tavily) Handle(ctx context.Context, args map[string]any) map[string]any {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]any{"success": false, "error": "query is required"}
	}

	if !t.Configured() {
		return map[string]any{
			"success": false,
			"error":   "Tavily API key is not configured. Web search is unavailable.",
		}
	}

	maxResults := defaultMaxResults
	if n, ok := args["max_results"].(float64); ok {
		maxResults = int(n)
	}
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	depth, _ := args["search_depth"].(string)
	if depth != "advanced" {
		depth = "basic"
	}

	resp, err := t.search(ctx, tavilyRequest{
		APIKey:        t.apiKey,
		Query:         query,
		SearchDepth:   depth,
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		t.logger.Error("web search failed", "query", query, "error", err)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Search failed: %v", err),
		}
	}

	results := make([]map[string]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
			"score":   r.Score,
		})
	}

	out := map[string]any{
		"success": true,
		"query":   query,
		"results": results,
	}
	if resp.Answer != "" {
		out["answer"] = resp.Answer
	}
	return out
}

func (t *Tavily) search(ctx context.Context, req tavilyRequest) (*tavilyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &tr, nil
}

// IsSearchTool reports whether name is the web search tool.
func IsSearchTool(name string) bool {
	return name == "web_search"
}

// Definition returns the web_search tool schema.
func Definition() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        "web_search",
			"description": "Search the web for current information: news, weather, facts, anything beyond your training data.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"max_results": map[string]any{
						"type":        "number",
						"description": "Number of results to return, 1-10.",
					},
					"search_depth": map[string]any{
						"type":        "string",
						"enum":        []string{"basic", "advanced"},
						"description": "Use advanced for deeper research. Defaults to basic.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
