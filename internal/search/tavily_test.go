package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testTavily(apiKey string, srv *httptest.Server) *Tavily {
	t := NewTavily(apiKey, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if srv != nil {
		t.endpoint = srv.URL
	}
	return t
}

func TestHandle_Search(t *testing.T) {
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "It is sunny.",
			"results": []map[string]any{
				{"title": "Weather", "url": "https://example.com", "content": "Sunny today", "score": 0.97},
			},
		})
	}))
	defer srv.Close()

	tv := testTavily("key", srv)
	result := tv.Handle(context.Background(), map[string]any{"query": "weather today"})

	if result["success"] != true {
		t.Fatalf("result = %v", result)
	}
	if result["answer"] != "It is sunny." {
		t.Errorf("answer = %v", result["answer"])
	}
	results := result["results"].([]map[string]any)
	if len(results) != 1 || results[0]["title"] != "Weather" {
		t.Errorf("results = %v", results)
	}

	if gotReq.Query != "weather today" {
		t.Errorf("query sent = %q", gotReq.Query)
	}
	if gotReq.SearchDepth != "basic" {
		t.Errorf("search_depth = %q, want basic default", gotReq.SearchDepth)
	}
	if gotReq.MaxResults != defaultMaxResults {
		t.Errorf("max_results = %d", gotReq.MaxResults)
	}
}

func TestHandle_ClampsMaxResults(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 1},
		{-3, 1},
		{7, 7},
		{50, maxResultsCap},
	}
	for _, tc := range tests {
		var gotReq tavilyRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			w.Write([]byte(`{"results":[]}`))
		}))

		tv := testTavily("key", srv)
		tv.Handle(context.Background(), map[string]any{"query": "x", "max_results": tc.in})
		srv.Close()

		if gotReq.MaxResults != tc.want {
			t.Errorf("max_results %v clamped to %d, want %d", tc.in, gotReq.MaxResults, tc.want)
		}
	}
}

func TestHandle_InvalidDepthFallsBack(t *testing.T) {
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	tv := testTavily("key", srv)
	tv.Handle(context.Background(), map[string]any{"query": "x", "search_depth": "extreme"})
	if gotReq.SearchDepth != "basic" {
		t.Errorf("search_depth = %q", gotReq.SearchDepth)
	}

	tv.Handle(context.Background(), map[string]any{"query": "x", "search_depth": "advanced"})
	if gotReq.SearchDepth != "advanced" {
		t.Errorf("search_depth = %q", gotReq.SearchDepth)
	}
}

func TestHandle_MissingAPIKey(t *testing.T) {
	tv := testTavily("", nil)
	result := tv.Handle(context.Background(), map[string]any{"query": "anything"})
	if result["success"] != false {
		t.Fatalf("result = %v", result)
	}
	if !strings.Contains(result["error"].(string), "API key is not configured") {
		t.Errorf("error = %v", result["error"])
	}
}

func TestHandle_MissingQuery(t *testing.T) {
	tv := testTavily("key", nil)
	result := tv.Handle(context.Background(), map[string]any{})
	if result["success"] != false {
		t.Fatalf("result = %v", result)
	}
}

func TestHandle_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tv := testTavily("key", srv)
	result := tv.Handle(context.Background(), map[string]any{"query": "x"})
	if result["success"] != false {
		t.Fatalf("result = %v", result)
	}
	if !strings.Contains(result["error"].(string), "429") {
		t.Errorf("error = %v", result["error"])
	}
}

func TestIsSearchTool(t *testing.T) {
	if !IsSearchTool("web_search") {
		t.Error("web_search should be a search tool")
	}
	if IsSearchTool("play_music") {
		t.Error("play_music is not a search tool")
	}
}
