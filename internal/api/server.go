// Package api exposes the conversation loop over HTTP for the voice
// pipeline: a converse endpoint (JSON or SSE), fact and history
// inspection, and health.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/voicebridge/internal/agent"
	"github.com/nugget/voicebridge/internal/archive"
	"github.com/nugget/voicebridge/internal/buildinfo"
	"github.com/nugget/voicebridge/internal/facts"
	"github.com/nugget/voicebridge/internal/mqtt"
	"github.com/nugget/voicebridge/internal/speech"
)

// writeJSON encodes v as JSON to w, logging failures at debug level.
// By the time encoding fails the status line is already gone, so there
// is nothing better to do than log.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to encode response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	addr      string
	loop      *agent.Loop
	logger    *slog.Logger
	streaming bool

	facts     *facts.Store
	archive   *archive.Store
	announcer *mqtt.Announcer

	server *http.Server
}

// NewServer creates an API server around the conversation loop.
func NewServer(addr string, loop *agent.Loop, streaming bool, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		loop:      loop,
		streaming: streaming,
		logger:    logger,
	}
}

// SetFactStore enables the facts endpoint.
func (s *Server) SetFactStore(store *facts.Store) {
	s.facts = store
}

// SetArchive enables exchange recording and the history endpoint.
func (s *Server) SetArchive(store *archive.Store) {
	s.archive = store
}

// SetAnnouncer publishes each completed response over MQTT.
func (s *Server) SetAnnouncer(a *mqtt.Announcer) {
	s.announcer = a
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/converse", s.handleConverse)
	mux.HandleFunc("GET /api/facts", s.handleFacts)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)
	return s.withLogging(mux)
}

// Start begins serving and blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // streaming turns are slow
	}
	s.logger.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	writeJSON(w, map[string]any{"error": message}, s.logger)
}

// ConverseRequest is one utterance from the voice pipeline.
type ConverseRequest struct {
	Text   string `json:"text"`
	Stream bool   `json:"stream,omitempty"`
}

// ConverseResponse is the completed turn.
type ConverseResponse struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	Speech            string `json:"speech"`
	ContinueListening bool   `json:"continue_listening"`
	Iterations        int    `json:"iterations"`
}

func (s *Server) handleConverse(w http.ResponseWriter, r *http.Request) {
	var req ConverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		s.errorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	if req.Stream && s.streaming {
		s.converseStream(w, r, req.Text)
		return
	}

	result, err := s.loop.Run(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("conversation failed", "error", err)
		s.errorResponse(w, http.StatusBadGateway, "conversation failed")
		return
	}

	resp := s.completed(r.Context(), req.Text, result)
	writeJSON(w, resp, s.logger)
}

func (s *Server) converseStream(w http.ResponseWriter, r *http.Request, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	result, err := s.loop.RunStream(r.Context(), text, func(fragment string) {
		s.writeSSE(w, map[string]any{"delta": fragment})
		flusher.Flush()
	})
	if err != nil {
		// The status line is already written; signal failure in-band.
		s.logger.Error("conversation failed", "error", err)
		s.writeSSE(w, map[string]any{"error": "conversation failed"})
		flusher.Flush()
		return
	}

	resp := s.completed(r.Context(), text, result)
	s.writeSSE(w, map[string]any{"done": resp})
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// completed archives, announces, and shapes one finished turn.
func (s *Server) completed(ctx context.Context, userText string, result *agent.Result) ConverseResponse {
	resp := ConverseResponse{
		ID:                uuid.NewString(),
		Text:              result.Text,
		Speech:            speech.Render(result.Text),
		ContinueListening: result.ContinueListening,
		Iterations:        result.Iterations,
	}

	if s.archive != nil {
		id, err := s.archive.Record(context.WithoutCancel(ctx), archive.Exchange{
			ID:                resp.ID,
			UserText:          userText,
			AssistantText:     result.Text,
			Iterations:        result.Iterations,
			ContinueListening: result.ContinueListening,
		})
		if err != nil {
			s.logger.Warn("failed to archive exchange", "error", err)
		} else {
			resp.ID = id
		}
	}

	if s.announcer != nil {
		s.announcer.Announce(context.WithoutCancel(ctx), mqtt.Response{
			Text:              resp.Text,
			Speech:            resp.Speech,
			ContinueListening: resp.ContinueListening,
		})
	}

	return resp
}

func (s *Server) writeSSE(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Debug("failed to marshal SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		s.logger.Debug("failed to write SSE event", "error", err)
	}
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	if s.facts == nil {
		s.errorResponse(w, http.StatusNotFound, "fact learning is disabled")
		return
	}
	all := s.facts.All()
	writeJSON(w, map[string]any{
		"facts": all,
		"count": len(all),
	}, s.logger)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.errorResponse(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	exchanges, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if exchanges == nil {
		exchanges = []archive.Exchange{}
	}
	writeJSON(w, map[string]any{
		"exchanges": exchanges,
		"count":     len(exchanges),
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": buildinfo.Version,
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"name":    "voicebridge",
		"version": buildinfo.Version,
	}, s.logger)
}
