package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nugget/voicebridge/internal/facts"
	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/prompts"
)

// maxSweepInterval caps how rarely the background sweep checks for an
// expired session.
const maxSweepInterval = 30 * time.Second

// Manager owns the single live session. When the session sits idle past
// the timeout it is swapped out synchronously (callers immediately get a
// fresh one) and fact extraction runs on the retired transcript in the
// background.
type Manager struct {
	mu      sync.Mutex
	current *Session

	timeout time.Duration
	llm     llm.Client
	facts   *facts.Store
	logger  *slog.Logger

	// wg tracks in-flight extractions so shutdown and tests can wait
	// for them. The task reference is retained here; fire-and-forget
	// goroutines that nothing observes are how extractions get lost.
	wg          sync.WaitGroup
	extractions int
}

// NewManager creates a session manager. factStore may be nil when fact
// learning is disabled; expiry then just drops the old session.
func NewManager(timeout time.Duration, client llm.Client, factStore *facts.Store, logger *slog.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		llm:     client,
		facts:   factStore,
		logger:  logger,
	}
}

// Get returns the live session, retiring an expired one first. The swap
// is synchronous: the caller always receives a session that is current
// as of this call. Extraction of the retired transcript happens in the
// background.
func (m *Manager) Get() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.current = NewSession()
		return m.current
	}

	if m.current.Expired(m.timeout) {
		m.retireLocked()
		m.current = NewSession()
	}
	return m.current
}

// Sweep runs the periodic expiry check until ctx is cancelled. The
// interval is half the session timeout, capped at 30s, so a session
// never lingers much past its deadline even when no requests arrive.
func (m *Manager) Sweep(ctx context.Context) {
	interval := m.timeout / 2
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.current != nil && m.current.Expired(m.timeout) {
				m.retireLocked()
				m.current = nil
			}
			m.mu.Unlock()
		}
	}
}

// retireLocked schedules fact extraction for the current session. The
// caller holds m.mu, which is what guarantees a session is retired at
// most once: whoever swaps it out is the only one holding it.
func (m *Manager) retireLocked() {
	old := m.current
	if old == nil || old.Len() == 0 {
		return
	}

	m.logger.Info("session expired, extracting facts",
		"messages", old.Len(), "timeout", m.timeout)

	m.extractions++
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.extractFacts(old)
	}()
}

// Retire retires the live session immediately, scheduling fact
// extraction for its transcript. Used at shutdown so a session that
// has not yet expired is not lost.
func (m *Manager) Retire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retireLocked()
	m.current = nil
}

// Wait blocks until all scheduled extractions have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Extractions returns how many extractions have been scheduled.
func (m *Manager) Extractions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extractions
}

// extractFacts asks the LLM to mine the retired transcript for personal
// facts and stores every non-empty value. Extraction is best effort:
// any failure is logged and the transcript is dropped.
func (m *Manager) extractFacts(s *Session) {
	if m.facts == nil || m.llm == nil {
		return
	}

	prompt := prompts.FactExtractionPrompt(s.Transcript())
	resp, err := m.llm.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: prompt},
	}, nil)
	if err != nil {
		m.logger.Warn("fact extraction request failed", "error", err)
		return
	}

	payload := stripCodeFences(resp.Message.Content)

	extracted := map[string]any{}
	if err := json.Unmarshal([]byte(payload), &extracted); err != nil {
		m.logger.Warn("fact extraction returned unparseable JSON",
			"error", err, "content", resp.Message.Content)
		return
	}

	stored := 0
	for key, value := range extracted {
		if value == nil {
			continue
		}
		if str, ok := value.(string); ok && str == "" {
			continue
		}
		m.facts.Set(key, value)
		stored++
	}

	if stored == 0 {
		m.logger.Debug("no facts extracted from session")
		return
	}

	if err := m.facts.Save(); err != nil {
		m.logger.Warn("failed to persist extracted facts", "error", err)
		return
	}
	m.logger.Info("extracted facts from expired session", "count", stored)
}

// stripCodeFences removes a markdown code fence around a JSON payload.
// Models wrap extraction output in ```json fences often enough that
// being strict here would throw facts away.
func stripCodeFences(s string) string {
	lower := strings.ToLower(s)
	if i := strings.Index(lower, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}
