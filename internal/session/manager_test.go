package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nugget/voicebridge/internal/facts"
	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM returns a canned chat response and counts calls.
type fakeLLM struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, tools []map[string]any) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: f.response}}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, tools []map[string]any) (llm.Stream, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestFacts(t *testing.T) *facts.Store {
	t.Helper()
	s := facts.NewStore(storage.New(filepath.Join(t.TempDir(), "facts.json")), testLogger())
	s.Load()
	return s
}

func TestGet_ReusesLiveSession(t *testing.T) {
	m := NewManager(time.Minute, &fakeLLM{}, newTestFacts(t), testLogger())

	s1 := m.Get()
	s1.Add("user", "my name is Sam")
	s1.Add("assistant", "Nice to meet you, Sam")

	s2 := m.Get()
	if s1 != s2 {
		t.Fatal("Get within the timeout must return the same session")
	}
	msgs := s2.Messages()
	if len(msgs) != 2 || msgs[0].Content != "my name is Sam" {
		t.Errorf("session lost messages: %+v", msgs)
	}
}

func TestGet_SwapsExpiredSessionSynchronously(t *testing.T) {
	fake := &fakeLLM{response: `{"user_name": "Sam"}`}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s1 := m.Get()
	s1.Add("user", "my name is Sam")
	s1.Backdate(2 * time.Minute)

	s2 := m.Get()
	if s1 == s2 {
		t.Fatal("expired session must be swapped out")
	}
	if s2.Len() != 0 {
		t.Error("replacement session must start empty")
	}

	m.Wait()
	if fake.callCount() != 1 {
		t.Errorf("extraction calls = %d, want 1", fake.callCount())
	}
	if v, ok := store.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("extracted fact missing: %v, %v", v, ok)
	}
}

func TestGet_ExtractionScheduledExactlyOnce(t *testing.T) {
	fake := &fakeLLM{response: `{}`}
	m := NewManager(time.Minute, fake, newTestFacts(t), testLogger())

	s := m.Get()
	s.Add("user", "hello")
	s.Backdate(2 * time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Get()
		}()
	}
	wg.Wait()
	m.Wait()

	if got := m.Extractions(); got != 1 {
		t.Errorf("extractions = %d, want exactly 1", got)
	}
}

func TestGet_EmptySessionNotExtracted(t *testing.T) {
	fake := &fakeLLM{response: `{}`}
	m := NewManager(time.Minute, fake, newTestFacts(t), testLogger())

	s := m.Get()
	s.Backdate(2 * time.Minute)
	m.Get()
	m.Wait()

	if fake.callCount() != 0 {
		t.Errorf("empty session should not trigger extraction, calls = %d", fake.callCount())
	}
}

func TestExtraction_SkipsEmptyValues(t *testing.T) {
	fake := &fakeLLM{response: `{"user_name": "Sam", "noise": "", "gone": null}`}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "hi")
	s.Backdate(2 * time.Minute)
	m.Get()
	m.Wait()

	if store.Count() != 1 {
		t.Errorf("facts count = %d, want 1 (empty values skipped)", store.Count())
	}
}

func TestExtraction_FencedJSON(t *testing.T) {
	fake := &fakeLLM{response: "Here you go:\n```json\n{\"user_name\": \"Sam\"}\n```\n"}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "hi")
	s.Backdate(2 * time.Minute)
	m.Get()
	m.Wait()

	if v, ok := store.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("fenced JSON should still parse: %v, %v", v, ok)
	}
}

func TestExtraction_UnparseableDropped(t *testing.T) {
	fake := &fakeLLM{response: "I could not find any facts, sorry!"}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "hi")
	s.Backdate(2 * time.Minute)
	m.Get()
	m.Wait()

	if store.Count() != 0 {
		t.Errorf("unparseable extraction must store nothing, count = %d", store.Count())
	}
}

func TestExtraction_LLMErrorDropped(t *testing.T) {
	fake := &fakeLLM{err: errors.New("provider down")}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "hi")
	s.Backdate(2 * time.Minute)
	m.Get()
	m.Wait()

	if store.Count() != 0 {
		t.Errorf("failed extraction must store nothing, count = %d", store.Count())
	}
}

func TestRetire_ExtractsLiveSession(t *testing.T) {
	fake := &fakeLLM{response: `{"user_name": "Sam"}`}
	store := newTestFacts(t)
	m := NewManager(time.Minute, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "my name is Sam")

	// Shutdown path: the session has not expired but must still be
	// extracted rather than dropped.
	m.Retire()
	m.Wait()

	if fake.callCount() != 1 {
		t.Errorf("extraction calls = %d, want 1", fake.callCount())
	}
	if v, ok := store.Get("user_name"); !ok || v != "Sam" {
		t.Errorf("extracted fact missing: %v, %v", v, ok)
	}
	if m.Get().Len() != 0 {
		t.Error("session after Retire must start empty")
	}
}

func TestSweep_RetiresIdleSession(t *testing.T) {
	fake := &fakeLLM{response: `{"user_name": "Sam"}`}
	store := newTestFacts(t)
	m := NewManager(20*time.Millisecond, fake, store, testLogger())

	s := m.Get()
	s.Add("user", "my name is Sam")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Sweep(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for m.Extractions() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	m.Wait()

	if m.Extractions() != 1 {
		t.Errorf("sweep should have retired the idle session, extractions = %d", m.Extractions())
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"uppercase fence", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"prefix text", "Sure:\n```json\n{\"a\":1}\n```\nDone.", `{"a":1}`},
		{"unclosed fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranscript_Format(t *testing.T) {
	s := NewSession()
	s.Add("user", "hello")
	s.Add("assistant", "hi there")

	want := "User: hello\nAssistant: hi there\n"
	if got := s.Transcript(); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}
