// Package agent implements the bounded tool-calling conversation loop
// that turns one voice utterance into one spoken response.
package agent

import (
	"context"
	"log/slog"

	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/prompts"
	"github.com/nugget/voicebridge/internal/session"
	"github.com/nugget/voicebridge/internal/tools"
)

// fallbackResponse is spoken when the iteration cap is exhausted
// without the model producing a final answer.
const fallbackResponse = "I encountered an issue processing your request."

// Config controls one conversation loop.
type Config struct {
	SystemPrompt   string
	MaxIterations  int
	ContinueMarker string
	AutoContinue   bool
}

// Result is the outcome of one conversation turn.
type Result struct {
	Text              string
	ContinueListening bool
	Iterations        int
}

// Loop drives the iterate-generate-route-reinject cycle.
type Loop struct {
	llm      llm.Client
	router   *tools.Router
	sessions *session.Manager
	cfg      Config
	logger   *slog.Logger
}

// NewLoop creates a conversation loop.
func NewLoop(client llm.Client, router *tools.Router, sessions *session.Manager, cfg Config, logger *slog.Logger) *Loop {
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	return &Loop{
		llm:      client,
		router:   router,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// systemPrompt returns the configured system prompt, with listening
// instructions appended when the model has to signal continuation
// itself.
func (l *Loop) systemPrompt() string {
	if l.cfg.AutoContinue {
		return l.cfg.SystemPrompt
	}
	return prompts.WithListeningInstructions(l.cfg.SystemPrompt, l.cfg.ContinueMarker)
}

// buildMessages assembles the message list for one turn: system prompt,
// session history, then the current utterance.
func (l *Loop) buildMessages(sess *session.Session, userText string) []llm.Message {
	history := sess.Messages()
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: l.systemPrompt()})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userText})
}

// Run executes one buffered conversation turn.
func (l *Loop) Run(ctx context.Context, userText string) (*Result, error) {
	sess := l.sessions.Get()
	messages := l.buildMessages(sess, userText)
	toolDefs := l.router.InitialTools()

	final := fallbackResponse
	iterations := l.cfg.MaxIterations

	for i := 1; i <= l.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := l.llm.Chat(ctx, messages, toolDefs)
		if err != nil {
			return nil, &GenerationError{Iteration: i, Err: err}
		}

		if len(resp.Message.ToolCalls) == 0 {
			final = resp.Message.Content
			iterations = i
			break
		}

		l.logger.Debug("model requested tools",
			"iteration", i,
			"calls", len(resp.Message.ToolCalls),
		)

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		})
		messages, toolDefs = l.dispatch(ctx, resp.Message.ToolCalls, messages, toolDefs)
	}

	return l.finish(sess, userText, final, iterations), nil
}

// dispatch routes tool calls and reinjects their results. Tools run on
// a detached context so in-flight device commands finish even when the
// caller hangs up mid-turn.
func (l *Loop) dispatch(ctx context.Context, calls []llm.ToolCall, messages []llm.Message, toolDefs []map[string]any) ([]llm.Message, []map[string]any) {
	results := l.router.Route(context.WithoutCancel(ctx), calls)
	for _, res := range results {
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    res.Content,
			ToolCallID: res.ToolCallID,
		})
		if len(res.Discovered) > 0 {
			toolDefs = mergeTools(toolDefs, res.Discovered)
			l.logger.Info("tool set expanded", "notice", res.Notice, "total", len(toolDefs))
		}
	}
	return messages, toolDefs
}

// finish records the exchange in the session and shapes the spoken
// result.
func (l *Loop) finish(sess *session.Session, userText, final string, iterations int) *Result {
	cleaned, keepListening := ProcessForListening(final, l.cfg.ContinueMarker, l.cfg.AutoContinue)

	sess.Add("user", userText)
	sess.Add("assistant", cleaned)

	return &Result{
		Text:              cleaned,
		ContinueListening: keepListening,
		Iterations:        iterations,
	}
}

// mergeTools overlays discovered definitions onto the live set,
// replacing same-named tools rather than duplicating them.
func mergeTools(current, discovered []map[string]any) []map[string]any {
	index := make(map[string]int, len(current))
	for i, def := range current {
		index[definitionName(def)] = i
	}
	for _, def := range discovered {
		name := definitionName(def)
		if i, ok := index[name]; ok {
			current[i] = def
			continue
		}
		index[name] = len(current)
		current = append(current, def)
	}
	return current
}

func definitionName(def map[string]any) string {
	fn, ok := def["function"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := fn["name"].(string)
	return name
}
