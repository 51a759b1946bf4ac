package agent

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/nugget/voicebridge/internal/llm"
	"github.com/nugget/voicebridge/internal/marker"
)

// RunStream executes one conversation turn, relaying response fragments
// through emit as they arrive. Fragments pass through a marker buffer
// so the continue marker never reaches the satellite, and are held back
// until the stream's terminal chunk proves the iteration tool-free:
// content preceding tool calls is model deliberation, not speech.
func (l *Loop) RunStream(ctx context.Context, userText string, emit func(string)) (*Result, error) {
	sess := l.sessions.Get()
	messages := l.buildMessages(sess, userText)
	toolDefs := l.router.InitialTools()

	final := fallbackResponse
	iterations := l.cfg.MaxIterations
	streamed := false

	for i := 1; i <= l.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, calls, err := l.streamIteration(ctx, messages, toolDefs, emit)
		if err != nil {
			return nil, &GenerationError{Iteration: i, Err: err}
		}

		if len(calls) == 0 {
			final = text
			iterations = i
			streamed = true
			break
		}

		l.logger.Debug("model requested tools", "iteration", i, "calls", len(calls))
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   text,
			ToolCalls: calls,
		})
		messages, toolDefs = l.dispatch(ctx, calls, messages, toolDefs)
	}

	if !streamed {
		emit(fallbackResponse)
	}
	return l.finish(sess, userText, final, iterations), nil
}

// streamIteration consumes one model response. Returns the full raw
// content and any tool calls; fragments are emitted only when the
// response carried no tool calls.
func (l *Loop) streamIteration(ctx context.Context, messages []llm.Message, toolDefs []map[string]any, emit func(string)) (string, []llm.ToolCall, error) {
	stream, err := l.llm.ChatStream(ctx, messages, toolDefs)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	buf := marker.New(l.cfg.ContinueMarker)
	var content strings.Builder
	var held []string
	var calls []llm.ToolCall

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}

		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			if out := buf.Push(chunk.Content); out != "" {
				held = append(held, out)
			}
		}
		if chunk.Final {
			calls = chunk.ToolCalls
			break
		}
	}

	if len(calls) > 0 {
		return content.String(), calls, nil
	}

	if tail := buf.Flush(); tail != "" {
		held = append(held, tail)
	}
	for _, fragment := range held {
		emit(fragment)
	}
	if buf.Found() && !endsWithQuestionMark(held) {
		emit("?")
	}
	return content.String(), nil, nil
}

func endsWithQuestionMark(fragments []string) bool {
	for i := len(fragments) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(fragments[i])
		if trimmed == "" {
			continue
		}
		return strings.HasSuffix(trimmed, "?")
	}
	return false
}
