// Package llm provides the Groq chat-completions client used for
// conversation turns and fact extraction.
package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message in OpenAI wire format.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool invocation requested by the model. Arguments
// arrive as a JSON-encoded string, exactly as the wire carries them;
// decoding is the tool router's job so that malformed arguments can be
// reported per-call instead of failing the whole response.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function name and raw argument payload of a tool call.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// DecodeArguments unmarshals the raw argument string into a map.
func (tc ToolCall) DecodeArguments() (map[string]any, error) {
	args := map[string]any{}
	if tc.Function.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ChatResponse is the completed (non-streaming) result of a chat request.
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage as reported by the provider.
	InputTokens  int
	OutputTokens int
}

// StreamChunk is one unit of a streaming response. Content chunks carry
// incremental text; the final chunk carries any fully assembled tool
// calls and has Final set.
type StreamChunk struct {
	Content   string
	ToolCalls []ToolCall
	Final     bool
}

// Stream yields StreamChunks until the response is complete. Recv returns
// io.EOF after the final chunk has been delivered.
type Stream interface {
	Recv() (*StreamChunk, error)
	Close() error
}

// Client is the provider surface consumed by the conversation loop and
// the session fact extractor. Faked in tests.
type Client interface {
	Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error)
	ChatStream(ctx context.Context, messages []Message, tools []map[string]any) (Stream, error)
}
