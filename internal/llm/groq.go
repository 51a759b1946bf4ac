package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/voicebridge/internal/httpkit"
)

// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to the Groq chat-completions API. Groq speaks the
// OpenAI wire format, so this client works against any OpenAI-compatible
// endpoint via the base URL.
type GroqClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	client      *http.Client
	streamCli   *http.Client
	logger      *slog.Logger
}

// GroqOption configures a GroqClient.
type GroqOption func(*GroqClient)

// WithModel sets the model name.
func WithModel(model string) GroqOption {
	return func(c *GroqClient) { c.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GroqOption {
	return func(c *GroqClient) { c.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) GroqOption {
	return func(c *GroqClient) { c.maxTokens = n }
}

// WithTimeout bounds every request, streaming included.
func WithTimeout(d time.Duration) GroqOption {
	return func(c *GroqClient) { c.timeout = d }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) GroqOption {
	return func(c *GroqClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewGroqClient creates a Groq client.
func NewGroqClient(apiKey string, logger *slog.Logger, opts ...GroqOption) *GroqClient {
	c := &GroqClient{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		model:       "llama-3.3-70b-versatile",
		temperature: 0.7,
		maxTokens:   1024,
		timeout:     30 * time.Second,
		logger:      logger,
	}
	for _, o := range opts {
		o(c)
	}
	c.client = httpkit.NewClient(httpkit.WithTimeout(c.timeout))
	// The streaming client carries no client-level timeout; ChatStream
	// bounds each stream with its own context deadline so Close can
	// release the connection early.
	c.streamCli = httpkit.NewClient(httpkit.WithTimeout(0))
	return c
}

// Model returns the configured model name.
func (c *GroqClient) Model() string { return c.model }

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a blocking chat-completion request.
func (c *GroqClient) Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, c.client, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var completion chatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	c.logger.Log(ctx, levelTrace, "groq chat completed",
		"model", completion.Model,
		"tool_calls", len(completion.Choices[0].Message.ToolCalls),
		"input_tokens", completion.Usage.PromptTokens,
		"output_tokens", completion.Usage.CompletionTokens,
	)

	return &ChatResponse{
		Model:        completion.Model,
		Message:      completion.Choices[0].Message,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

// ChatStream sends a streaming chat-completion request. The returned
// Stream must be closed by the caller.
func (c *GroqClient) ChatStream(ctx context.Context, messages []Message, tools []map[string]any) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	resp, err := c.post(ctx, c.streamCli, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	// A single data: line carries a whole delta; the default 64KB token
	// limit is too small for large tool arguments.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &sseStream{
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

func (c *GroqClient) post(ctx context.Context, client *http.Client, req chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("chat API error %d: %s", resp.StatusCode, body)
	}

	return resp, nil
}

// levelTrace mirrors config.LevelTrace without importing config.
const levelTrace = slog.Level(-8)

// sseStream parses text/event-stream chat chunks. Content deltas are
// surfaced immediately; tool-call deltas are accumulated by index and
// assembled into complete calls on the finish chunk, since a single
// call's name and arguments arrive fragmented across many events.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	acc     []toolCallAcc
	done    bool
}

type toolCallAcc struct {
	id   string
	typ  string
	name []string
	args []string
}

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (s *sseStream) Recv() (*StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return s.finish()
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		for _, tc := range choice.Delta.ToolCalls {
			for len(s.acc) <= tc.Index {
				s.acc = append(s.acc, toolCallAcc{})
			}
			a := &s.acc[tc.Index]
			if tc.ID != "" {
				a.id = tc.ID
			}
			if tc.Type != "" {
				a.typ = tc.Type
			}
			if tc.Function.Name != "" {
				a.name = append(a.name, tc.Function.Name)
			}
			if tc.Function.Arguments != "" {
				a.args = append(a.args, tc.Function.Arguments)
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return s.finish()
		}

		if choice.Delta.Content != "" {
			return &StreamChunk{Content: choice.Delta.Content}, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	// Stream ended without an explicit finish chunk.
	return s.finish()
}

// finish assembles accumulated tool calls into the terminal chunk.
func (s *sseStream) finish() (*StreamChunk, error) {
	s.done = true
	final := &StreamChunk{Final: true}
	for _, a := range s.acc {
		tc := ToolCall{ID: a.id, Type: a.typ}
		tc.Function.Name = strings.Join(a.name, "")
		tc.Function.Arguments = strings.Join(a.args, "")
		final.ToolCalls = append(final.ToolCalls, tc)
	}
	return final, nil
}

func (s *sseStream) Close() error {
	s.cancel()
	httpkit.DrainAndClose(s.body, 4096)
	return nil
}
