package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/pkg/httpx"
)

// Message is a single chat-completions turn. Content is either a plain string
// or a []ContentPart for multimodal turns.
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ContentPart struct {
	Type     string    `json:"type"` // "text" | "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// Completion is the normalized model turn: assistant text, requested tool
// calls, or both, plus the provider finish reason.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Client is the OpenRouter chat-completions client used by the assistant.
type Client interface {
	// Complete runs a single non-streaming model turn.
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Completion, error)

	// StreamComplete streams content deltas through onDelta and returns the
	// assembled completion, including any tool calls accumulated from deltas.
	StreamComplete(ctx context.Context, messages []Message, tools []Tool, onDelta func(delta string)) (*Completion, error)
}

func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// MultimodalUserMessage builds a user turn carrying text plus one image as a
// data URI or https URL.
func MultimodalUserMessage(text, imageURL string) Message {
	return Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}
}

// ToolResultMessage builds the "tool" role turn that feeds a tool's output
// (or its error payload) back to the model.
func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: "tool", ToolCallID: toolCallID, Name: name, Content: content}
}

// AssistantToolCallMessage echoes the assistant turn that requested the given
// tool calls, as the chat-completions transcript format requires.
func AssistantToolCallMessage(content string, toolCalls []ToolCall) Message {
	m := Message{Role: "assistant", ToolCalls: toolCalls}
	if strings.TrimSpace(content) != "" {
		m.Content = content
	}
	return m
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	referer    string
	title      string
	httpClient *http.Client

	maxRetries  int
	temperature float64
	topP        float64
	maxTokens   int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENROUTER_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENROUTER_MODEL"))
	if model == "" {
		model = "openai/gpt-oss-120b"
	}

	timeoutSec := 120
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	temperature := 0.7
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = f
		}
	}
	topP := 0.9
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_TOP_P")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			topP = f
		}
	}
	maxTokens := 1024
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_MAX_TOKENS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxTokens = parsed
		}
	}

	return &client{
		log:         log.With("service", "OpenRouterClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		referer:     strings.TrimSpace(os.Getenv("OPENROUTER_SITE_URL")),
		title:       strings.TrimSpace(os.Getenv("OPENROUTER_APP_NAME")),
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		temperature: temperature,
		topP:        topP,
		maxTokens:   maxTokens,
	}, nil
}

type openRouterHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openRouterHTTPError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Body)
}

func (e *openRouterHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *client) newRequest(ctx context.Context, body *bytes.Buffer, streaming bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
	return req, nil
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := c.newRequest(ctx, &buf, false)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openRouterHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openrouter decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenRouter request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) buildRequest(messages []Message, tools []Tool, stream bool) (*chatRequest, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages required")
	}
	req := &chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req, nil
}

func (c *client) Complete(ctx context.Context, messages []Message, tools []Tool) (*Completion, error) {
	req, err := c.buildRequest(messages, tools, false)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil && strings.TrimSpace(resp.Error.Message) != "" {
		return nil, fmt.Errorf("openrouter error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openrouter response missing choices")
	}

	choice := resp.Choices[0]
	return &Completion{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}, nil
}

// streamChunk mirrors the chat-completions streaming payload. Tool call
// fragments arrive keyed by index and must be stitched back together.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Type     string `json:"type,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *client) StreamComplete(ctx context.Context, messages []Message, tools []Tool, onDelta func(delta string)) (*Completion, error) {
	reqBody, err := c.buildRequest(messages, tools, true)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, &buf, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &openRouterHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	defer resp.Body.Close()

	var (
		full         strings.Builder
		finishReason string
		acc          = map[int]*ToolCall{}
		maxIndex     = -1
	)

	err = streamSSE(resp.Body, func(event string, data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil && strings.TrimSpace(chunk.Error.Message) != "" {
			return fmt.Errorf("openrouter stream error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			return nil
		}

		choice := chunk.Choices[0]
		if fr := strings.TrimSpace(choice.FinishReason); fr != "" {
			finishReason = fr
		}
		if d := choice.Delta.Content; d != "" {
			full.WriteString(d)
			if onDelta != nil {
				onDelta(d)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			cur, ok := acc[tc.Index]
			if !ok {
				cur = &ToolCall{Type: "function"}
				acc[tc.Index] = cur
			}
			if tc.Index > maxIndex {
				maxIndex = tc.Index
			}
			if tc.ID != "" {
				cur.ID = tc.ID
			}
			if tc.Type != "" {
				cur.Type = tc.Type
			}
			if tc.Function.Name != "" {
				cur.Function.Name += tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				cur.Function.Arguments += tc.Function.Arguments
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &Completion{
		Content:      full.String(),
		FinishReason: finishReason,
	}
	for i := 0; i <= maxIndex; i++ {
		if tc, ok := acc[i]; ok && strings.TrimSpace(tc.Function.Name) != "" {
			out.ToolCalls = append(out.ToolCalls, *tc)
		}
	}
	return out, nil
}
