package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
)

const DefaultMaxIterations = 5

// ToolRunner executes one named tool with its raw JSON arguments. It must
// never fail past its boundary: internal errors are serialized into the
// returned payload and flagged with ok=false.
type ToolRunner interface {
	Execute(ctx context.Context, name string, rawArgs string) (payload string, ok bool)
}

// Outcome is the loop's terminal state, shared by both delivery modes.
type Outcome struct {
	Content     string
	ToolsUsed   []string
	ToolResults []ToolResultData
	Iterations  int
	Exhausted   bool
}

// Loop is the bounded tool-calling state machine. One instance serves one
// turn; it holds no mutable state across runs.
type Loop struct {
	model openrouter.Client
	tools ToolRunner
	defs  []openrouter.Tool
	log   *logger.Logger

	maxIterations int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
}

type LoopOption func(*Loop)

func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

func WithModelTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.modelTimeout = d }
}

func WithToolTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.toolTimeout = d }
}

func NewLoop(model openrouter.Client, tools ToolRunner, defs []openrouter.Tool, log *logger.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		model:         model,
		tools:         tools,
		defs:          defs,
		log:           log.With("component", "AgentLoop"),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// emit delivers one event unless the turn has been canceled.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run drives the turn to completion, pushing events onto the channel as they
// happen. In streaming mode model content is additionally emitted as content
// deltas. The caller owns the channel; Run never closes it.
//
// A model failure emits an error event and returns the error. Tool failures
// never abort the run; they are fed back to the model as error payloads.
func (l *Loop) Run(ctx context.Context, messages []openrouter.Message, streaming bool, events chan<- Event) (*Outcome, error) {
	emit(ctx, events, newEvent(EventThinking, "Analyzing your request..."))

	var (
		content     strings.Builder
		toolsUsed   []string
		seenTools   = map[string]bool{}
		toolResults []ToolResultData
	)

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		completion, err := l.callModel(ctx, messages, streaming, events)
		if err != nil {
			l.log.Error("Model call failed", "iteration", iteration, "error", err.Error())
			emit(ctx, events, newEvent(EventError, ErrorData{Message: err.Error()}))
			return nil, err
		}

		content.WriteString(completion.Content)

		// No tool calls means the model is done, even with empty content.
		if len(completion.ToolCalls) == 0 {
			out := &Outcome{
				Content:     content.String(),
				ToolsUsed:   toolsUsed,
				ToolResults: toolResults,
				Iterations:  iteration + 1,
			}
			emit(ctx, events, newEvent(EventDone, DoneData{
				Content:    out.Content,
				ToolsUsed:  out.ToolsUsed,
				Iterations: out.Iterations,
			}))
			return out, nil
		}

		names := make([]string, 0, len(completion.ToolCalls))
		for _, tc := range completion.ToolCalls {
			names = append(names, tc.Function.Name)
			if !seenTools[tc.Function.Name] {
				seenTools[tc.Function.Name] = true
				toolsUsed = append(toolsUsed, tc.Function.Name)
			}
		}
		emit(ctx, events, newEvent(EventThinking, "Using "+strings.Join(names, ", ")+"..."))

		messages = append(messages, openrouter.AssistantToolCallMessage(completion.Content, completion.ToolCalls))

		results := l.executeToolCalls(ctx, completion.ToolCalls, events)
		for _, res := range results {
			toolResults = append(toolResults, res)
			emit(ctx, events, newEvent(EventToolResult, res))
			messages = append(messages, openrouter.ToolResultMessage(res.ID, res.Name, res.Result))
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	// Iteration budget spent: return whatever content accumulated, not an
	// error.
	l.log.Warn("Iteration budget exhausted", "max_iterations", l.maxIterations)
	out := &Outcome{
		Content:     content.String(),
		ToolsUsed:   toolsUsed,
		ToolResults: toolResults,
		Iterations:  l.maxIterations,
		Exhausted:   true,
	}
	emit(ctx, events, newEvent(EventDone, DoneData{
		Content:    out.Content,
		ToolsUsed:  out.ToolsUsed,
		Iterations: out.Iterations,
		Exhausted:  true,
	}))
	return out, nil
}

func (l *Loop) callModel(ctx context.Context, messages []openrouter.Message, streaming bool, events chan<- Event) (*openrouter.Completion, error) {
	callCtx := ctx
	if l.modelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.modelTimeout)
		defer cancel()
	}

	if !streaming {
		return l.model.Complete(callCtx, messages, l.defs)
	}
	return l.model.StreamComplete(callCtx, messages, l.defs, func(delta string) {
		emit(ctx, events, newEvent(EventContent, delta))
	})
}

// executeToolCalls fans the calls out concurrently and returns results in
// the original call order. tool_call events are emitted in call order before
// any execution starts; one tool's failure never cancels its siblings.
func (l *Loop) executeToolCalls(ctx context.Context, calls []openrouter.ToolCall, events chan<- Event) []ToolResultData {
	for _, tc := range calls {
		emit(ctx, events, newEvent(EventToolCall, ToolCallData{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}))
	}

	results := make([]ToolResultData, len(calls))
	var g errgroup.Group
	for i, tc := range calls {
		g.Go(func() error {
			toolCtx := ctx
			if l.toolTimeout > 0 {
				var cancel context.CancelFunc
				toolCtx, cancel = context.WithTimeout(ctx, l.toolTimeout)
				defer cancel()
			}
			payload, ok := l.tools.Execute(toolCtx, tc.Function.Name, tc.Function.Arguments)
			results[i] = ToolResultData{
				ID:      tc.ID,
				Name:    tc.Function.Name,
				Success: ok,
				Result:  payload,
			}
			return nil
		})
	}
	// The group never returns errors; tool failures land in the payloads.
	if err := g.Wait(); err != nil {
		l.log.Error("Tool fan-out failed", "error", err.Error())
	}

	for i := range results {
		if results[i].ID == "" {
			results[i].ID = fmt.Sprintf("call_%d", i)
		}
	}
	return results
}
