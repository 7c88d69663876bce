package assistant

import (
	"time"
)

// EventType identifies one frame in the assistant's event stream.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventContent    EventType = "content"
	EventDone       EventType = "done"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// Event is one typed frame emitted by the agent loop. Data is the
// type-specific payload serialized onto the wire in streaming mode.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

// ToolCallData is the payload of a tool_call event.
type ToolCallData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultData is the payload of a tool_result event. Result is the opaque
// payload handed back to the model, an error description when Success is
// false.
type ToolResultData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

// DoneData is the payload of the loop's terminal done event.
type DoneData struct {
	Content    string   `json:"content"`
	ToolsUsed  []string `json:"tools_used"`
	Iterations int      `json:"iterations"`
	Exhausted  bool     `json:"exhausted"`
}

// ErrorData is the payload of a fatal error event.
type ErrorData struct {
	Message string `json:"message"`
}
