package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
	"github.com/hueai/medassist-backend/internal/repos"
)

type scriptedModel struct {
	turns []*openrouter.Completion
	err   error
	calls int
}

func (m *scriptedModel) next() (*openrouter.Completion, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.turns) == 0 {
		return &openrouter.Completion{FinishReason: "stop"}, nil
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	return turn, nil
}

func (m *scriptedModel) Complete(ctx context.Context, messages []openrouter.Message, tools []openrouter.Tool) (*openrouter.Completion, error) {
	return m.next()
}

func (m *scriptedModel) StreamComplete(ctx context.Context, messages []openrouter.Message, tools []openrouter.Tool, onDelta func(string)) (*openrouter.Completion, error) {
	turn, err := m.next()
	if err != nil {
		return nil, err
	}
	if turn.Content != "" && onDelta != nil {
		half := len(turn.Content) / 2
		onDelta(turn.Content[:half])
		onDelta(turn.Content[half:])
	}
	return turn, nil
}

type scriptedTools struct {
	payloads map[string]string
}

func (t *scriptedTools) Execute(ctx context.Context, name, rawArgs string) (string, bool) {
	if payload, ok := t.payloads[name]; ok {
		return payload, true
	}
	return `{"error":"unknown tool"}`, false
}

func newTestChatService(t *testing.T, model openrouter.Client, tools assistant.ToolRunner) (ChatService, *gorm.DB) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	gdb := newTestDB(t)
	sessions := NewSessionService(gdb, repos.NewSessionRepo(gdb, log), repos.NewMessageRepo(gdb, log), log)
	if tools == nil {
		tools = &scriptedTools{}
	}
	svc := NewChatService(model, tools, nil, sessions, assistant.NewClassifier(), log)
	return svc, gdb
}

func TestRespondPersistsExchange(t *testing.T) {
	model := &scriptedModel{turns: []*openrouter.Completion{
		{Content: "Your pain pattern suggests a tension headache.", FinishReason: "stop"},
	}}
	svc, gdb := newTestChatService(t, model, nil)
	patientID := uuid.New()

	result, err := svc.Respond(context.Background(), ChatRequest{
		Message:   "I keep getting headaches in the afternoon",
		PatientID: &patientID,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if result.SessionID == uuid.Nil {
		t.Fatal("expected session id")
	}
	if result.Response != "Your pain pattern suggests a tension headache." {
		t.Fatalf("response = %q", result.Response)
	}
	if result.RiskAssessment != assistant.RiskMedium {
		t.Fatalf("risk = %q, want MEDIUM", result.RiskAssessment)
	}
	if !result.ShouldSeeDoctor {
		t.Fatal("medium risk should advise seeing a doctor")
	}
	if result.Disclaimer != assistant.DisclaimerText {
		t.Fatal("disclaimer missing from result")
	}
	if len(result.ToolsUsed) != 0 {
		t.Fatalf("tools used = %v, want none", result.ToolsUsed)
	}

	var rows []domain.ChatMessage
	if err := gdb.Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("find messages: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("persisted rows = %d, want 2", len(rows))
	}
	if rows[1].Content != result.Response {
		t.Fatalf("persisted assistant content = %q", rows[1].Content)
	}
	if strings.Contains(rows[1].Content, "Disclaimer") {
		t.Fatal("disclaimer must not leak into persisted content")
	}
	var meta domain.MessageMetadata
	if err := json.Unmarshal(rows[1].Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.RiskAssessment != assistant.RiskMedium {
		t.Fatalf("persisted risk = %q", meta.RiskAssessment)
	}
}

func TestRespondRequiresMessage(t *testing.T) {
	svc, _ := newTestChatService(t, &scriptedModel{}, nil)

	_, err := svc.Respond(context.Background(), ChatRequest{Message: "   "})
	if err == nil {
		t.Fatal("expected error for blank message")
	}
	if ae := apierr.AsError(err); ae.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRespondToolFlow(t *testing.T) {
	labPayload := `{"type":"lab_explanation","summary":"CBC within normal limits"}`
	model := &scriptedModel{turns: []*openrouter.Completion{
		{
			ToolCalls: []openrouter.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: openrouter.FunctionCall{
					Name:      assistant.ToolLabExplanation,
					Arguments: `{"lab_results":{"wbc":"5.4"}}`,
				},
			}},
			FinishReason: "tool_calls",
		},
		{Content: "Your blood count results look normal.", FinishReason: "stop"},
	}}
	tools := &scriptedTools{payloads: map[string]string{
		assistant.ToolLabExplanation: labPayload,
	}}
	svc, _ := newTestChatService(t, model, tools)
	patientID := uuid.New()

	result, err := svc.Respond(context.Background(), ChatRequest{
		Message:   "Can you explain my blood test?",
		PatientID: &patientID,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0] != assistant.ToolLabExplanation {
		t.Fatalf("tools used = %v", result.ToolsUsed)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(result.Artifacts))
	}
	if result.Artifacts[0].Type != assistant.ArtifactLabExplanation {
		t.Fatalf("artifact type = %q", result.Artifacts[0].Type)
	}
}

func TestRespondModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("upstream unavailable")}
	svc, gdb := newTestChatService(t, model, nil)
	patientID := uuid.New()

	_, err := svc.Respond(context.Background(), ChatRequest{
		Message:   "hello",
		PatientID: &patientID,
	})
	if err == nil {
		t.Fatal("expected model failure")
	}
	if ae := apierr.AsError(err); ae.Status != 502 {
		t.Fatalf("expected 502, got %v", err)
	}

	var count int64
	if err := gdb.Model(&domain.ChatMessage{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("message rows = %d after failed turn, want 0", count)
	}
}

func TestRespondStreamEvents(t *testing.T) {
	model := &scriptedModel{turns: []*openrouter.Completion{
		{Content: "Persistent symptoms deserve a checkup.", FinishReason: "stop"},
	}}
	svc, gdb := newTestChatService(t, model, nil)
	patientID := uuid.New()

	events, err := svc.RespondStream(context.Background(), ChatRequest{
		Message:   "My cough will not go away",
		PatientID: &patientID,
	})
	if err != nil {
		t.Fatalf("RespondStream: %v", err)
	}

	var (
		deltas   strings.Builder
		complete *CompleteData
		sawDone  bool
	)
	for ev := range events {
		switch ev.Type {
		case assistant.EventContent:
			if s, ok := ev.Data.(string); ok {
				deltas.WriteString(s)
			}
		case assistant.EventDone:
			sawDone = true
		case assistant.EventComplete:
			data, ok := ev.Data.(CompleteData)
			if !ok {
				t.Fatalf("complete payload type %T", ev.Data)
			}
			complete = &data
		case assistant.EventError:
			t.Fatalf("unexpected error event: %+v", ev.Data)
		}
	}
	if !sawDone {
		t.Fatal("missing done event")
	}
	if complete == nil {
		t.Fatal("missing complete event")
	}
	if deltas.String() != complete.Response {
		t.Fatalf("deltas %q != response %q", deltas.String(), complete.Response)
	}
	// "persistent" is a high-risk keyword.
	if complete.RiskAssessment != assistant.RiskHigh {
		t.Fatalf("risk = %q, want HIGH", complete.RiskAssessment)
	}

	var rows []domain.ChatMessage
	if err := gdb.Where("role = ?", domain.RoleAssistant).Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].Content != complete.Response {
		t.Fatalf("persisted content does not match streamed response: %+v", rows)
	}
}

// blockingModel parks inside the model call until the request context is
// canceled, standing in for a client that disconnects mid-stream.
type blockingModel struct {
	started chan struct{}
}

func (m *blockingModel) Complete(ctx context.Context, messages []openrouter.Message, tools []openrouter.Tool) (*openrouter.Completion, error) {
	close(m.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *blockingModel) StreamComplete(ctx context.Context, messages []openrouter.Message, tools []openrouter.Tool, onDelta func(string)) (*openrouter.Completion, error) {
	return m.Complete(ctx, messages, tools)
}

func TestRespondStreamCancelPersistsNothing(t *testing.T) {
	model := &blockingModel{started: make(chan struct{})}
	svc, gdb := newTestChatService(t, model, nil)
	patientID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := svc.RespondStream(ctx, ChatRequest{
		Message:   "tell me about my results",
		PatientID: &patientID,
	})
	if err != nil {
		t.Fatalf("RespondStream: %v", err)
	}

	<-model.started
	cancel()
	for range events {
	}

	var count int64
	if err := gdb.Model(&domain.ChatMessage{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("message rows = %d after disconnect, want 0", count)
	}
}

func TestRespondStreamRequiresMessage(t *testing.T) {
	svc, _ := newTestChatService(t, &scriptedModel{}, nil)

	_, err := svc.RespondStream(context.Background(), ChatRequest{Message: ""})
	if err == nil {
		t.Fatal("expected error for blank message")
	}
	if ae := apierr.AsError(err); ae.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}
