package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/services"
)

type fakeChatService struct {
	result *services.ChatResult
	events []assistant.Event
	err    error
	seen   services.ChatRequest
}

func (f *fakeChatService) Respond(ctx context.Context, req services.ChatRequest) (*services.ChatResult, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeChatService) RespondStream(ctx context.Context, req services.ChatRequest) (<-chan assistant.Event, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan assistant.Event, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out, nil
}

func newChatRouter(t *testing.T, svc services.ChatService) *gin.Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	gin.SetMode(gin.TestMode)
	h := NewChatHandler(log, svc)
	r := gin.New()
	r.POST("/api/assistant/chat", h.Chat)
	r.POST("/api/assistant/chat/stream", h.ChatStream)
	return r
}

func TestChatAggregate(t *testing.T) {
	sessionID := uuid.New()
	svc := &fakeChatService{result: &services.ChatResult{
		SessionID:      sessionID,
		Response:       "drink more water",
		RiskAssessment: assistant.RiskLow,
		ToolsUsed:      []string{},
		Disclaimer:     assistant.DisclaimerText,
	}}
	r := newChatRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"message":"I feel thirsty"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), sessionID.String()) {
		t.Fatalf("body missing session id: %s", w.Body.String())
	}
	if svc.seen.Message != "I feel thirsty" {
		t.Fatalf("request message = %q", svc.seen.Message)
	}
}

func TestChatSessionIDQueryOverride(t *testing.T) {
	svc := &fakeChatService{result: &services.ChatResult{}}
	r := newChatRouter(t, svc)
	sessionID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat?session_id="+sessionID.String(), strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.seen.SessionID == nil || *svc.seen.SessionID != sessionID {
		t.Fatalf("session id not taken from query: %v", svc.seen.SessionID)
	}
}

func TestChatServiceErrorMapped(t *testing.T) {
	svc := &fakeChatService{err: apierr.NotFound(context.Canceled)}
	r := newChatRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"message":"hi","session_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestChatStreamWritesSSEFrames(t *testing.T) {
	now := time.Now().UTC()
	svc := &fakeChatService{events: []assistant.Event{
		{Type: assistant.EventThinking, Data: "Analyzing your request...", Timestamp: now},
		{Type: assistant.EventContent, Data: "hello", Timestamp: now},
		{Type: assistant.EventDone, Data: assistant.DoneData{Content: "hello", Iterations: 1}, Timestamp: now},
		{Type: assistant.EventComplete, Data: services.CompleteData{Response: "hello"}, Timestamp: now},
	}}
	r := newChatRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat/stream", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) != 5 {
		t.Fatalf("frames = %d, body = %q", len(frames), body)
	}
	for _, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("bad frame %q", frame)
		}
	}
	if frames[len(frames)-1] != "data: [DONE]" {
		t.Fatalf("last frame = %q", frames[len(frames)-1])
	}
	if !strings.Contains(frames[0], `"type":"thinking"`) {
		t.Fatalf("first frame = %q", frames[0])
	}
}

func TestChatStreamBadJSON(t *testing.T) {
	r := newChatRouter(t, &fakeChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat/stream", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
