package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hueai/medassist-backend/internal/assistant"
	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
	"github.com/hueai/medassist-backend/internal/utils"
)

// ChatRequest is one user turn plus its optional clinical context.
type ChatRequest struct {
	Message   string                `json:"message"`
	SessionID *uuid.UUID            `json:"session_id,omitempty"`
	PatientID *uuid.UUID            `json:"patient_id,omitempty"`
	Context   assistant.ContextData `json:"context,omitempty"`

	// Image is a base64 payload or data URI attached to the turn.
	Image string `json:"image,omitempty"`
}

// ChatResult is the aggregate outcome of one completed turn.
type ChatResult struct {
	SessionID       uuid.UUID            `json:"session_id"`
	Response        string               `json:"response"`
	RiskAssessment  string               `json:"risk_assessment"`
	ShouldSeeDoctor bool                 `json:"should_see_doctor"`
	ToolsUsed       []string             `json:"tools_used"`
	ThinkingSummary string               `json:"thinking_summary,omitempty"`
	Artifacts       []assistant.Artifact `json:"artifacts,omitempty"`
	Disclaimer      string               `json:"disclaimer"`
}

// CompleteData is the payload of the terminal complete event on the stream.
// It carries the same metadata the aggregate result does.
type CompleteData struct {
	SessionID       string   `json:"session_id"`
	Response        string   `json:"response"`
	RiskAssessment  string   `json:"risk_assessment"`
	ShouldSeeDoctor bool     `json:"should_see_doctor"`
	ToolsUsed       []string `json:"tools_used"`
	ThinkingSummary string   `json:"thinking_summary,omitempty"`
	Disclaimer      string   `json:"disclaimer"`
}

// ChatService runs the agent loop for one turn, in aggregate or streaming
// delivery. Both modes share the same underlying computation: streaming is
// only an event-level view of it.
type ChatService interface {
	Respond(ctx context.Context, req ChatRequest) (*ChatResult, error)
	RespondStream(ctx context.Context, req ChatRequest) (<-chan assistant.Event, error)
}

type chatService struct {
	model      openrouter.Client
	tools      assistant.ToolRunner
	vision     VisionService
	sessions   SessionService
	classifier *assistant.Classifier
	log        *logger.Logger

	maxIterations int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
}

func NewChatService(
	model openrouter.Client,
	tools assistant.ToolRunner,
	vision VisionService,
	sessions SessionService,
	classifier *assistant.Classifier,
	log *logger.Logger,
) ChatService {
	return &chatService{
		model:         model,
		tools:         tools,
		vision:        vision,
		sessions:      sessions,
		classifier:    classifier,
		log:           log.With("service", "ChatService"),
		maxIterations: utils.GetEnvAsInt("ASSISTANT_MAX_ITERATIONS", assistant.DefaultMaxIterations, log),
		modelTimeout:  time.Duration(utils.GetEnvAsInt("ASSISTANT_MODEL_TIMEOUT_SECONDS", 120, log)) * time.Second,
		toolTimeout:   time.Duration(utils.GetEnvAsInt("ASSISTANT_TOOL_TIMEOUT_SECONDS", 60, log)) * time.Second,
	}
}

func (s *chatService) Respond(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	// Intermediate events are only bookkeeping in aggregate mode; the
	// drain keeps the run from blocking on the channel.
	events := make(chan assistant.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range events {
		}
	}()

	result, err := s.run(ctx, req, false, events)
	close(events)
	<-done
	return result, err
}

func (s *chatService) RespondStream(ctx context.Context, req ChatRequest) (<-chan assistant.Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierr.InvalidArgument(errors.New("message is required"))
	}
	events := make(chan assistant.Event, 16)
	go func() {
		defer close(events)
		if _, err := s.run(ctx, req, true, events); err != nil {
			s.log.Error("Streaming chat turn failed", "error", err.Error())
		}
	}()
	return events, nil
}

func (s *chatService) emit(ctx context.Context, events chan<- assistant.Event, ev assistant.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *chatService) fail(ctx context.Context, events chan<- assistant.Event, err error) error {
	s.emit(ctx, events, assistant.Event{
		Type:      assistant.EventError,
		Data:      assistant.ErrorData{Message: err.Error()},
		Timestamp: time.Now().UTC(),
	})
	return err
}

// run drives one full turn. Persistence happens only once the loop reaches
// done: a canceled or failed turn leaves no partial exchange behind.
func (s *chatService) run(ctx context.Context, req ChatRequest, streaming bool, events chan<- assistant.Event) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, s.fail(ctx, events, apierr.InvalidArgument(errors.New("message is required")))
	}

	session, err := s.sessions.GetOrCreate(ctx, req.SessionID, req.PatientID, req.Message)
	if err != nil {
		return nil, s.fail(ctx, events, err)
	}

	var img *assistant.ImageInterpretation
	if strings.TrimSpace(req.Image) != "" {
		s.emit(ctx, events, assistant.Event{
			Type:      assistant.EventThinking,
			Data:      "Analyzing attached image...",
			Timestamp: time.Now().UTC(),
		})
		raw, decErr := utils.DecodeBase64Image(req.Image)
		if decErr != nil {
			return nil, s.fail(ctx, events, apierr.InvalidArgument(decErr))
		}
		img, err = s.vision.Analyze(ctx, raw, req.Message)
		if err != nil {
			return nil, s.fail(ctx, events, err)
		}
	}

	contextText := assistant.BuildContext(req.Context, img)

	history, err := s.sessions.History(ctx, session.ID, DefaultHistoryWindow)
	if err != nil {
		return nil, s.fail(ctx, events, err)
	}
	messages := assistant.BuildMessages(req.Message, contextText, history)

	loop := assistant.NewLoop(s.model, s.tools, assistant.ToolDefinitions(), s.log,
		assistant.WithMaxIterations(s.maxIterations),
		assistant.WithModelTimeout(s.modelTimeout),
		assistant.WithToolTimeout(s.toolTimeout),
	)

	inner := make(chan assistant.Event, 16)
	var (
		outcome *assistant.Outcome
		loopErr error
	)
	go func() {
		defer close(inner)
		outcome, loopErr = loop.Run(ctx, messages, streaming, inner)
	}()

	var thinkingSteps []string
	for ev := range inner {
		if ev.Type == assistant.EventThinking {
			if step, ok := ev.Data.(string); ok && step != "" {
				thinkingSteps = append(thinkingSteps, step)
			}
		}
		s.emit(ctx, events, ev)
	}

	if loopErr != nil {
		// The loop already emitted its error event.
		return nil, apierr.ModelCallFailure(loopErr)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	risk, shouldSeeDoctor := s.classifier.Classify(outcome.Content, contextText)

	summarySteps := thinkingSteps
	if len(summarySteps) > 3 {
		summarySteps = summarySteps[:3]
	}
	thinkingSummary := strings.Join(summarySteps, " → ")

	metadata := &domain.MessageMetadata{
		RiskAssessment:  risk,
		ShouldSeeDoctor: shouldSeeDoctor,
		ToolsUsed:       outcome.ToolsUsed,
		ThinkingSummary: thinkingSummary,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if img != nil {
		metadata.ImageInterpretation = img
	}

	if err := s.sessions.AppendExchange(ctx, session.ID, req.Message, outcome.Content, metadata); err != nil {
		return nil, s.fail(ctx, events, err)
	}

	result := &ChatResult{
		SessionID:       session.ID,
		Response:        outcome.Content,
		RiskAssessment:  risk,
		ShouldSeeDoctor: shouldSeeDoctor,
		ToolsUsed:       outcome.ToolsUsed,
		ThinkingSummary: thinkingSummary,
		Artifacts:       assistant.ExtractArtifacts(outcome.ToolResults),
		Disclaimer:      assistant.DisclaimerText,
	}
	if result.ToolsUsed == nil {
		result.ToolsUsed = []string{}
	}

	s.emit(ctx, events, assistant.Event{
		Type: assistant.EventComplete,
		Data: CompleteData{
			SessionID:       session.ID.String(),
			Response:        result.Response,
			RiskAssessment:  risk,
			ShouldSeeDoctor: shouldSeeDoctor,
			ToolsUsed:       result.ToolsUsed,
			ThinkingSummary: thinkingSummary,
			Disclaimer:      assistant.DisclaimerText,
		},
		Timestamp: time.Now().UTC(),
	})

	return result, nil
}
