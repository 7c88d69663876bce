package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/apierr"
	"github.com/hueai/medassist-backend/internal/platform/dbctx"
	"github.com/hueai/medassist-backend/internal/repos"
)

const (
	// DefaultHistoryWindow bounds the model's view of prior turns; older
	// turns stay stored but are dropped from the prompt.
	DefaultHistoryWindow = 10

	maxTitleRunes = 100
)

// SessionSummary is a session row plus its message count, used by the
// patient session listing.
type SessionSummary struct {
	Session      *domain.ChatSession `json:"session"`
	MessageCount int64               `json:"message_count"`
}

type SessionService interface {
	// GetOrCreate resolves an existing session by id or creates a new one
	// for the patient. A supplied id that does not resolve fails with
	// NotFound; creating without a patient id fails with InvalidArgument.
	GetOrCreate(ctx context.Context, sessionID, patientID *uuid.UUID, firstMessage string) (*domain.ChatSession, error)

	// AppendExchange persists the user and assistant messages of one
	// completed turn atomically and refreshes the session timestamps.
	AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, assistantText string, metadata *domain.MessageMetadata) error

	// History returns the most recent messages in chronological order.
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)

	// FullHistory returns the session and its complete message list.
	FullHistory(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, []*domain.ChatMessage, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, status string, offset, limit int) ([]SessionSummary, int64, error)
	Close(ctx context.Context, sessionID uuid.UUID) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

type sessionService struct {
	db       *gorm.DB
	sessions repos.SessionRepo
	messages repos.MessageRepo
	log      *logger.Logger
}

func NewSessionService(db *gorm.DB, sessions repos.SessionRepo, messages repos.MessageRepo, log *logger.Logger) SessionService {
	return &sessionService{
		db:       db,
		sessions: sessions,
		messages: messages,
		log:      log.With("service", "SessionService"),
	}
}

// TitleFromMessage derives the session title from its first message,
// truncating to 100 characters plus an ellipsis.
func TitleFromMessage(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes]) + "..."
	}
	return firstMessage
}

func (s *sessionService) GetOrCreate(ctx context.Context, sessionID, patientID *uuid.UUID, firstMessage string) (*domain.ChatSession, error) {
	dbc := dbctx.New(ctx)

	if sessionID != nil && *sessionID != uuid.Nil {
		session, err := s.sessions.GetByID(dbc, *sessionID)
		if err != nil {
			if errors.Is(err, repos.ErrSessionNotFound) {
				return nil, apierr.NotFound(fmt.Errorf("session %s not found", *sessionID))
			}
			return nil, apierr.PersistenceFailure(err)
		}
		now := time.Now().UTC()
		if err := s.sessions.Touch(dbc, session.ID, now); err != nil {
			return nil, apierr.PersistenceFailure(err)
		}
		session.UpdatedAt = now
		session.LastMessageAt = &now
		return session, nil
	}

	if patientID == nil || *patientID == uuid.Nil {
		return nil, apierr.InvalidArgument(errors.New("patient_id is required for new sessions"))
	}

	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:            uuid.New(),
		PatientID:     *patientID,
		Title:         TitleFromMessage(firstMessage),
		Status:        domain.SessionStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: &now,
	}
	created, err := s.sessions.Create(dbc, session)
	if err != nil {
		return nil, apierr.PersistenceFailure(err)
	}
	s.log.Info("Created new session", "session_id", created.ID.String())
	return created, nil
}

func (s *sessionService) AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, assistantText string, metadata *domain.MessageMetadata) error {
	if sessionID == uuid.Nil {
		return apierr.InvalidArgument(errors.New("session_id required"))
	}

	var metaJSON []byte
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return apierr.PersistenceFailure(fmt.Errorf("marshal message metadata: %w", err))
		}
		metaJSON = raw
	}

	// UUIDv7 ids are the insert-order tiebreaker: rows can share a
	// timestamp and the repos still return them in exchange order.
	userID, err := uuid.NewV7()
	if err != nil {
		return apierr.PersistenceFailure(fmt.Errorf("generate message id: %w", err))
	}
	assistantID, err := uuid.NewV7()
	if err != nil {
		return apierr.PersistenceFailure(fmt.Errorf("generate message id: %w", err))
	}

	now := time.Now().UTC()
	rows := []*domain.ChatMessage{
		{
			ID:        userID,
			SessionID: sessionID,
			Role:      domain.RoleUser,
			Content:   userText,
			CreatedAt: now,
		},
		{
			ID:        assistantID,
			SessionID: sessionID,
			Role:      domain.RoleAssistant,
			Content:   assistantText,
			Metadata:  metaJSON,
			CreatedAt: now,
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		if _, err := s.messages.Create(dbc, rows); err != nil {
			return err
		}
		return s.sessions.Touch(dbc, sessionID, now)
	})
	if err != nil {
		if errors.Is(err, repos.ErrSessionNotFound) {
			return apierr.NotFound(fmt.Errorf("session %s not found", sessionID))
		}
		return apierr.PersistenceFailure(err)
	}
	return nil
}

func (s *sessionService) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}
	out, err := s.messages.ListRecent(dbctx.New(ctx), sessionID, limit)
	if err != nil {
		return nil, apierr.PersistenceFailure(err)
	}
	return out, nil
}

func (s *sessionService) FullHistory(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, []*domain.ChatMessage, error) {
	dbc := dbctx.New(ctx)
	session, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		if errors.Is(err, repos.ErrSessionNotFound) {
			return nil, nil, apierr.NotFound(fmt.Errorf("session %s not found", sessionID))
		}
		return nil, nil, apierr.PersistenceFailure(err)
	}
	messages, err := s.messages.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, nil, apierr.PersistenceFailure(err)
	}
	return session, messages, nil
}

func (s *sessionService) ListByPatient(ctx context.Context, patientID uuid.UUID, status string, offset, limit int) ([]SessionSummary, int64, error) {
	if patientID == uuid.Nil {
		return nil, 0, apierr.InvalidArgument(errors.New("patient_id required"))
	}
	dbc := dbctx.New(ctx)
	rows, total, err := s.sessions.ListByPatient(dbc, patientID, status, offset, limit)
	if err != nil {
		return nil, 0, apierr.PersistenceFailure(err)
	}
	out := make([]SessionSummary, 0, len(rows))
	for _, row := range rows {
		count, err := s.messages.CountBySession(dbc, row.ID)
		if err != nil {
			return nil, 0, apierr.PersistenceFailure(err)
		}
		out = append(out, SessionSummary{Session: row, MessageCount: count})
	}
	return out, total, nil
}

func (s *sessionService) Close(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.UpdateStatus(dbctx.New(ctx), sessionID, domain.SessionStatusClosed)
	if err != nil {
		if errors.Is(err, repos.ErrSessionNotFound) {
			return apierr.NotFound(fmt.Errorf("session %s not found", sessionID))
		}
		return apierr.PersistenceFailure(err)
	}
	return nil
}

func (s *sessionService) Delete(ctx context.Context, sessionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.sessions.Delete(dbctx.WithTx(ctx, tx), sessionID)
	})
	if err != nil {
		if errors.Is(err, repos.ErrSessionNotFound) {
			return apierr.NotFound(fmt.Errorf("session %s not found", sessionID))
		}
		return apierr.PersistenceFailure(err)
	}
	return nil
}
