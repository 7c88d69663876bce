package repos

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/dbctx"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*domain.ChatMessage) ([]*domain.ChatMessage, error)
	ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.ChatMessage, error)
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*domain.ChatMessage) ([]*domain.ChatMessage, error) {
	if len(rows) == 0 {
		return []*domain.ChatMessage{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return rows, nil
}

// Message ids are time-ordered (UUIDv7), so (created_at, id) is a total
// chronological order even when rows share a timestamp.

// ListRecent returns the most recent messages in chronological order; this
// is the model's context window, not the full history.
func (r *messageRepo) ListRecent(dbc dbctx.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, classifyDBError(err)
	}
	// Normalize to ASC for the model context.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.ChatMessage, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return out, nil
}

func (r *messageRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	if sessionID == uuid.Nil {
		return 0, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error; err != nil {
		return 0, classifyDBError(err)
	}
	return n, nil
}
