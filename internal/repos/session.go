package repos

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/dbctx"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepo interface {
	Create(dbc dbctx.Context, row *domain.ChatSession) (*domain.ChatSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChatSession, error)
	ListByPatient(dbc dbctx.Context, patientID uuid.UUID, status string, offset, limit int) ([]*domain.ChatSession, int64, error)
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *domain.ChatSession) (*domain.ChatSession, error) {
	if row == nil {
		return nil, fmt.Errorf("missing session row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, classifyDBError(err)
	}
	return row, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChatSession, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row domain.ChatSession
	err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, classifyDBError(err)
	}
	return &row, nil
}

func (r *sessionRepo) ListByPatient(dbc dbctx.Context, patientID uuid.UUID, status string, offset, limit int) ([]*domain.ChatSession, int64, error) {
	if patientID == uuid.Nil {
		return nil, 0, fmt.Errorf("missing patient_id")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	q := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("patient_id = ?", patientID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, classifyDBError(err)
	}

	var rows []*domain.ChatSession
	if err := q.Order("last_message_at DESC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, classifyDBError(err)
	}
	return rows, total, nil
}

func (r *sessionRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"updated_at":      at,
			"last_message_at": at,
		})
	if res.Error != nil {
		return classifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return classifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the session and, where the dialect lacks cascading foreign
// keys, its messages in the same transaction.
func (r *sessionRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", id).
		Delete(&domain.ChatMessage{}).Error; err != nil {
		return classifyDBError(err)
	}
	res := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&domain.ChatSession{})
	if res.Error != nil {
		return classifyDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
