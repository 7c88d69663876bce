package repos

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hueai/medassist-backend/internal/domain"
	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/platform/dbctx"
)

type DrugVerificationRepo interface {
	Create(dbc dbctx.Context, row *domain.DrugVerification) (*domain.DrugVerification, error)
	FindLatest(dbc dbctx.Context, drugName, batchNumber string) (*domain.DrugVerification, error)
}

type drugVerificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDrugVerificationRepo(db *gorm.DB, log *logger.Logger) DrugVerificationRepo {
	return &drugVerificationRepo{db: db, log: log.With("repo", "DrugVerificationRepo")}
}

func (r *drugVerificationRepo) Create(dbc dbctx.Context, row *domain.DrugVerification) (*domain.DrugVerification, error) {
	if row == nil {
		return nil, fmt.Errorf("nil drug verification")
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

func (r *drugVerificationRepo) FindLatest(dbc dbctx.Context, drugName, batchNumber string) (*domain.DrugVerification, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.DrugVerification
	err := txx.WithContext(dbc.Ctx).
		Where("LOWER(drug_name) = ? AND batch_number = ?", strings.ToLower(drugName), batchNumber).
		Order("checked_at DESC").
		First(&out).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, classifyDBError(err)
	}
	return &out, nil
}
