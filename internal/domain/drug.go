package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DrugStatusAuthentic  = "AUTHENTIC"
	DrugStatusSuspicious = "SUSPICIOUS"
	DrugStatusUnknown    = "UNKNOWN"
)

// DrugVerification is the persisted log of authenticity lookups. Hot
// lookups are served from the redis cache in front of this table.
type DrugVerification struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DrugName    string `gorm:"type:varchar(200);not null;index" json:"drug_name"`
	BatchNumber string `gorm:"type:varchar(100);not null;index" json:"batch_number"`

	Status string `gorm:"type:varchar(20);not null" json:"status"`
	Source string `gorm:"type:varchar(50);not null" json:"source"`

	CheckedAt time.Time `gorm:"not null;index" json:"checked_at"`
}

func (DrugVerification) TableName() string { return "drug_verification" }
