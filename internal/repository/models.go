package repository

import (
	"time"

	"github.com/tzuhan-lo/namecard-bot/internal/domain"
)

// UsageRecordModel is the persistence model for the usage_records table.
type UsageRecordModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	UserID         string `gorm:"type:varchar(64);not null;index"`
	CardsExtracted int    `gorm:"not null;default:0"`
	CardsSaved     int    `gorm:"not null;default:0"`
	CardsFailed    int    `gorm:"not null;default:0"`
	CreatedAt      time.Time
}

func (UsageRecordModel) TableName() string {
	return "usage_records"
}

func usageRecordModelFromDomain(r *domain.UsageRecord) *UsageRecordModel {
	if r == nil {
		return nil
	}

	return &UsageRecordModel{
		ID:             r.ID,
		UserID:         r.UserID,
		CardsExtracted: r.CardsExtracted,
		CardsSaved:     r.CardsSaved,
		CardsFailed:    r.CardsFailed,
		CreatedAt:      r.CreatedAt,
	}
}

func usageRecordModelToDomain(m *UsageRecordModel) *domain.UsageRecord {
	if m == nil {
		return nil
	}

	return &domain.UsageRecord{
		ID:             m.ID,
		UserID:         m.UserID,
		CardsExtracted: m.CardsExtracted,
		CardsSaved:     m.CardsSaved,
		CardsFailed:    m.CardsFailed,
		CreatedAt:      m.CreatedAt,
	}
}
