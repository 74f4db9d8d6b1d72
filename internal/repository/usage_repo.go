package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tzuhan-lo/namecard-bot/internal/domain"
	"gorm.io/gorm"
)

// DailySummary aggregates one user's processing outcomes for one day.
type DailySummary struct {
	UserID         string `gorm:"column:user_id"`
	Images         int    `gorm:"column:images"`
	CardsExtracted int    `gorm:"column:cards_extracted"`
	CardsSaved     int    `gorm:"column:cards_saved"`
	CardsFailed    int    `gorm:"column:cards_failed"`
}

type UsageRecordRepository interface {
	Create(ctx context.Context, record *domain.UsageRecord) error
	DailySummary(ctx context.Context, userID string, day time.Time) (*DailySummary, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.UsageRecord, error)
}

type GormUsageRecordRepo struct {
	db *gorm.DB
}

func NewGormUsageRecordRepo(db *gorm.DB) *GormUsageRecordRepo {
	return &GormUsageRecordRepo{db: db}
}

func (r *GormUsageRecordRepo) Create(ctx context.Context, record *domain.UsageRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	model := usageRecordModelFromDomain(record)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	*record = *usageRecordModelToDomain(model)
	return nil
}

func (r *GormUsageRecordRepo) DailySummary(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	start := domain.StartOfDay(day)
	end := start.AddDate(0, 0, 1)

	var summary DailySummary
	err := r.db.WithContext(ctx).
		Model(&UsageRecordModel{}).
		Select(
			"user_id",
			"COUNT(*) AS images",
			"COALESCE(SUM(cards_extracted), 0) AS cards_extracted",
			"COALESCE(SUM(cards_saved), 0) AS cards_saved",
			"COALESCE(SUM(cards_failed), 0) AS cards_failed",
		).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Group("user_id").
		Take(&summary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &DailySummary{UserID: userID}, nil
		}
		return nil, err
	}

	return &summary, nil
}

func (r *GormUsageRecordRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var models []UsageRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.UsageRecord, 0, len(models))
	for i := range models {
		records = append(records, *usageRecordModelToDomain(&models[i]))
	}
	return records, nil
}
