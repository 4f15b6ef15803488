package repository

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/model"

	"gorm.io/gorm"
)

// StatisticsRepository aggregates requests overlapping a window.
type StatisticsRepository interface {
	CountByStatus(ctx context.Context, from, to time.Time) (map[model.RequestStatus]int64, error)
	CountByType(ctx context.Context, from, to time.Time) (map[model.RequestType]int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountByStatus(ctx context.Context, from, to time.Time) (map[model.RequestStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := GetDB(ctx, r.db).Table("absence_requests").
		Select("status, COUNT(*) as total").
		Where("start_at <= ? AND end_at >= ?", to, from).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests by status: %w", err)
	}
	out := make(map[model.RequestStatus]int64, len(rows))
	for _, row := range rows {
		out[model.RequestStatus(row.Status)] = row.Total
	}
	return out, nil
}

func (r *statisticsRepository) CountByType(ctx context.Context, from, to time.Time) (map[model.RequestType]int64, error) {
	var rows []struct {
		RequestType string
		Total       int64
	}
	if err := GetDB(ctx, r.db).Table("absence_requests").
		Select("request_type, COUNT(*) as total").
		Where("start_at <= ? AND end_at >= ?", to, from).
		Group("request_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests by type: %w", err)
	}
	out := make(map[model.RequestType]int64, len(rows))
	for _, row := range rows {
		out[model.RequestType(row.RequestType)] = row.Total
	}
	return out, nil
}
