package repository

import (
	"context"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is append-only: there is no update or delete.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.RequestHistoryEntry) error
	ListForRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistoryEntry, error)
	CountForRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}

type historyRepository struct {
	db *gorm.DB
}

// createdFirst keeps the creation entry at the head even when timestamps tie.
const createdFirst = "CASE change_type WHEN '" + string(model.ChangeCreated) + "' THEN 0 ELSE 1 END"

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.RequestHistoryEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *historyRepository) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistoryEntry, error) {
	var entries []model.RequestHistoryEntry
	err := GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order(createdFirst).
		Order("changed_at ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *historyRepository) CountForRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.RequestHistoryEntry{}).Where("request_id = ?", requestID).Count(&total).Error
	return total, err
}
