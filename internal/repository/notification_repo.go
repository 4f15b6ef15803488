package repository

import (
	"context"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.AdminNotification) error
	ActiveForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) ([]model.AdminNotification, error)
	ActiveForAdmin(ctx context.Context, requestID, adminID uuid.UUID) ([]model.AdminNotification, error)
	DeactivateForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) (int64, error)
	DeactivateForAdmin(ctx context.Context, requestID, adminID uuid.UUID) (int64, error)
	ListForRequest(ctx context.Context, requestID uuid.UUID) ([]model.AdminNotification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.AdminNotification) error {
	return GetDB(ctx, r.db).Create(n).Error
}

func (r *notificationRepository) ActiveForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) ([]model.AdminNotification, error) {
	var rows []model.AdminNotification
	query := GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Where("is_active = ?", true)
	if excludeAdminID != nil {
		query = query.Where("admin_id <> ?", *excludeAdminID)
	}
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepository) ActiveForAdmin(ctx context.Context, requestID, adminID uuid.UUID) ([]model.AdminNotification, error) {
	var rows []model.AdminNotification
	err := GetDB(ctx, r.db).
		Where("request_id = ? AND admin_id = ?", requestID, adminID).
		Where("is_active = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepository) DeactivateForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) (int64, error) {
	query := GetDB(ctx, r.db).Model(&model.AdminNotification{}).
		Where("request_id = ?", requestID).
		Where("is_active = ?", true)
	if excludeAdminID != nil {
		query = query.Where("admin_id <> ?", *excludeAdminID)
	}
	res := query.Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) DeactivateForAdmin(ctx context.Context, requestID, adminID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.AdminNotification{}).
		Where("request_id = ? AND admin_id = ?", requestID, adminID).
		Where("is_active = ?", true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]model.AdminNotification, error) {
	var rows []model.AdminNotification
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
