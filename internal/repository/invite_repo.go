package repository

import (
	"context"
	"time"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InviteRepository interface {
	Create(ctx context.Context, token *model.InviteToken) error
	FindActive(ctx context.Context, employeeID uuid.UUID, now time.Time) (*model.InviteToken, error)
	FindByEmployeeAndCode(ctx context.Context, employeeID uuid.UUID, code string) (*model.InviteToken, error)
	FindByCode(ctx context.Context, code string) (*model.InviteToken, error)
	SupersedeUnused(ctx context.Context, employeeID uuid.UUID) (int64, error)
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (int64, error)
	CountActive(ctx context.Context, employeeID uuid.UUID, now time.Time) (int64, error)
}

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, token *model.InviteToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

// FindActive returns the unused, unexpired code of an employee.
func (r *inviteRepository) FindActive(ctx context.Context, employeeID uuid.UUID, now time.Time) (*model.InviteToken, error) {
	var token model.InviteToken
	err := GetDB(ctx, r.db).
		Where("employee_id = ?", employeeID).
		Where("is_used = ?", false).
		Where("expires_at > ?", now).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByEmployeeAndCode ignores used/expired state so callers can tell the cases apart.
func (r *inviteRepository) FindByEmployeeAndCode(ctx context.Context, employeeID uuid.UUID, code string) (*model.InviteToken, error) {
	var token model.InviteToken
	if err := GetDB(ctx, r.db).First(&token, "employee_id = ? AND code = ?", employeeID, code).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *inviteRepository) FindByCode(ctx context.Context, code string) (*model.InviteToken, error) {
	var token model.InviteToken
	if err := GetDB(ctx, r.db).First(&token, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// SupersedeUnused flags every unused code of the employee as used, leaving used_at empty.
func (r *inviteRepository) SupersedeUnused(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.InviteToken{}).
		Where("employee_id = ?", employeeID).
		Where("is_used = ?", false).
		Update("is_used", true)
	return res.RowsAffected, res.Error
}

// MarkUsed redeems a code. Zero rows affected means it was already used.
func (r *inviteRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.InviteToken{}).
		Where("id = ?", id).
		Where("is_used = ?", false).
		Updates(map[string]interface{}{"is_used": true, "used_at": usedAt})
	return res.RowsAffected, res.Error
}

func (r *inviteRepository) CountActive(ctx context.Context, employeeID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.InviteToken{}).
		Where("employee_id = ?", employeeID).
		Where("is_used = ?", false).
		Where("expires_at > ?", now).
		Count(&total).Error
	return total, err
}
