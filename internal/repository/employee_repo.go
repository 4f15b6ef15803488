package repository

import (
	"context"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmployeeRepository defines the interface for data access of Employee entities
type EmployeeRepository interface {
	Create(ctx context.Context, employee *model.Employee) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	GetByEmail(ctx context.Context, email string) (*model.Employee, error)
	GetByChatID(ctx context.Context, chatID string) (*model.Employee, error)
	List(ctx context.Context, offset, limit int) ([]model.Employee, error)
	Count(ctx context.Context) (int64, error)
	ListActiveAdmins(ctx context.Context) ([]model.Employee, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type employeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository returns a new instance of EmployeeRepository
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Create(ctx context.Context, employee *model.Employee) error {
	return GetDB(ctx, r.db).Create(employee).Error
}

func (r *employeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	var e model.Employee
	if err := GetDB(ctx, r.db).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*model.Employee, error) {
	var e model.Employee
	if err := GetDB(ctx, r.db).First(&e, "email = ?", model.NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *employeeRepository) GetByChatID(ctx context.Context, chatID string) (*model.Employee, error) {
	var e model.Employee
	if err := GetDB(ctx, r.db).First(&e, "chat_id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns employees ordered by surname then name. limit <= 0 means no limit.
func (r *employeeRepository) List(ctx context.Context, offset, limit int) ([]model.Employee, error) {
	var employees []model.Employee
	query := GetDB(ctx, r.db).Order("last_name ASC").Order("first_name ASC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	if err := query.Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *employeeRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Employee{}).Count(&total).Error
	return total, err
}

// ListActiveAdmins returns active admins and superusers that have a bound chat account.
func (r *employeeRepository) ListActiveAdmins(ctx context.Context) ([]model.Employee, error) {
	var admins []model.Employee
	err := GetDB(ctx, r.db).
		Where("role IN ?", model.AdminRoles).
		Where("chat_id IS NOT NULL").
		Where("is_active = ?", true).
		Order("last_name ASC").
		Find(&admins).Error
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *employeeRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.Employee{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes the row; invites, requests, history and notifications go with it
// through the schema's ON DELETE rules.
func (r *employeeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Employee{}).Error
}
