package repository

import (
	"context"
	"time"

	"attendance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AbsenceFilter narrows list queries. Zero fields are ignored.
type AbsenceFilter struct {
	EmployeeID *uuid.UUID
	Status     model.RequestStatus
}

type AbsenceRepository interface {
	Create(ctx context.Context, req *model.AbsenceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error)
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status model.RequestStatus, rejectionReason *string) (int64, error)
	List(ctx context.Context, filter AbsenceFilter, oldestFirst bool, offset, limit int) ([]model.AbsenceRequest, error)
	Count(ctx context.Context, filter AbsenceFilter) (int64, error)
	ListOverlapping(ctx context.Context, from, to time.Time, status model.RequestStatus) ([]model.AbsenceRequest, error)
}

type absenceRepository struct {
	db *gorm.DB
}

func NewAbsenceRepository(db *gorm.DB) AbsenceRepository {
	return &absenceRepository{db: db}
}

func (r *absenceRepository) Create(ctx context.Context, req *model.AbsenceRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *absenceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error) {
	var req model.AbsenceRequest
	if err := GetDB(ctx, r.db).Preload("Employee").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the row for the rest of the surrounding transaction.
func (r *absenceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error) {
	var req model.AbsenceRequest
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatusIfPending moves a pending request to status. Zero rows affected means
// somebody else resolved it first.
func (r *absenceRepository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status model.RequestStatus, rejectionReason *string) (int64, error) {
	fields := map[string]interface{}{"status": status}
	if rejectionReason != nil {
		fields["rejection_reason"] = *rejectionReason
	}
	res := GetDB(ctx, r.db).Model(&model.AbsenceRequest{}).
		Where("id = ?", id).
		Where("status = ?", model.StatusPending).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *absenceRepository) scope(db *gorm.DB, filter AbsenceFilter) *gorm.DB {
	if filter.EmployeeID != nil {
		db = db.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	return db
}

func (r *absenceRepository) List(ctx context.Context, filter AbsenceFilter, oldestFirst bool, offset, limit int) ([]model.AbsenceRequest, error) {
	var requests []model.AbsenceRequest
	order := "created_at DESC, id DESC"
	if oldestFirst {
		order = "created_at ASC, id ASC"
	}
	query := r.scope(GetDB(ctx, r.db).Preload("Employee"), filter).Order(order)
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *absenceRepository) Count(ctx context.Context, filter AbsenceFilter) (int64, error) {
	var total int64
	err := r.scope(GetDB(ctx, r.db).Model(&model.AbsenceRequest{}), filter).Count(&total).Error
	return total, err
}

// ListOverlapping returns requests whose range intersects [from, to].
func (r *absenceRepository) ListOverlapping(ctx context.Context, from, to time.Time, status model.RequestStatus) ([]model.AbsenceRequest, error) {
	var requests []model.AbsenceRequest
	query := GetDB(ctx, r.db).
		Where("start_at <= ?", to).
		Where("end_at >= ?", from)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("start_at ASC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
