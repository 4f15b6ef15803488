package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/model"
	"attendance/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmitInput is a completed request form. Whole-day types carry midnight boundaries of the
// first and last day; partial absence carries exact times on one day.
type SubmitInput struct {
	ChatID  string
	Type    model.RequestType
	Start   time.Time
	End     time.Time
	Comment string
}

type AbsenceService interface {
	Submit(ctx context.Context, in SubmitInput) (*model.AbsenceRequest, error)
	Transition(ctx context.Context, requestID uuid.UUID, status model.RequestStatus, actor model.Actor, reason string) (*model.AbsenceRequest, error)
	CancelByOwner(ctx context.Context, requestID, ownerID uuid.UUID) (*model.AbsenceRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error)

	ListPending(ctx context.Context, offset, limit int) ([]model.AbsenceRequest, error)
	CountPending(ctx context.Context) (int64, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.AbsenceRequest, error)
	CountAll(ctx context.Context) (int64, error)
	ListByEmployee(ctx context.Context, employeeID uuid.UUID, offset, limit int) ([]model.AbsenceRequest, error)
	CountByEmployee(ctx context.Context, employeeID uuid.UUID) (int64, error)
	ListPendingByEmployee(ctx context.Context, employeeID uuid.UUID, offset, limit int) ([]model.AbsenceRequest, error)
	CountPendingByEmployee(ctx context.Context, employeeID uuid.UUID) (int64, error)
	List(ctx context.Context, filter repository.AbsenceFilter, offset, limit int) ([]model.AbsenceRequest, int64, error)

	PendingAt(ctx context.Context, index int) (*PendingPage, error)
	History(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistoryEntry, error)
}

// PendingPage is one position in the admin review queue.
type PendingPage struct {
	Request *model.AbsenceRequest
	Index   int
	Total   int64
}

type absenceService struct {
	repo      repository.AbsenceRepository
	history   repository.HistoryRepository
	employees repository.EmployeeRepository
	txManager repository.TransactionManager
	now       Clock
}

func NewAbsenceService(
	repo repository.AbsenceRepository,
	history repository.HistoryRepository,
	employees repository.EmployeeRepository,
	txManager repository.TransactionManager,
	opts ...Option,
) AbsenceService {
	o := buildOptions(opts)
	return &absenceService{
		repo:      repo,
		history:   history,
		employees: employees,
		txManager: txManager,
		now:       o.now,
	}
}

// ValidateRange checks the shape of a request range. The future-start rule is applied by
// the conversation, which knows the user's calendar day.
func ValidateRange(requestType model.RequestType, start, end time.Time) error {
	if !requestType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRequestType, requestType)
	}
	if end.Before(start) {
		return ErrInvalidDateRange
	}
	if requestType.IsPartial() && (!model.SameDay(start, end) || !end.After(start)) {
		return ErrInvalidPartialRange
	}
	return nil
}

func (s *absenceService) Submit(ctx context.Context, in SubmitInput) (*model.AbsenceRequest, error) {
	if err := ValidateRange(in.Type, in.Start, in.End); err != nil {
		return nil, err
	}

	var request *model.AbsenceRequest
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		employee, err := s.employees.GetByChatID(txCtx, in.ChatID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to load employee: %w", err)
		}
		if !employee.IsActive {
			return ErrEmployeeInactive
		}

		now := s.now()
		request = &model.AbsenceRequest{
			EmployeeID: employee.ID,
			Type:       in.Type,
			StartAt:    in.Start,
			EndAt:      in.End,
			Comment:    optionalText(in.Comment),
			Status:     model.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.Create(txCtx, request); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		entry := &model.RequestHistoryEntry{
			RequestID:  request.ID,
			ChangeType: model.ChangeCreated,
			NewValue:   optionalText(string(model.StatusPending)),
			ChangedAt:  now,
		}
		entry.SetActor(model.EmployeeActor(employee.ID))
		if err := s.history.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}

		request.Employee = employee
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(request.Type)).Inc()
	logger.LogEvent("request_submitted", map[string]interface{}{
		"request_id":   request.ID.String(),
		"employee_id":  request.EmployeeID.String(),
		"request_type": string(request.Type),
	})
	return request, nil
}

// Transition moves a pending request to a terminal status. The row is locked and the
// update is conditional on status still being pending, so exactly one of two racing
// admins wins; the loser gets ErrRequestAlreadyProcessed and nothing is written.
func (s *absenceService) Transition(ctx context.Context, requestID uuid.UUID, status model.RequestStatus, actor model.Actor, reason string) (*model.AbsenceRequest, error) {
	return s.transition(ctx, requestID, status, actor, reason, model.ChangeStatusChanged, nil)
}

// CancelByOwner lets the author withdraw a request that is still pending.
func (s *absenceService) CancelByOwner(ctx context.Context, requestID, ownerID uuid.UUID) (*model.AbsenceRequest, error) {
	return s.transition(ctx, requestID, model.StatusCancelled, model.EmployeeActor(ownerID), "", model.ChangeCancelled, &ownerID)
}

func (s *absenceService) transition(
	ctx context.Context,
	requestID uuid.UUID,
	status model.RequestStatus,
	actor model.Actor,
	reason string,
	change model.ChangeType,
	owner *uuid.UUID,
) (*model.AbsenceRequest, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransition, status)
	}
	reason = strings.TrimSpace(reason)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("failed to load request: %w", err)
		}
		if owner != nil && current.EmployeeID != *owner {
			return ErrNotRequestOwner
		}
		if current.Status != model.StatusPending {
			return fmt.Errorf("%w: already %s", ErrRequestAlreadyProcessed, current.Status)
		}

		var rejection *string
		if status == model.StatusRejected {
			rejection = optionalText(reason)
		}
		rows, err := s.repo.UpdateStatusIfPending(txCtx, requestID, status, rejection)
		if err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		if rows == 0 {
			return ErrRequestAlreadyProcessed
		}

		entry := &model.RequestHistoryEntry{
			RequestID:  requestID,
			ChangeType: change,
			OldValue:   optionalText(string(current.Status)),
			NewValue:   optionalText(string(status)),
			Reason:     optionalText(reason),
			ChangedAt:  s.now(),
		}
		entry.SetActor(actor)
		if err := s.history.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}
		return nil
	})
	metrics.RequestTransitions.WithLabelValues(string(status), transitionResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}
	return request, nil
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsConflict(err):
		return "conflict"
	case IsNotFound(err):
		return "not_found"
	}
	return "error"
}

func (s *absenceService) GetByID(ctx context.Context, id uuid.UUID) (*model.AbsenceRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return request, nil
}

func pendingFilter(employeeID *uuid.UUID) repository.AbsenceFilter {
	return repository.AbsenceFilter{EmployeeID: employeeID, Status: model.StatusPending}
}

// ListPending is the admin queue, oldest first.
func (s *absenceService) ListPending(ctx context.Context, offset, limit int) ([]model.AbsenceRequest, error) {
	return s.repo.List(ctx, pendingFilter(nil), true, offset, limit)
}

func (s *absenceService) CountPending(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, pendingFilter(nil))
}

func (s *absenceService) ListAll(ctx context.Context, offset, limit int) ([]model.AbsenceRequest, error) {
	return s.repo.List(ctx, repository.AbsenceFilter{}, false, offset, limit)
}

func (s *absenceService) CountAll(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, repository.AbsenceFilter{})
}

func (s *absenceService) ListByEmployee(ctx context.Context, employeeID uuid.UUID, offset, limit int) ([]model.AbsenceRequest, error) {
	return s.repo.List(ctx, repository.AbsenceFilter{EmployeeID: &employeeID}, false, offset, limit)
}

func (s *absenceService) CountByEmployee(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	return s.repo.Count(ctx, repository.AbsenceFilter{EmployeeID: &employeeID})
}

func (s *absenceService) ListPendingByEmployee(ctx context.Context, employeeID uuid.UUID, offset, limit int) ([]model.AbsenceRequest, error) {
	return s.repo.List(ctx, pendingFilter(&employeeID), false, offset, limit)
}

func (s *absenceService) CountPendingByEmployee(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	return s.repo.Count(ctx, pendingFilter(&employeeID))
}

// List serves the admin API. A pending-only filter is ordered like the queue.
func (s *absenceService) List(ctx context.Context, filter repository.AbsenceFilter, offset, limit int) ([]model.AbsenceRequest, int64, error) {
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}
	requests, err := s.repo.List(ctx, filter, filter.Status == model.StatusPending, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, total, nil
}

// PendingAt returns the queue entry at index, clamped into [0, total). Request is nil
// when the queue is empty.
func (s *absenceService) PendingAt(ctx context.Context, index int) (*PendingPage, error) {
	total, err := s.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending requests: %w", err)
	}
	page := &PendingPage{Total: total}
	if total == 0 {
		return page, nil
	}
	if index >= int(total) {
		index = int(total) - 1
	}
	if index < 0 {
		index = 0
	}
	page.Index = index

	requests, err := s.ListPending(ctx, index, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending request: %w", err)
	}
	if len(requests) > 0 {
		page.Request = &requests[0]
	}
	return page, nil
}

func (s *absenceService) History(ctx context.Context, requestID uuid.UUID) ([]model.RequestHistoryEntry, error) {
	if _, err := s.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
