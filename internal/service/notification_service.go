package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance/internal/logger"
	"attendance/internal/metrics"
	"attendance/internal/model"
	"attendance/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery locates a sent message so it can be edited later.
type Delivery struct {
	ChatRef    string
	MessageRef string
}

// Transport is the outbound side of the chat platform.
type Transport interface {
	SendCard(ctx context.Context, chatID string, card Card) (Delivery, error)
	EditCard(ctx context.Context, d Delivery, card Card) error
	SendText(ctx context.Context, chatID, text string) error
}

// FanoutResult counts per-recipient outcomes. One failed recipient never stops the rest.
type FanoutResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type NotificationService interface {
	Record(ctx context.Context, requestID, adminID uuid.UUID, d Delivery) (*model.AdminNotification, error)
	ActiveForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) ([]model.AdminNotification, error)
	DeactivateForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) (int64, error)

	NotifyNewRequest(ctx context.Context, request *model.AbsenceRequest) (FanoutResult, error)
	Retract(ctx context.Context, request *model.AbsenceRequest, actingAdminID *uuid.UUID, outcome Outcome) (FanoutResult, error)
	MarkHandled(ctx context.Context, requestID, adminID uuid.UUID) error
	NotifyOwner(ctx context.Context, request *model.AbsenceRequest, outcome Outcome) bool
}

type notificationService struct {
	repo      repository.NotificationRepository
	employees repository.EmployeeRepository
	transport Transport
	now       Clock
	loc       *time.Location
}

func NewNotificationService(
	repo repository.NotificationRepository,
	employees repository.EmployeeRepository,
	transport Transport,
	opts ...Option,
) NotificationService {
	o := buildOptions(opts)
	return &notificationService{
		repo:      repo,
		employees: employees,
		transport: transport,
		now:       o.now,
		loc:       o.loc,
	}
}

func (s *notificationService) Record(ctx context.Context, requestID, adminID uuid.UUID, d Delivery) (*model.AdminNotification, error) {
	n := &model.AdminNotification{
		RequestID:  requestID,
		AdminID:    adminID,
		MessageRef: d.MessageRef,
		ChatRef:    d.ChatRef,
		IsActive:   true,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	return n, nil
}

func (s *notificationService) ActiveForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) ([]model.AdminNotification, error) {
	return s.repo.ActiveForRequest(ctx, requestID, excludeAdminID)
}

func (s *notificationService) DeactivateForRequest(ctx context.Context, requestID uuid.UUID, excludeAdminID *uuid.UUID) (int64, error) {
	return s.repo.DeactivateForRequest(ctx, requestID, excludeAdminID)
}

func (s *notificationService) withEmployee(ctx context.Context, request *model.AbsenceRequest) error {
	if request.Employee != nil {
		return nil
	}
	employee, err := s.employees.GetByID(ctx, request.EmployeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmployeeNotFound
		}
		return fmt.Errorf("failed to load request owner: %w", err)
	}
	request.Employee = employee
	return nil
}

// NotifyNewRequest sends the request card to every active admin and remembers each sent
// message. Zero admins is a valid outcome.
func (s *notificationService) NotifyNewRequest(ctx context.Context, request *model.AbsenceRequest) (FanoutResult, error) {
	var result FanoutResult
	if err := s.withEmployee(ctx, request); err != nil {
		return result, err
	}
	admins, err := s.employees.ListActiveAdmins(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list admins: %w", err)
	}

	card := RequestCard(ctx, request, s.loc)
	log := logger.WithComponent("notifications").WithField("request_id", request.ID.String())
	for _, admin := range admins {
		if !admin.HasChatIdentity() {
			continue
		}
		d, err := s.transport.SendCard(ctx, *admin.ChatID, card)
		if err != nil {
			result.Failed++
			metrics.NotificationsSent.WithLabelValues("card", "failed").Inc()
			log.WithError(err).WithField("admin_id", admin.ID.String()).Warn("failed to notify admin")
			continue
		}
		if _, err := s.Record(ctx, request.ID, admin.ID, d); err != nil {
			result.Failed++
			metrics.NotificationsSent.WithLabelValues("card", "failed").Inc()
			logger.LogError("notification_record", err, map[string]interface{}{
				"request_id": request.ID.String(),
				"admin_id":   admin.ID.String(),
			})
			continue
		}
		result.Sent++
		metrics.NotificationsSent.WithLabelValues("card", "ok").Inc()
	}

	if len(admins) == 0 {
		log.Warn("no active admins to notify")
	}
	return result, nil
}

// Retract rewrites the active cards of every admin except actingAdminID with the outcome,
// then deactivates them. Edits that fail are counted; their rows are still deactivated
// because the request can no longer be acted on.
func (s *notificationService) Retract(ctx context.Context, request *model.AbsenceRequest, actingAdminID *uuid.UUID, outcome Outcome) (FanoutResult, error) {
	var result FanoutResult
	if err := s.withEmployee(ctx, request); err != nil {
		return result, err
	}
	active, err := s.repo.ActiveForRequest(ctx, request.ID, actingAdminID)
	if err != nil {
		return result, fmt.Errorf("failed to load notifications: %w", err)
	}

	card := ResolvedCard(ctx, request, outcome, s.loc)
	log := logger.WithComponent("notifications").WithField("request_id", request.ID.String())
	for _, n := range active {
		err := s.transport.EditCard(ctx, Delivery{ChatRef: n.ChatRef, MessageRef: n.MessageRef}, card)
		if err != nil {
			result.Failed++
			metrics.NotificationsSent.WithLabelValues("retract", "failed").Inc()
			log.WithError(err).WithField("admin_id", n.AdminID.String()).Warn("failed to update admin card")
			continue
		}
		result.Sent++
		metrics.NotificationsSent.WithLabelValues("retract", "ok").Inc()
	}

	if _, err := s.repo.DeactivateForRequest(ctx, request.ID, actingAdminID); err != nil {
		return result, fmt.Errorf("failed to deactivate notifications: %w", err)
	}
	return result, nil
}

// MarkHandled deactivates the acting admin's own card after it was updated in place.
func (s *notificationService) MarkHandled(ctx context.Context, requestID, adminID uuid.UUID) error {
	if _, err := s.repo.DeactivateForAdmin(ctx, requestID, adminID); err != nil {
		return fmt.Errorf("failed to deactivate notification: %w", err)
	}
	return nil
}

// NotifyOwner DMs the author. Delivery failure is logged only; the transition stands.
func (s *notificationService) NotifyOwner(ctx context.Context, request *model.AbsenceRequest, outcome Outcome) bool {
	if err := s.withEmployee(ctx, request); err != nil {
		logger.WithComponent("notifications").WithError(err).Warn("owner lookup failed")
		return false
	}
	owner := request.Employee
	if !owner.HasChatIdentity() {
		return false
	}
	if err := s.transport.SendText(ctx, *owner.ChatID, OwnerMessage(ctx, request, outcome, s.loc)); err != nil {
		metrics.NotificationsSent.WithLabelValues("owner", "failed").Inc()
		logger.WithComponent("notifications").
			WithError(err).
			WithField("request_id", request.ID.String()).
			Warn("failed to notify request owner")
		return false
	}
	metrics.NotificationsSent.WithLabelValues("owner", "ok").Inc()
	return true
}
