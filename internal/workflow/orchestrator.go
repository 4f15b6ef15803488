// Package workflow drives absence requests from the chat side: conversations, resolution
// by admins, cancellation by owners and invite handling. It sequences the ledgers and
// the notification tracker; it owns no storage of its own besides session state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/internal/session"

	"github.com/google/uuid"
)

// Publisher receives lifecycle events for live dashboards.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Event types sent to the Publisher.
const (
	EventRequestCreated     = "request.created"
	EventRequestResolved    = "request.resolved"
	EventEmployeeRegistered = "employee.registered"
)

// Config holds orchestrator settings.
type Config struct {
	InviteTTL time.Duration
	Location  *time.Location
	Now       service.Clock
}

type Orchestrator struct {
	employees     service.EmployeeService
	invites       service.InviteService
	absences      service.AbsenceService
	notifications service.NotificationService
	sessions      session.Store
	publisher     Publisher
	inviteTTL     time.Duration
	loc           *time.Location
	now           service.Clock
}

func New(
	employees service.EmployeeService,
	invites service.InviteService,
	absences service.AbsenceService,
	notifications service.NotificationService,
	sessions session.Store,
	publisher Publisher,
	cfg Config,
) *Orchestrator {
	o := &Orchestrator{
		employees:     employees,
		invites:       invites,
		absences:      absences,
		notifications: notifications,
		sessions:      sessions,
		publisher:     publisher,
		inviteTTL:     cfg.InviteTTL,
		loc:           cfg.Location,
		now:           cfg.Now,
	}
	if o.inviteTTL <= 0 {
		o.inviteTTL = model.DefaultInviteTTL
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func (o *Orchestrator) publish(eventType string, payload interface{}) {
	if o.publisher != nil {
		o.publisher.Publish(eventType, payload)
	}
}

// RequestEvent is the payload of request lifecycle events.
type RequestEvent struct {
	RequestID  uuid.UUID           `json:"request_id"`
	EmployeeID uuid.UUID           `json:"employee_id"`
	Type       model.RequestType   `json:"request_type"`
	Status     model.RequestStatus `json:"status"`
	ActorID    *uuid.UUID          `json:"actor_id,omitempty"`
}

func requestEvent(r *model.AbsenceRequest, actor *model.Employee) RequestEvent {
	ev := RequestEvent{RequestID: r.ID, EmployeeID: r.EmployeeID, Type: r.Type, Status: r.Status}
	if actor != nil {
		id := actor.ID
		ev.ActorID = &id
	}
	return ev
}

// SubmitResult is a stored request and how many admins were reached.
type SubmitResult struct {
	Request *model.AbsenceRequest
	Fanout  service.FanoutResult
}

// SubmitRequest stores the request, then notifies every admin. A failed fan-out does not
// undo the stored request.
func (o *Orchestrator) SubmitRequest(ctx context.Context, in service.SubmitInput) (*SubmitResult, error) {
	request, err := o.absences.Submit(ctx, in)
	if err != nil {
		return nil, err
	}

	fanout, err := o.notifications.NotifyNewRequest(ctx, request)
	if err != nil {
		logger.LogError("notify_new_request", err, map[string]interface{}{"request_id": request.ID.String()})
	}
	o.publish(EventRequestCreated, requestEvent(request, request.Employee))
	return &SubmitResult{Request: request, Fanout: fanout}, nil
}

// ResolveInput identifies the admin by chat account or, for the REST API, by ID.
// PostID and InPlace describe the clicked card: when the caller rewrites that card itself
// in the webhook response, it is excluded from retraction and only deactivated.
type ResolveInput struct {
	RequestID   uuid.UUID
	Status      model.RequestStatus
	ActorChatID string
	ActorID     *uuid.UUID
	Reason      string
	PostID      string
	InPlace     bool
}

// ResolveResult is what the caller needs to answer the admin.
type ResolveResult struct {
	Request       *model.AbsenceRequest
	Card          service.Card
	Retracted     service.FanoutResult
	OwnerNotified bool
	InPlace       bool
}

func (o *Orchestrator) resolveAdmin(ctx context.Context, chatID string, id *uuid.UUID) (*model.Employee, error) {
	var (
		actor *model.Employee
		err   error
	)
	if id != nil {
		actor, err = o.employees.FindByID(ctx, *id)
	} else {
		actor, err = o.employees.FindByChatID(ctx, chatID)
	}
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() || !actor.IsActive {
		return nil, service.ErrForbidden
	}
	return actor, nil
}

// Resolve approves or rejects a pending request on behalf of an admin, retracts the cards
// of the other admins and tells the owner.
func (o *Orchestrator) Resolve(ctx context.Context, in ResolveInput) (*ResolveResult, error) {
	if in.Status != model.StatusApproved && in.Status != model.StatusRejected {
		return nil, fmt.Errorf("%w: %q", service.ErrInvalidTransition, in.Status)
	}
	actor, err := o.resolveAdmin(ctx, in.ActorChatID, in.ActorID)
	if err != nil {
		return nil, err
	}

	inPlace := in.InPlace && o.ownsCard(ctx, in.RequestID, actor.ID, in.PostID)

	request, err := o.absences.Transition(ctx, in.RequestID, in.Status, model.EmployeeActor(actor.ID), in.Reason)
	if err != nil {
		return nil, err
	}

	outcome := service.Outcome{Status: in.Status, Actor: actor, Reason: in.Reason}
	result := o.retract(ctx, request, actor, outcome, inPlace)
	logger.LogEvent("request_resolved", map[string]interface{}{
		"request_id": request.ID.String(),
		"status":     string(request.Status),
		"actor_id":   actor.ID.String(),
	})
	return result, nil
}

// Cancel withdraws a pending request on behalf of its owner.
func (o *Orchestrator) Cancel(ctx context.Context, requestID uuid.UUID, ownerChatID string) (*ResolveResult, error) {
	owner, err := o.employees.FindByChatID(ctx, ownerChatID)
	if err != nil {
		return nil, err
	}
	request, err := o.absences.CancelByOwner(ctx, requestID, owner.ID)
	if err != nil {
		return nil, err
	}
	outcome := service.Outcome{Status: model.StatusCancelled, Actor: owner}
	return o.retract(ctx, request, owner, outcome, false), nil
}

func (o *Orchestrator) retract(ctx context.Context, request *model.AbsenceRequest, actor *model.Employee, outcome service.Outcome, inPlace bool) *ResolveResult {
	result := &ResolveResult{Request: request, InPlace: inPlace}

	var exclude *uuid.UUID
	if inPlace {
		id := actor.ID
		exclude = &id
	}
	retracted, err := o.notifications.Retract(ctx, request, exclude, outcome)
	if err != nil {
		logger.LogError("retract_notifications", err, map[string]interface{}{"request_id": request.ID.String()})
	}
	result.Retracted = retracted

	if inPlace {
		if err := o.notifications.MarkHandled(ctx, request.ID, actor.ID); err != nil {
			logger.LogError("mark_notification_handled", err, map[string]interface{}{"request_id": request.ID.String()})
		}
	}

	if outcome.Status != model.StatusCancelled {
		result.OwnerNotified = o.notifications.NotifyOwner(ctx, request, outcome)
	}
	result.Card = service.ResolvedCard(ctx, request, outcome, o.loc)
	o.publish(EventRequestResolved, requestEvent(request, actor))
	return result
}

// ownsCard reports whether postID is the acting admin's active card for the request.
func (o *Orchestrator) ownsCard(ctx context.Context, requestID, adminID uuid.UUID, postID string) bool {
	if postID == "" {
		return false
	}
	active, err := o.notifications.ActiveForRequest(ctx, requestID, nil)
	if err != nil {
		return false
	}
	for _, n := range active {
		if n.AdminID == adminID && n.MessageRef == postID {
			return true
		}
	}
	return false
}

// InviteResult is an issued code and whom it is for.
type InviteResult struct {
	Employee *model.Employee
	Token    *model.InviteToken
}

// IssueInvite issues a fresh code for the employee with email. Only admins may do it.
func (o *Orchestrator) IssueInvite(ctx context.Context, email, issuerChatID string) (*InviteResult, error) {
	issuer, err := o.resolveAdmin(ctx, issuerChatID, nil)
	if err != nil {
		return nil, err
	}
	if err := service.ValidateEmail(email); err != nil {
		return nil, err
	}
	employee, err := o.employees.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return o.issue(ctx, employee, issuer)
}

// IssueInviteByID is the REST variant of IssueInvite.
func (o *Orchestrator) IssueInviteByID(ctx context.Context, employeeID, issuerID uuid.UUID) (*InviteResult, error) {
	issuer, err := o.resolveAdmin(ctx, "", &issuerID)
	if err != nil {
		return nil, err
	}
	employee, err := o.employees.FindByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return o.issue(ctx, employee, issuer)
}

func (o *Orchestrator) issue(ctx context.Context, employee, issuer *model.Employee) (*InviteResult, error) {
	issuerID := issuer.ID
	token, err := o.invites.Issue(ctx, employee.ID, &issuerID, o.inviteTTL)
	if err != nil {
		return nil, err
	}
	logger.LogEvent("invite_issued", map[string]interface{}{
		"employee_id": employee.ID.String(),
		"issued_by":   issuer.ID.String(),
	})
	return &InviteResult{Employee: employee, Token: token}, nil
}

// RedeemInvite binds chatID to the owner of code.
func (o *Orchestrator) RedeemInvite(ctx context.Context, chatID, code string) (*service.RegistrationResult, error) {
	return o.register(ctx, service.RegisterInput{ChatID: chatID, Code: code})
}

func (o *Orchestrator) register(ctx context.Context, in service.RegisterInput) (*service.RegistrationResult, error) {
	result, err := o.invites.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	if result.Status == model.InviteValid && result.Employee != nil {
		o.publish(EventEmployeeRegistered, map[string]interface{}{"employee_id": result.Employee.ID})
	}
	return result, nil
}

// ListPending, CountPending and the per-employee variants pass through to the ledger.
func (o *Orchestrator) ListPending(ctx context.Context, offset, limit int) ([]model.AbsenceRequest, error) {
	return o.absences.ListPending(ctx, offset, limit)
}

func (o *Orchestrator) CountPending(ctx context.Context) (int64, error) {
	return o.absences.CountPending(ctx)
}

func (o *Orchestrator) ListByEmployee(ctx context.Context, employeeID uuid.UUID, offset, limit int) ([]model.AbsenceRequest, error) {
	return o.absences.ListByEmployee(ctx, employeeID, offset, limit)
}

func (o *Orchestrator) CountByEmployee(ctx context.Context, employeeID uuid.UUID) (int64, error) {
	return o.absences.CountByEmployee(ctx, employeeID)
}

// userMessage maps expected errors to a message ID shown in chat. ok is false for
// unexpected errors, which callers log and answer generically.
func userMessage(err error) (id string, ok bool) {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		return "error.not_registered", true
	case errors.Is(err, service.ErrForbidden):
		return "error.forbidden", true
	case errors.Is(err, service.ErrRequestNotFound):
		return "error.request_not_found", true
	case errors.Is(err, service.ErrRequestAlreadyProcessed):
		return "error.already_processed", true
	case errors.Is(err, service.ErrNotRequestOwner):
		return "error.not_owner", true
	case errors.Is(err, service.ErrEmployeeNotFound):
		return "error.employee_not_found", true
	case errors.Is(err, service.ErrInvalidEmail):
		return "error.invalid_email", true
	case errors.Is(err, service.ErrIdentityAlreadyBound):
		return "error.identity_bound", true
	case errors.Is(err, service.ErrInviteNotFound):
		return "error.invite_not_found", true
	case errors.Is(err, service.ErrEmployeeInactive):
		return "error.inactive", true
	}
	return "error.generic", false
}
