package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
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

// inviteCodeBytes gives 128 bits of entropy, 32 hex characters.
const inviteCodeBytes = 16

// RegisterInput is one registration attempt from a chat account. EmployeeID narrows the
// lookup when the conversation already resolved the employee by email.
type RegisterInput struct {
	ChatID     string
	EmployeeID *uuid.UUID
	Code       string
}

// RegistrationResult carries the token status. Only InviteValid means the chat account
// is now bound to Employee.
type RegistrationResult struct {
	Status   model.InviteStatus
	Employee *model.Employee
	Token    *model.InviteToken
}

type InviteService interface {
	Issue(ctx context.Context, employeeID uuid.UUID, issuedBy *uuid.UUID, ttl time.Duration) (*model.InviteToken, error)
	FindActive(ctx context.Context, employeeID uuid.UUID) (*model.InviteToken, error)
	FindByEmployeeAndCode(ctx context.Context, employeeID uuid.UUID, code string) (*model.InviteToken, error)
	FindByCode(ctx context.Context, code string) (*model.InviteToken, error)
	EvaluateStatus(token *model.InviteToken) model.InviteStatus
	Redeem(ctx context.Context, code string) (*model.InviteToken, error)
	Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error)
}

type inviteService struct {
	repo      repository.InviteRepository
	employees repository.EmployeeRepository
	txManager repository.TransactionManager
	now       Clock
}

func NewInviteService(
	repo repository.InviteRepository,
	employees repository.EmployeeRepository,
	txManager repository.TransactionManager,
	opts ...Option,
) InviteService {
	o := buildOptions(opts)
	return &inviteService{repo: repo, employees: employees, txManager: txManager, now: o.now}
}

// EvaluateInviteStatus classifies a token at now without touching storage.
func EvaluateInviteStatus(token *model.InviteToken, now time.Time) model.InviteStatus {
	return token.Status(now)
}

// NewInviteCode returns a fresh random code.
func NewInviteCode() (string, error) {
	buf := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NormalizeInviteCode strips what users tend to paste around a code.
func NormalizeInviteCode(code string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(code), "`\"'"))
}

// Issue supersedes every unused code of the employee and stores a new one, so at most one
// code is redeemable at any time. ttl <= 0 uses model.DefaultInviteTTL.
func (s *inviteService) Issue(ctx context.Context, employeeID uuid.UUID, issuedBy *uuid.UUID, ttl time.Duration) (*model.InviteToken, error) {
	if ttl <= 0 {
		ttl = model.DefaultInviteTTL
	}

	var token *model.InviteToken
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.employees.GetByID(txCtx, employeeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmployeeNotFound
			}
			return fmt.Errorf("failed to load employee: %w", err)
		}

		superseded, err := s.repo.SupersedeUnused(txCtx, employeeID)
		if err != nil {
			return fmt.Errorf("failed to supersede invite codes: %w", err)
		}

		code, err := NewInviteCode()
		if err != nil {
			return err
		}
		now := s.now()
		token = &model.InviteToken{
			Code:       code,
			EmployeeID: employeeID,
			IssuedBy:   issuedBy,
			ExpiresAt:  now.Add(ttl),
			CreatedAt:  now,
		}
		if err := s.repo.Create(txCtx, token); err != nil {
			return fmt.Errorf("failed to store invite code: %w", err)
		}

		if superseded > 0 {
			logger.WithComponent("invites").
				WithField("employee_id", employeeID.String()).
				WithField("superseded", superseded).
				Debug("superseded unused invite codes")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InvitesIssued.Inc()
	return token, nil
}

// FindActive returns the redeemable code of an employee, or nil when there is none.
func (s *inviteService) FindActive(ctx context.Context, employeeID uuid.UUID) (*model.InviteToken, error) {
	token, err := s.repo.FindActive(ctx, employeeID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load invite code: %w", err)
	}
	return token, nil
}

func (s *inviteService) FindByEmployeeAndCode(ctx context.Context, employeeID uuid.UUID, code string) (*model.InviteToken, error) {
	return s.find(s.repo.FindByEmployeeAndCode(ctx, employeeID, NormalizeInviteCode(code)))
}

func (s *inviteService) FindByCode(ctx context.Context, code string) (*model.InviteToken, error) {
	return s.find(s.repo.FindByCode(ctx, NormalizeInviteCode(code)))
}

func (s *inviteService) find(token *model.InviteToken, err error) (*model.InviteToken, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite code: %w", err)
	}
	return token, nil
}

func (s *inviteService) EvaluateStatus(token *model.InviteToken) model.InviteStatus {
	return EvaluateInviteStatus(token, s.now())
}

// Redeem marks the code used. It returns nil, nil when the code had already been used.
func (s *inviteService) Redeem(ctx context.Context, code string) (*model.InviteToken, error) {
	var redeemed *model.InviteToken
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		token, err := s.FindByCode(txCtx, code)
		if err != nil {
			return err
		}
		ok, err := s.markUsed(txCtx, token)
		if err != nil || !ok {
			return err
		}
		redeemed = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}

func (s *inviteService) markUsed(ctx context.Context, token *model.InviteToken) (bool, error) {
	usedAt := s.now()
	rows, err := s.repo.MarkUsed(ctx, token.ID, usedAt)
	if err != nil {
		return false, fmt.Errorf("failed to redeem invite code: %w", err)
	}
	if rows == 0 {
		return false, nil
	}
	token.IsUsed = true
	token.UsedAt = &usedAt
	return true, nil
}

// Register runs the whole registration in one transaction: find the code, check it,
// bind the chat account and burn the code. Used or expired codes are reported through
// Status with nothing written; a chat account owned by someone else rolls everything back.
func (s *inviteService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	result := &RegistrationResult{}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var (
			token *model.InviteToken
			err   error
		)
		if in.EmployeeID != nil {
			token, err = s.FindByEmployeeAndCode(txCtx, *in.EmployeeID, in.Code)
		} else {
			token, err = s.FindByCode(txCtx, in.Code)
		}
		if err != nil {
			return err
		}
		result.Token = token

		result.Status = s.EvaluateStatus(token)
		if result.Status != model.InviteValid {
			return nil
		}

		if err := bindChatIdentity(txCtx, s.employees, token.EmployeeID, in.ChatID); err != nil {
			return err
		}
		ok, err := s.markUsed(txCtx, token)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race with another redemption of the same code.
			result.Status = model.InviteUsed
			return errRollback
		}

		employee, err := s.employees.GetByID(txCtx, token.EmployeeID)
		if err != nil {
			return fmt.Errorf("failed to load employee: %w", err)
		}
		result.Employee = employee
		return nil
	})
	if errors.Is(err, errRollback) {
		err = nil
	}
	metrics.InviteRedemptions.WithLabelValues(redemptionOutcome(result.Status, err)).Inc()
	if err != nil {
		return nil, err
	}
	return result, nil
}

// errRollback aborts a transaction whose outcome is reported through the result.
var errRollback = errors.New("rollback")

func redemptionOutcome(status model.InviteStatus, err error) string {
	switch {
	case errors.Is(err, ErrInviteNotFound):
		return "not_found"
	case errors.Is(err, ErrIdentityAlreadyBound):
		return "identity_bound"
	case err != nil:
		return "error"
	}
	return string(status)
}
