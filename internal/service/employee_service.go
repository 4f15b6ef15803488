package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmployeeService owns the identity records.
type EmployeeService interface {
	Create(ctx context.Context, in CreateEmployeeInput, withInvite bool) (*model.Employee, *model.InviteToken, error)
	EnsureSuperuser(ctx context.Context, in CreateEmployeeInput) (*model.Employee, *model.InviteToken, error)
	BindChatIdentity(ctx context.Context, employeeID uuid.UUID, chatID string) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	FindByEmail(ctx context.Context, email string) (*model.Employee, error)
	FindByChatID(ctx context.Context, chatID string) (*model.Employee, error)
	ListAll(ctx context.Context) ([]model.Employee, error)
	List(ctx context.Context, page, limit int) ([]model.Employee, int64, error)
	CountAll(ctx context.Context) (int64, error)
	ActiveAdmins(ctx context.Context) ([]model.Employee, error)
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.Employee, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type employeeService struct {
	repo      repository.EmployeeRepository
	invites   InviteService
	txManager repository.TransactionManager
}

func NewEmployeeService(
	repo repository.EmployeeRepository,
	invites InviteService,
	txManager repository.TransactionManager,
) EmployeeService {
	return &employeeService{repo: repo, invites: invites, txManager: txManager}
}

// Create adds an employee with no chat identity. With withInvite the first invite code
// is issued in the same transaction.
func (s *employeeService) Create(ctx context.Context, in CreateEmployeeInput, withInvite bool) (*model.Employee, *model.InviteToken, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	if in.Role == model.RoleSuperuser {
		return nil, nil, fmt.Errorf("%w: superuser is created with attendancectl", ErrInvalidRole)
	}

	employee := &model.Employee{
		Email:      in.Email,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Patronymic: in.Patronymic,
		Position:   in.Position,
		Role:       in.Role,
		IsActive:   true,
	}
	var token *model.InviteToken

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.insert(txCtx, employee); err != nil {
			return err
		}
		if !withInvite {
			return nil
		}
		issued, err := s.invites.Issue(txCtx, employee.ID, nil, 0)
		if err != nil {
			return err
		}
		token = issued
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.LogEvent("employee_created", map[string]interface{}{
		"employee_id": employee.ID.String(),
		"role":        string(employee.Role),
	})
	return employee, token, nil
}

func (s *employeeService) insert(ctx context.Context, employee *model.Employee) error {
	if _, err := s.repo.GetByEmail(ctx, employee.Email); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, employee.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, employee.Email)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// EnsureSuperuser creates the bootstrap superuser or promotes an existing employee with
// that email. An invite is issued only when the account has no chat identity and no
// active code yet; otherwise the active code (if any) is returned.
func (s *employeeService) EnsureSuperuser(ctx context.Context, in CreateEmployeeInput) (*model.Employee, *model.InviteToken, error) {
	in.Role = model.RoleSuperuser
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	var (
		employee *model.Employee
		token    *model.InviteToken
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.GetByEmail(txCtx, in.Email)
		switch {
		case err == nil:
			if existing.Role != model.RoleSuperuser || !existing.IsActive {
				fields := map[string]interface{}{"role": model.RoleSuperuser, "is_active": true}
				if err := s.repo.UpdateFields(txCtx, existing.ID, fields); err != nil {
					return fmt.Errorf("failed to promote employee: %w", err)
				}
				existing.Role = model.RoleSuperuser
				existing.IsActive = true
			}
			employee = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			employee = &model.Employee{
				Email:      in.Email,
				FirstName:  in.FirstName,
				LastName:   in.LastName,
				Patronymic: in.Patronymic,
				Position:   in.Position,
				Role:       model.RoleSuperuser,
				IsActive:   true,
			}
			if err := s.insert(txCtx, employee); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failed to look up employee: %w", err)
		}

		if employee.HasChatIdentity() {
			return nil
		}
		active, err := s.invites.FindActive(txCtx, employee.ID)
		if err != nil {
			return err
		}
		if active != nil {
			token = active
			return nil
		}
		token, err = s.invites.Issue(txCtx, employee.ID, nil, 0)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return employee, token, nil
}

func (s *employeeService) BindChatIdentity(ctx context.Context, employeeID uuid.UUID, chatID string) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return bindChatIdentity(txCtx, s.repo, employeeID, chatID)
	})
}

// bindChatIdentity is shared with registration, which binds inside its own transaction.
func bindChatIdentity(ctx context.Context, repo repository.EmployeeRepository, employeeID uuid.UUID, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errors.New("chat id is required")
	}

	owner, err := repo.GetByChatID(ctx, chatID)
	switch {
	case err == nil && owner.ID == employeeID:
		return nil
	case err == nil:
		return ErrIdentityAlreadyBound
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to check chat identity: %w", err)
	}

	if _, err := repo.GetByID(ctx, employeeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEmployeeNotFound
		}
		return fmt.Errorf("failed to load employee: %w", err)
	}

	if err := repo.UpdateFields(ctx, employeeID, map[string]interface{}{"chat_id": chatID}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrIdentityAlreadyBound
		}
		return fmt.Errorf("failed to bind chat identity: %w", err)
	}
	return nil
}

func (s *employeeService) FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	return s.find(s.repo.GetByID(ctx, id))
}

func (s *employeeService) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	return s.find(s.repo.GetByEmail(ctx, email))
}

// FindByChatID reports ErrProfileNotFound, the message a chat user sees when unregistered.
func (s *employeeService) FindByChatID(ctx context.Context, chatID string) (*model.Employee, error) {
	employee, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return employee, nil
}

func (s *employeeService) find(employee *model.Employee, err error) (*model.Employee, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return employee, nil
}

func (s *employeeService) ListAll(ctx context.Context) ([]model.Employee, error) {
	employees, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

func (s *employeeService) List(ctx context.Context, page, limit int) ([]model.Employee, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", err)
	}
	employees, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, total, nil
}

func (s *employeeService) CountAll(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *employeeService) ActiveAdmins(ctx context.Context) ([]model.Employee, error) {
	admins, err := s.repo.ListActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}

// SetRole switches between member and admin. Superuser is neither granted nor revoked here.
func (s *employeeService) SetRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.Employee, error) {
	if !role.Valid() || role == model.RoleSuperuser {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.update(ctx, id, map[string]interface{}{"role": role})
}

// Deactivate keeps the record and its history but stops admin notifications to it.
func (s *employeeService) Deactivate(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	return s.update(ctx, id, map[string]interface{}{"is_active": false})
}

func (s *employeeService) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Employee, error) {
	var employee *model.Employee
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.find(s.repo.GetByID(txCtx, id))
		if err != nil {
			return err
		}
		if current.Role == model.RoleSuperuser {
			return ErrProtectedRole
		}
		if err := s.repo.UpdateFields(txCtx, id, fields); err != nil {
			return fmt.Errorf("failed to update employee: %w", err)
		}
		employee, err = s.find(s.repo.GetByID(txCtx, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

// Delete removes the employee. Invites, requests, history rows and notifications follow
// through ON DELETE rules; history written by this employee keeps a null actor.
func (s *employeeService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		employee, err := s.find(s.repo.GetByID(txCtx, id))
		if err != nil {
			return err
		}
		if employee.Role == model.RoleSuperuser {
			return ErrProtectedRole
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.LogEvent("employee_deleted", map[string]interface{}{"employee_id": id.String()})
	return nil
}
