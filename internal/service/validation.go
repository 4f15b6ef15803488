package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"attendance/internal/model"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// CreateEmployeeInput is what an admin enters to add a person.
type CreateEmployeeInput struct {
	Email      string     `json:"email" binding:"required" validate:"required"`
	FirstName  string     `json:"first_name" binding:"required" validate:"required,min=2,max=100"`
	LastName   string     `json:"last_name" binding:"required" validate:"required,min=2,max=100"`
	Patronymic string     `json:"patronymic" validate:"omitempty,min=2,max=100"`
	Position   string     `json:"position" validate:"max=200"`
	Role       model.Role `json:"role"`
}

func (in *CreateEmployeeInput) normalize() {
	in.Email = model.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Patronymic = strings.TrimSpace(in.Patronymic)
	in.Position = strings.TrimSpace(in.Position)
	if in.Role == "" {
		in.Role = model.RoleMember
	}
}

func (in *CreateEmployeeInput) validate() error {
	in.normalize()
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}
	if err := validatorInstance().Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidName, strings.ToLower(fieldErrs[0].Field()))
		}
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}

// ValidateEmail checks the address format only; no DNS or SMTP probing.
func ValidateEmail(email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, email)
	}
	return nil
}

// ValidateName applies the same rule the create form uses to a single name part.
func ValidateName(name string) error {
	if err := validatorInstance().Var(strings.TrimSpace(name), "required,min=2,max=100"); err != nil {
		return ErrInvalidName
	}
	return nil
}
