package service

import "errors"

// Validation errors. The conversation re-prompts on these; they never reach a write.
var (
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrInvalidName         = errors.New("name must be at least 2 characters")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidRequestType  = errors.New("invalid absence type")
	ErrInvalidDateRange    = errors.New("end must not be before start")
	ErrInvalidPartialRange = errors.New("partial absence must start and end on the same day")
	ErrStartInPast         = errors.New("start date is in the past")
	ErrInvalidTransition   = errors.New("invalid target status")
)

// Conflict errors. Surfaced as a denied action; the transaction is rolled back.
var (
	ErrDuplicateEmail          = errors.New("employee with this email already exists")
	ErrIdentityAlreadyBound    = errors.New("chat account is already bound to another employee")
	ErrRequestAlreadyProcessed = errors.New("request has already been processed")
	ErrProtectedRole           = errors.New("superuser cannot be changed or deleted")
	ErrNotRequestOwner         = errors.New("request belongs to another employee")
	ErrForbidden               = errors.New("action requires admin role")
	ErrEmployeeInactive        = errors.New("employee is deactivated")
)

// Not-found conditions. Reported neutrally and not logged as errors.
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrProfileNotFound  = errors.New("no employee profile is bound to this chat account")
	ErrRequestNotFound  = errors.New("request not found")
	ErrInviteNotFound   = errors.New("invite code not found")
)

// IsNotFound groups the not-found sentinels for callers that only need the class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrInviteNotFound)
}

// IsConflict groups the conflict sentinels.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrIdentityAlreadyBound) ||
		errors.Is(err, ErrRequestAlreadyProcessed) ||
		errors.Is(err, ErrProtectedRole) ||
		errors.Is(err, ErrNotRequestOwner) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrEmployeeInactive)
}

// IsValidation groups input validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidRequestType) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidPartialRange) ||
		errors.Is(err, ErrStartInPast) ||
		errors.Is(err, ErrInvalidTransition)
}
