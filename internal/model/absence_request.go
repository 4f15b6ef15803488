package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestType enumerates the kinds of absence an employee can ask for.
type RequestType string

const (
	RequestDayOff         RequestType = "day_off"
	RequestRemote         RequestType = "remote"
	RequestVacation       RequestType = "vacation"
	RequestSickLeave      RequestType = "sick_leave"
	RequestPartialAbsence RequestType = "partial_absence"
)

// RequestTypes is the display order used by the request form.
var RequestTypes = []RequestType{
	RequestDayOff,
	RequestRemote,
	RequestVacation,
	RequestSickLeave,
	RequestPartialAbsence,
}

func (t RequestType) Valid() bool {
	switch t {
	case RequestDayOff, RequestRemote, RequestVacation, RequestSickLeave, RequestPartialAbsence:
		return true
	}
	return false
}

// IsPartial is true for requests measured in hours within one day.
func (t RequestType) IsPartial() bool {
	return t == RequestPartialAbsence
}

// RequestStatus is the lifecycle state. Pending is the only non-terminal state.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// AbsenceRequest is one employee's ask for time off. Whole-day types store midnight
// boundaries for the first and last day; partial absence stores exact times on one day.
type AbsenceRequest struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	EmployeeID      uuid.UUID     `gorm:"type:uuid;not null;index:idx_absence_request_employee_dates,priority:1" json:"employee_id"`
	Employee        *Employee     `gorm:"foreignKey:EmployeeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"employee,omitempty"`
	Type            RequestType   `gorm:"column:request_type;type:varchar(30);not null" json:"request_type"`
	StartAt         time.Time     `gorm:"not null;index:idx_absence_request_dates,priority:1;index:idx_absence_request_employee_dates,priority:2" json:"start_at"`
	EndAt           time.Time     `gorm:"not null;index:idx_absence_request_dates,priority:2;index:idx_absence_request_employee_dates,priority:3" json:"end_at"`
	Comment         *string       `gorm:"type:text" json:"comment"`
	Status          RequestStatus `gorm:"type:varchar(20);not null;index:idx_absence_request_status" json:"status"`
	RejectionReason *string       `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AbsenceRequest) TableName() string { return "absence_requests" }

func (r *AbsenceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Days counts calendar days covered, inclusive. Partial absences count as one.
func (r *AbsenceRequest) Days() int {
	start := civilDay(r.StartAt)
	end := civilDay(r.EndAt.In(r.StartAt.Location()))
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

// civilDay maps t's calendar date onto a UTC midnight so day arithmetic ignores DST shifts.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Hours is the length of a partial absence.
func (r *AbsenceRequest) Hours() float64 {
	return r.EndAt.Sub(r.StartAt).Hours()
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
