package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeType tags a history entry.
type ChangeType string

const (
	ChangeCreated        ChangeType = "created"
	ChangeStatusChanged  ChangeType = "status_changed"
	ChangeCancelled      ChangeType = "cancelled"
	ChangeCommentUpdated ChangeType = "comment_updated"
)

// Actor is who performed a change: the system or a specific employee.
// The zero value is the system.
type Actor struct {
	employeeID uuid.UUID
}

// SystemActor is used for changes no employee initiated.
func SystemActor() Actor { return Actor{} }

// EmployeeActor attributes a change to an employee.
func EmployeeActor(id uuid.UUID) Actor { return Actor{employeeID: id} }

func (a Actor) IsSystem() bool { return a.employeeID == uuid.Nil }

// EmployeeID returns the acting employee, if any.
func (a Actor) EmployeeID() (uuid.UUID, bool) {
	return a.employeeID, !a.IsSystem()
}

func (a Actor) ref() *uuid.UUID {
	if a.IsSystem() {
		return nil
	}
	id := a.employeeID
	return &id
}

// RequestHistoryEntry is an append-only record of a request change.
type RequestHistoryEntry struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_absence_request_history_request,priority:1" json:"request_id"`
	Request    *AbsenceRequest `gorm:"foreignKey:RequestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ChangedBy  *uuid.UUID      `gorm:"type:uuid;index" json:"changed_by"`
	Changer    *Employee       `gorm:"foreignKey:ChangedBy;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	ChangeType ChangeType      `gorm:"type:varchar(30);not null;index:idx_absence_request_history_type,priority:1" json:"change_type"`
	OldValue   *string         `gorm:"type:text" json:"old_value"`
	NewValue   *string         `gorm:"type:text" json:"new_value"`
	Reason     *string         `gorm:"type:text" json:"reason"`
	ChangedAt  time.Time       `gorm:"not null;index:idx_absence_request_history_request,priority:2;index:idx_absence_request_history_type,priority:2" json:"changed_at"`
}

func (RequestHistoryEntry) TableName() string { return "absence_request_history" }

func (h *RequestHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// Actor decodes the nullable changed_by column.
func (h *RequestHistoryEntry) Actor() Actor {
	if h.ChangedBy == nil {
		return SystemActor()
	}
	return EmployeeActor(*h.ChangedBy)
}

// SetActor encodes a onto the changed_by column.
func (h *RequestHistoryEntry) SetActor(a Actor) {
	h.ChangedBy = a.ref()
}
