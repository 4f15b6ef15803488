package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role classifies what an employee may do in the bot.
type Role string

const (
	RoleMember    Role = "member"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// IsAdmin is true for roles allowed to review requests and issue invites.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperuser
}

// AdminRoles lists the roles that receive request notifications.
var AdminRoles = []Role{RoleAdmin, RoleSuperuser}

// Employee is the identity record. Email is the immutable business key; ChatID is the
// Mattermost user ID bound through an invite code.
type Employee struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	ChatID     *string   `gorm:"type:varchar(64);uniqueIndex" json:"chat_id"`
	FirstName  string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName   string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Patronymic string    `gorm:"type:varchar(100)" json:"patronymic,omitempty"`
	Position   string    `gorm:"type:varchar(200)" json:"position,omitempty"`
	Role       Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// FullName renders "Last First Patronymic" the way HR lists people.
func (e *Employee) FullName() string {
	parts := []string{e.LastName, e.FirstName}
	if e.Patronymic != "" {
		parts = append(parts, e.Patronymic)
	}
	return strings.Join(parts, " ")
}

// HasChatIdentity reports whether a chat account is bound.
func (e *Employee) HasChatIdentity() bool {
	return e.ChatID != nil && *e.ChatID != ""
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
