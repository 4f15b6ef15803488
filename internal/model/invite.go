package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultInviteTTL is how long a freshly issued code stays redeemable.
const DefaultInviteTTL = 48 * time.Hour

// InviteStatus is the outcome of checking a code. Used and expired are ordinary
// results of user input, so they are values rather than errors.
type InviteStatus string

const (
	InviteValid   InviteStatus = "valid"
	InviteUsed    InviteStatus = "used"
	InviteExpired InviteStatus = "expired"
)

// InviteToken is a single-use code that binds a chat identity to an employee.
// Superseded codes are flagged used with a nil UsedAt and are kept as audit trail.
type InviteToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string     `gorm:"type:varchar(64);uniqueIndex;index:idx_invite_code_active,priority:1;not null" json:"code"`
	EmployeeID uuid.UUID  `gorm:"type:uuid;not null;index" json:"employee_id"`
	Employee   *Employee  `gorm:"foreignKey:EmployeeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	IssuedBy   *uuid.UUID `gorm:"type:uuid;index" json:"issued_by"`
	Issuer     *Employee  `gorm:"foreignKey:IssuedBy;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	IsUsed     bool       `gorm:"not null;index:idx_invite_code_active,priority:2" json:"is_used"`
	UsedAt     *time.Time `json:"used_at"`
	ExpiresAt  time.Time  `gorm:"not null;index:idx_invite_code_active,priority:3" json:"expires_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (InviteToken) TableName() string { return "invite_codes" }

func (t *InviteToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Status evaluates the token at now. Used takes precedence over expired.
func (t *InviteToken) Status(now time.Time) InviteStatus {
	if t.IsUsed {
		return InviteUsed
	}
	if !t.ExpiresAt.After(now) {
		return InviteExpired
	}
	return InviteValid
}
