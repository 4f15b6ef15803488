package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminNotification remembers which chat message carries a request card for one admin,
// so the card can be edited once the request is resolved.
type AdminNotification struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Request    *AbsenceRequest `gorm:"foreignKey:RequestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AdminID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_notification_active,priority:1" json:"admin_id"`
	Admin      *Employee       `gorm:"foreignKey:AdminID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	MessageRef string          `gorm:"type:varchar(64);not null" json:"message_ref"`
	ChatRef    string          `gorm:"type:varchar(64);not null" json:"chat_ref"`
	IsActive   bool            `gorm:"not null;index:idx_notification_active,priority:2" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index:idx_notification_active,priority:3" json:"created_at"`
}

func (AdminNotification) TableName() string { return "admin_notifications" }

func (n *AdminNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
