package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is a message to one user, owned by exactly one task.
type Notification struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID    uuid.UUID `json:"taskId" gorm:"type:char(36);not null;index"`
	UserID    uuid.UUID `json:"user" gorm:"type:char(36);not null;index"` // recipient
	Message   string    `json:"message" gorm:"type:text"`
	Read      bool      `json:"read" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate sets UUID before creating the record.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// AuditAction is the kind of change an audit entry records.
type AuditAction string

const (
	AuditCreated       AuditAction = "created"
	AuditUpdated       AuditAction = "updated"
	AuditAssigned      AuditAction = "assigned"
	AuditDeleted       AuditAction = "deleted"
	AuditStatusChanged AuditAction = "status_changed"
)

// AuditEntry is an append-only record of a change to a task.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID    uuid.UUID   `json:"taskId" gorm:"type:char(36);not null;index"`
	Action    AuditAction `json:"action" gorm:"type:varchar(20);not null"`
	UserID    uuid.UUID   `json:"user" gorm:"type:char(36);not null"` // actor
	Details   string      `json:"details" gorm:"type:text"`
	Timestamp time.Time   `json:"timestamp" gorm:"not null;index"`
}

// TableName keeps the audit table name short.
func (AuditEntry) TableName() string {
	return "task_audit_entries"
}

// BeforeCreate sets UUID before creating the record.
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
