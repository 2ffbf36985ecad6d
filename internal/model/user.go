package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationPreferences are independent per-user delivery switches.
type NotificationPreferences struct {
	Email           bool `json:"email" gorm:"not null"`
	InApp           bool `json:"inApp" gorm:"not null"`
	TaskUpdates     bool `json:"taskUpdates" gorm:"not null"`
	TaskAssignments bool `json:"taskAssignments" gorm:"not null"`
}

// DefaultNotificationPreferences enables every channel.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Email: true, InApp: true, TaskUpdates: true, TaskAssignments: true}
}

// User represents an authenticated user in the system.
type User struct {
	ID                      uuid.UUID               `json:"id" gorm:"type:char(36);primaryKey"`
	Name                    string                  `json:"name" gorm:"size:255;not null"`
	Email                   string                  `json:"email" gorm:"uniqueIndex;size:255;not null"` // stored lowercase
	PasswordHash            string                  `json:"-" gorm:"size:255;not null"`                 // Never expose in JSON
	Role                    Role                    `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	ManagerID               *uuid.UUID              `json:"managerId,omitempty" gorm:"type:char(36);index"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences" gorm:"embedded;embeddedPrefix:notify_"`
	CreatedAt               time.Time               `json:"createdAt"`
	UpdatedAt               time.Time               `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// NotificationPatch is a partial update of NotificationPreferences; nil fields are untouched.
type NotificationPatch struct {
	Email           *bool `json:"email"`
	InApp           *bool `json:"inApp"`
	TaskUpdates     *bool `json:"taskUpdates"`
	TaskAssignments *bool `json:"taskAssignments"`
}

// Apply merges the patch into p.
func (np NotificationPatch) Apply(p *NotificationPreferences) {
	if np.Email != nil {
		p.Email = *np.Email
	}
	if np.InApp != nil {
		p.InApp = *np.InApp
	}
	if np.TaskUpdates != nil {
		p.TaskUpdates = *np.TaskUpdates
	}
	if np.TaskAssignments != nil {
		p.TaskAssignments = *np.TaskAssignments
	}
}
