package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Status represents the progress of a task.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusToDo, StatusInProgress, StatusCompleted}

// Frequency is how often a recurring task repeats.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Recurrence describes whether and how a task spawns a successor after its due date.
type Recurrence struct {
	IsRecurring bool       `json:"isRecurring" gorm:"not null"`
	Frequency   Frequency  `json:"frequency" gorm:"type:varchar(10);not null;default:'none'"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// Task represents a unit of work with embedded notification and audit logs.
type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Description string     `json:"description" gorm:"type:text"`
	DueDate     time.Time  `json:"dueDate" gorm:"not null;index"`
	Priority    Priority   `json:"priority" gorm:"type:varchar(10);not null;default:'Medium';index"`
	Status      Status     `json:"status" gorm:"type:varchar(20);not null;default:'To Do';index"`
	CreatedBy   uuid.UUID  `json:"createdBy" gorm:"type:char(36);not null;index"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty" gorm:"type:char(36);index"`
	Recurrence  Recurrence `json:"recurrence" gorm:"embedded;embeddedPrefix:recurrence_"`
	// SuccessorID is set once the recurring successor has been spawned.
	SuccessorID *uuid.UUID `json:"successorId,omitempty" gorm:"type:char(36)"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"index"`

	Notifications []Notification `json:"notifications" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	AuditLog      []AuditEntry   `json:"auditLog" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsOverdue reports whether the task is past due and not completed. It is
// derived at read time and never stored.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != StatusCompleted && t.DueDate.Before(now)
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskView is the API representation of a task, with the derived overdue flag.
type TaskView struct {
	Task
	Overdue bool `json:"overdue"`
}

// NewTaskView renders t as seen at now.
func NewTaskView(t Task, now time.Time) TaskView {
	return TaskView{Task: t, Overdue: t.IsOverdue(now)}
}

// NewTaskViews renders a slice of tasks.
func NewTaskViews(tasks []Task, now time.Time) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, NewTaskView(t, now))
	}
	return views
}

// OptionalID is a patch field for a nullable reference. Set distinguishes an
// absent field from an explicit null, which clears the reference.
type OptionalID struct {
	Set   bool
	Value *uuid.UUID
}

// UnmarshalJSON accepts a UUID string, an empty string or null.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	o.Value = &id
	return nil
}
