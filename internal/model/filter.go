package model

import (
	"time"

	"github.com/google/uuid"
)

// ScopeKind selects which tasks a caller may see.
type ScopeKind int

const (
	// ScopeOwn limits to tasks the user created or is assigned.
	ScopeOwn ScopeKind = iota
	// ScopeTeam adds tasks assigned to the manager's direct reports.
	ScopeTeam
	// ScopeAll is unrestricted.
	ScopeAll
	// ScopeReports is only tasks assigned to the manager's direct reports.
	ScopeReports
)

// TaskScope is the authorization part of a task query. It is derived from the
// caller's identity and applied before any caller-supplied predicate.
type TaskScope struct {
	Kind   ScopeKind
	UserID uuid.UUID
}

// TaskFilter combines an authorization scope with optional predicates.
type TaskFilter struct {
	Scope       TaskScope
	Search      string
	Status      *Status
	Priority    *Priority
	DueFrom     *time.Time // inclusive
	DueTo       *time.Time // exclusive
	AssignedTo  *uuid.UUID
	CreatedBy   *uuid.UUID
	OverdueOnly bool
	// RecurringDue selects recurring tasks past due without a successor.
	RecurringDue bool
	// Now is the reference time for overdue predicates.
	Now time.Time
	// OrderByUpdated sorts most recently updated first instead of by due date.
	OrderByUpdated bool
	Limit          int
}
