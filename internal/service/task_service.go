package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/authz"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const dateLayout = "2006-01-02"

// RecurrenceInput is the recurrence descriptor as supplied by a client.
type RecurrenceInput struct {
	IsRecurring bool    `json:"isRecurring"`
	Frequency   string  `json:"frequency"`
	EndDate     *string `json:"endDate"`
}

// CreateTaskInput holds the raw fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	Status      string
	AssignedTo  *uuid.UUID
	Recurrence  *RecurrenceInput
}

// UpdateTaskInput is a partial patch; nil fields are left untouched.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueDate     *string
	Priority    *string
	Status      *string
	AssignedTo  model.OptionalID
	Recurrence  *RecurrenceInput
}

// ListView selects one of the caller-facing task listings.
type ListView int

const (
	ViewAll ListView = iota
	ViewAssigned
	ViewCreated
	ViewOverdue
)

// ListTasksInput holds the optional caller-supplied predicates.
type ListTasksInput struct {
	Search     string
	Status     string
	Priority   string
	DueDate    string // a single UTC day
	DueFrom    string
	DueTo      string
	AssignedTo *uuid.UUID
	CreatedBy  *uuid.UUID
	Overdue    bool
}

// TaskService implements task lifecycle operations for an authenticated caller.
type TaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput, caller *model.User) (*model.TaskView, error)
	GetTask(ctx context.Context, id uuid.UUID, caller *model.User) (*model.TaskView, error)
	ListTasks(ctx context.Context, in ListTasksInput, view ListView, caller *model.User) ([]model.TaskView, error)
	UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskInput, caller *model.User) (*model.TaskView, error)
	DeleteTask(ctx context.Context, id uuid.UUID, caller *model.User) error
	// SweepRecurring spawns successors for every recurring task past due.
	SweepRecurring(ctx context.Context) (int, error)
}

type taskService struct {
	tasks         repository.TaskRepository
	users         repository.UserRepository
	notifications NotificationService
	analytics     AnalyticsInvalidator
	log           *zap.Logger
	now           func() time.Time
}

// NewTaskService builds the task service. A nil analytics skips cache
// invalidation on writes.
func NewTaskService(tasks repository.TaskRepository, users repository.UserRepository, notifications NotificationService, analytics AnalyticsInvalidator, log *zap.Logger) TaskService {
	if analytics == nil {
		analytics = nopInvalidator{}
	}
	return &taskService{
		tasks:         tasks,
		users:         users,
		notifications: notifications,
		analytics:     analytics,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ParseDueDate accepts RFC 3339 timestamps or YYYY-MM-DD dates (midnight UTC).
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Validation("due date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.Validation(fmt.Sprintf("invalid date %q: use YYYY-MM-DD or RFC 3339", s))
}

func parsePriority(s string) (model.Priority, error) {
	if s == "" {
		return model.PriorityMedium, nil
	}
	p := model.Priority(s)
	if !p.Valid() {
		return "", errors.Validation(fmt.Sprintf("invalid priority %q: must be Low, Medium or High", s))
	}
	return p, nil
}

func parseStatus(s string) (model.Status, error) {
	if s == "" {
		return model.StatusToDo, nil
	}
	st := model.Status(s)
	if !st.Valid() {
		return "", errors.Validation(fmt.Sprintf("invalid status %q: must be To Do, In Progress or Completed", s))
	}
	return st, nil
}

func parseRecurrence(in *RecurrenceInput) (model.Recurrence, error) {
	r := model.Recurrence{Frequency: model.FrequencyNone}
	if in == nil {
		return r, nil
	}
	r.IsRecurring = in.IsRecurring
	if in.Frequency != "" {
		r.Frequency = model.Frequency(strings.ToLower(in.Frequency))
		if !r.Frequency.Valid() {
			return r, errors.Validation(fmt.Sprintf("invalid frequency %q: must be none, daily, weekly or monthly", in.Frequency))
		}
	}
	if in.EndDate != nil && *in.EndDate != "" {
		end, err := ParseDueDate(*in.EndDate)
		if err != nil {
			return r, err
		}
		r.EndDate = &end
	}
	return r, nil
}

func (s *taskService) checkAssignee(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.users.FindByID(ctx, *id); err != nil {
		if repository.IsNotFound(err) {
			return errors.Validation("assignee does not exist")
		}
		return err
	}
	return nil
}

func (s *taskService) CreateTask(ctx context.Context, in CreateTaskInput, caller *model.User) (*model.TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Validation("title is required")
	}
	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	priority, err := parsePriority(in.Priority)
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	recurrence, err := parseRecurrence(in.Recurrence)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:       title,
		Description: in.Description,
		DueDate:     due,
		Priority:    priority,
		Status:      status,
		CreatedBy:   caller.ID,
		AssignedTo:  in.AssignedTo,
		Recurrence:  recurrence,
	}
	if err := s.save(ctx, task, caller.ID, "Task created"); err != nil {
		return nil, err
	}

	view := model.NewTaskView(*task, s.now())
	return &view, nil
}

// save persists a new task with its created entry, then notifies the assignee.
func (s *taskService) save(ctx context.Context, task *model.Task, actor uuid.UUID, details string) error {
	task.AuditLog = []model.AuditEntry{{
		Action:    model.AuditCreated,
		UserID:    actor,
		Details:   details,
		Timestamp: s.now(),
	}}
	task.Notifications = []model.Notification{}
	if err := s.tasks.Create(ctx, task); err != nil {
		return err
	}
	s.invalidate(ctx, task, nil)
	if task.AssignedTo != nil {
		s.notifications.Add(ctx, task, *task.AssignedTo, fmt.Sprintf("You have been assigned to task: %s", task.Title))
	}
	return nil
}

func (s *taskService) GetTask(ctx context.Context, id uuid.UUID, caller *model.User) (*model.TaskView, error) {
	task, err := s.tasks.FindVisible(ctx, id, authz.ScopeTaskQuery(caller))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, err
	}
	view := model.NewTaskView(*task, s.now())
	return &view, nil
}

func (s *taskService) ListTasks(ctx context.Context, in ListTasksInput, view ListView, caller *model.User) ([]model.TaskView, error) {
	now := s.now()
	filter, err := s.buildFilter(in, caller, now)
	if err != nil {
		return nil, err
	}
	switch view {
	case ViewAssigned:
		filter.AssignedTo = &caller.ID
	case ViewCreated:
		filter.CreatedBy = &caller.ID
	case ViewOverdue:
		filter.OverdueOnly = true
	}

	if _, err := s.spawnDue(ctx, filter.Scope, now); err != nil {
		s.log.Warn("recurring generation failed", zap.String("user_id", caller.ID.String()), zap.Error(err))
	}

	tasks, err := s.tasks.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return model.NewTaskViews(tasks, now), nil
}

func (s *taskService) buildFilter(in ListTasksInput, caller *model.User, now time.Time) (model.TaskFilter, error) {
	filter := model.TaskFilter{
		Scope:       authz.ScopeTaskQuery(caller),
		Search:      strings.TrimSpace(in.Search),
		AssignedTo:  in.AssignedTo,
		CreatedBy:   in.CreatedBy,
		OverdueOnly: in.Overdue,
		Now:         now,
	}
	if in.Status != "" {
		st, err := parseStatus(in.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &st
	}
	if in.Priority != "" {
		p, err := parsePriority(in.Priority)
		if err != nil {
			return filter, err
		}
		filter.Priority = &p
	}
	if in.DueDate != "" {
		day, err := time.Parse(dateLayout, in.DueDate)
		if err != nil {
			return filter, errors.Validation("dueDate filter must be YYYY-MM-DD")
		}
		next := day.AddDate(0, 0, 1)
		filter.DueFrom, filter.DueTo = &day, &next
	}
	if in.DueFrom != "" {
		from, err := ParseDueDate(in.DueFrom)
		if err != nil {
			return filter, err
		}
		filter.DueFrom = &from
	}
	if in.DueTo != "" {
		to, err := ParseDueDate(in.DueTo)
		if err != nil {
			return filter, err
		}
		filter.DueTo = &to
	}
	return filter, nil
}

// findWritable resolves a task for mutation. Tasks outside the caller's scope
// that exist are reported as forbidden, the rest as not found.
func (s *taskService) findWritable(ctx context.Context, id uuid.UUID, caller *model.User) (*model.Task, error) {
	task, err := s.tasks.FindVisible(ctx, id, authz.ScopeTaskQuery(caller))
	if err == nil {
		if task.CreatedBy != caller.ID {
			return nil, errors.ErrNotTaskCreator
		}
		return task, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	if _, err := s.tasks.FindByID(ctx, id); err == nil {
		return nil, errors.ErrNotTaskCreator
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	return nil, errors.ErrTaskNotFound
}

func (s *taskService) UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskInput, caller *model.User) (*model.TaskView, error) {
	task, err := s.findWritable(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	var changed []string
	oldStatus := task.Status

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errors.Validation("title cannot be empty")
		}
		if title != task.Title {
			task.Title = title
			changed = append(changed, "title")
		}
	}
	if in.Description != nil && *in.Description != task.Description {
		task.Description = *in.Description
		changed = append(changed, "description")
	}
	if in.DueDate != nil {
		due, err := ParseDueDate(*in.DueDate)
		if err != nil {
			return nil, err
		}
		if !due.Equal(task.DueDate) {
			task.DueDate = due
			changed = append(changed, "dueDate")
		}
	}
	if in.Priority != nil {
		p, err := parsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		if p != task.Priority {
			task.Priority = p
			changed = append(changed, "priority")
		}
	}
	if in.Status != nil {
		st, err := parseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		if st != task.Status {
			task.Status = st
			changed = append(changed, "status")
		}
	}
	if in.Recurrence != nil {
		r, err := parseRecurrence(in.Recurrence)
		if err != nil {
			return nil, err
		}
		if !sameRecurrence(r, task.Recurrence) {
			task.Recurrence = r
			changed = append(changed, "recurrence")
		}
	}

	previousAssignee := task.AssignedTo
	assigneeChanged := false
	if in.AssignedTo.Set && !sameID(in.AssignedTo.Value, task.AssignedTo) {
		if err := s.checkAssignee(ctx, in.AssignedTo.Value); err != nil {
			return nil, err
		}
		task.AssignedTo = in.AssignedTo.Value
		assigneeChanged = true
	}

	now := s.now()
	var audit []model.AuditEntry
	if len(changed) > 0 {
		audit = append(audit, model.AuditEntry{
			Action:    model.AuditUpdated,
			UserID:    caller.ID,
			Details:   "Updated " + strings.Join(changed, ", "),
			Timestamp: now,
		})
	}
	if task.Status != oldStatus {
		audit = append(audit, model.AuditEntry{
			Action:    model.AuditStatusChanged,
			UserID:    caller.ID,
			Details:   fmt.Sprintf("Status changed from %s to %s", oldStatus, task.Status),
			Timestamp: now,
		})
	}
	if assigneeChanged {
		details := "Task unassigned"
		if task.AssignedTo != nil {
			details = "Task assigned to " + task.AssignedTo.String()
		}
		audit = append(audit, model.AuditEntry{
			Action:    model.AuditAssigned,
			UserID:    caller.ID,
			Details:   details,
			Timestamp: now,
		})
	}

	if len(audit) > 0 {
		if err := s.tasks.Update(ctx, task, audit); err != nil {
			if repository.IsNotFound(err) {
				return nil, errors.ErrTaskNotFound
			}
			return nil, err
		}
		s.invalidate(ctx, task, previousAssignee)
	}
	if assigneeChanged && task.AssignedTo != nil {
		s.notifications.Add(ctx, task, *task.AssignedTo, fmt.Sprintf("You have been assigned to task: %s", task.Title))
	}

	view := model.NewTaskView(*task, now)
	return &view, nil
}

// invalidate drops the cached analytics of the task's creator and of its
// current and previous assignees.
func (s *taskService) invalidate(ctx context.Context, task *model.Task, previousAssignee *uuid.UUID) {
	ids := []uuid.UUID{task.CreatedBy}
	for _, id := range []*uuid.UUID{task.AssignedTo, previousAssignee} {
		if id != nil && !slices.Contains(ids, *id) {
			ids = append(ids, *id)
		}
	}
	s.analytics.Invalidate(ctx, ids...)
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameRecurrence(a, b model.Recurrence) bool {
	if a.IsRecurring != b.IsRecurring || a.Frequency != b.Frequency {
		return false
	}
	if a.EndDate == nil || b.EndDate == nil {
		return a.EndDate == nil && b.EndDate == nil
	}
	return a.EndDate.Equal(*b.EndDate)
}

func (s *taskService) DeleteTask(ctx context.Context, id uuid.UUID, caller *model.User) error {
	task, err := s.findWritable(ctx, id, caller)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		if repository.IsNotFound(err) {
			return errors.ErrTaskNotFound
		}
		return err
	}
	s.invalidate(ctx, task, nil)
	// The embedded audit log goes with the task, so the deletion is recorded here.
	s.log.Info("task audit",
		zap.String("action", string(model.AuditDeleted)),
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", caller.ID.String()),
		zap.String("title", task.Title))
	return nil
}

func (s *taskService) SweepRecurring(ctx context.Context) (int, error) {
	return s.spawnDue(ctx, model.TaskScope{Kind: model.ScopeAll}, s.now())
}

// spawnDue creates one successor for each recurring task in scope whose due
// date has passed. The successor slot is claimed before the successor is
// written, so concurrent callers never spawn twice. A claim whose successor
// could not be written is released for the next sweep.
func (s *taskService) spawnDue(ctx context.Context, scope model.TaskScope, now time.Time) (int, error) {
	due, err := s.tasks.Find(ctx, model.TaskFilter{Scope: scope, RecurringDue: true, Now: now})
	if err != nil {
		return 0, err
	}

	spawned := 0
	for i := range due {
		parent := &due[i]
		next := GenerateRecurringSuccessor(parent)
		if next == nil {
			continue
		}
		next.ID = uuid.New()
		claimed, err := s.tasks.ClaimSuccessor(ctx, parent.ID, next.ID)
		if err != nil {
			return spawned, err
		}
		if !claimed {
			continue
		}
		details := fmt.Sprintf("Recurring task generated from %s", parent.ID)
		if err := s.save(ctx, next, parent.CreatedBy, details); err != nil {
			s.log.Error("recurring successor not saved",
				zap.String("parent_id", parent.ID.String()),
				zap.String("successor_id", next.ID.String()),
				zap.Error(err))
			if err := s.tasks.ReleaseSuccessor(ctx, parent.ID, next.ID); err != nil {
				s.log.Error("recurring claim not released",
					zap.String("parent_id", parent.ID.String()),
					zap.Error(err))
			}
			continue
		}
		spawned++
	}
	if spawned > 0 {
		s.log.Info("recurring tasks generated", zap.Int("count", spawned))
	}
	return spawned, nil
}
