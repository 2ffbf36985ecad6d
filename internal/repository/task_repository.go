package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

// TaskRepository defines task persistence operations. Notification and audit
// entries are only ever appended as new rows (or array elements), never by
// rewriting the parent task, so concurrent appends cannot lose each other.
type TaskRepository interface {
	// Create persists the task together with any notifications and audit entries it carries.
	Create(ctx context.Context, task *model.Task) error
	// Update writes the task's own fields and appends audit in one atomic step.
	Update(ctx context.Context, task *model.Task, audit []model.AuditEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	// FindVisible looks a task up inside scope; out-of-scope tasks are not found.
	FindVisible(ctx context.Context, id uuid.UUID, scope model.TaskScope) (*model.Task, error)
	Find(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	AppendNotification(ctx context.Context, notification *model.Notification) error
	FindNotification(ctx context.Context, taskID, notificationID uuid.UUID) (*model.Notification, error)
	MarkNotificationRead(ctx context.Context, taskID, notificationID uuid.UUID) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]model.Notification, error)
	// ClaimSuccessor records successorID on a task that has none yet. It
	// reports false when another caller claimed it first.
	ClaimSuccessor(ctx context.Context, taskID, successorID uuid.UUID) (bool, error)
	// ReleaseSuccessor clears a claim, but only while it still holds successorID.
	ReleaseSuccessor(ctx context.Context, taskID, successorID uuid.UUID) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create creates a new task with its embedded logs.
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return translate(r.db.WithContext(ctx).Create(task).Error)
}

// Update writes scalar fields and appends audit entries in a transaction.
func (r *taskRepository) Update(ctx context.Context, task *model.Task, audit []model.AuditEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Task
		if err := tx.Select("id").Where("id = ?", task.ID).First(&existing).Error; err != nil {
			return err
		}

		fields := map[string]interface{}{
			"title":                   task.Title,
			"description":             task.Description,
			"due_date":                task.DueDate,
			"priority":                task.Priority,
			"status":                  task.Status,
			"assigned_to":             task.AssignedTo,
			"recurrence_is_recurring": task.Recurrence.IsRecurring,
			"recurrence_frequency":    task.Recurrence.Frequency,
			"recurrence_end_date":     task.Recurrence.EndDate,
		}
		if err := tx.Model(&model.Task{ID: task.ID}).Omit(clause.Associations).Updates(fields).Error; err != nil {
			return err
		}

		if len(audit) == 0 {
			return nil
		}
		for i := range audit {
			audit[i].TaskID = task.ID
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return translate(err)
	}
	task.AuditLog = append(task.AuditLog, audit...)
	return nil
}

// Delete permanently removes a task and everything it owns.
func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.AuditEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// FindByID finds a task by ID with its logs.
func (r *taskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.withLogs(r.db.WithContext(ctx)).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// FindVisible finds a task by ID inside the caller's scope.
func (r *taskRepository) FindVisible(ctx context.Context, id uuid.UUID, scope model.TaskScope) (*model.Task, error) {
	var task model.Task
	q := r.applyScope(r.withLogs(r.db.WithContext(ctx)), scope)
	if err := q.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// Find lists tasks matching the filter. The scope is applied first.
func (r *taskRepository) Find(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	q := r.applyScope(r.withLogs(r.db.WithContext(ctx)), filter.Scope)

	if filter.Search != "" {
		if r.db.Dialector.Name() == "mysql" {
			q = q.Where("MATCH(title, description) AGAINST (? IN NATURAL LANGUAGE MODE)", filter.Search)
		} else {
			like := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
		}
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.DueFrom != nil {
		q = q.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		q = q.Where("due_date < ?", *filter.DueTo)
	}
	if filter.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.CreatedBy != nil {
		q = q.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.OverdueOnly {
		q = q.Where("status <> ? AND due_date < ?", model.StatusCompleted, filter.Now)
	}
	if filter.RecurringDue {
		q = q.Where("recurrence_is_recurring = ? AND recurrence_frequency <> ? AND successor_id IS NULL AND due_date < ?",
			true, model.FrequencyNone, filter.Now)
	}

	if filter.OrderByUpdated {
		q = q.Order("updated_at DESC")
	} else {
		q = q.Order("due_date ASC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	tasks := []model.Task{}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, translate(err)
	}
	return tasks, nil
}

// AppendNotification inserts a notification row for its task.
func (r *taskRepository) AppendNotification(ctx context.Context, notification *model.Notification) error {
	return translate(r.db.WithContext(ctx).Create(notification).Error)
}

// FindNotification finds a notification inside a task's log.
func (r *taskRepository) FindNotification(ctx context.Context, taskID, notificationID uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND task_id = ?", notificationID, taskID).First(&n).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// MarkNotificationRead sets the read flag. Marking twice is harmless.
func (r *taskRepository) MarkNotificationRead(ctx context.Context, taskID, notificationID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND task_id = ?", notificationID, taskID).
		Update("read", true).Error)
}

// ListNotifications lists a recipient's notifications, newest first.
func (r *taskRepository) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where(map[string]interface{}{"read": false})
	}
	notifications := []model.Notification{}
	if err := q.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, translate(err)
	}
	return notifications, nil
}

// ClaimSuccessor sets successor_id only while it is still empty.
func (r *taskRepository) ClaimSuccessor(ctx context.Context, taskID, successorID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND successor_id IS NULL", taskID).
		Update("successor_id", successorID)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseSuccessor resets successor_id to NULL if it still equals successorID.
func (r *taskRepository) ReleaseSuccessor(ctx context.Context, taskID, successorID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND successor_id = ?", taskID, successorID).
		Update("successor_id", nil).Error
	return translate(err)
}

func (r *taskRepository) withLogs(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Notifications", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("AuditLog", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp") })
}

func (r *taskRepository) applyScope(q *gorm.DB, scope model.TaskScope) *gorm.DB {
	switch scope.Kind {
	case model.ScopeAll:
		return q
	case model.ScopeTeam:
		reports := r.db.Model(&model.User{}).Select("id").Where("manager_id = ?", scope.UserID)
		return q.Where("(created_by = ? OR assigned_to = ? OR assigned_to IN (?))", scope.UserID, scope.UserID, reports)
	case model.ScopeReports:
		reports := r.db.Model(&model.User{}).Select("id").Where("manager_id = ?", scope.UserID)
		return q.Where("assigned_to IN (?)", reports)
	default:
		return q.Where("(created_by = ? OR assigned_to = ?)", scope.UserID, scope.UserID)
	}
}

// IsNotFound reports whether err is a not-found result from a repository.
func IsNotFound(err error) bool {
	return errors.KindOf(err) == errors.KindNotFound
}
