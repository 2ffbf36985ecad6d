// Package mongorepo stores users and tasks in MongoDB. Tasks are single
// documents that embed their notification and audit arrays.
package mongorepo

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

type preferencesDoc struct {
	Email           bool `bson:"email"`
	InApp           bool `bson:"in_app"`
	TaskUpdates     bool `bson:"task_updates"`
	TaskAssignments bool `bson:"task_assignments"`
}

type userDoc struct {
	ID                      string         `bson:"_id"`
	Name                    string         `bson:"name"`
	Email                   string         `bson:"email"`
	PasswordHash            string         `bson:"password_hash"`
	Role                    string         `bson:"role"`
	ManagerID               *string        `bson:"manager_id,omitempty"`
	NotificationPreferences preferencesDoc `bson:"notification_preferences"`
	CreatedAt               time.Time      `bson:"created_at"`
	UpdatedAt               time.Time      `bson:"updated_at"`
}

type notificationDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Message   string    `bson:"message"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type auditDoc struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	Details   string    `bson:"details"`
	Timestamp time.Time `bson:"timestamp"`
}

type recurrenceDoc struct {
	IsRecurring bool       `bson:"is_recurring"`
	Frequency   string     `bson:"frequency"`
	EndDate     *time.Time `bson:"end_date,omitempty"`
}

type taskDoc struct {
	ID            string            `bson:"_id"`
	Title         string            `bson:"title"`
	Description   string            `bson:"description"`
	DueDate       time.Time         `bson:"due_date"`
	Priority      string            `bson:"priority"`
	Status        string            `bson:"status"`
	CreatedBy     string            `bson:"created_by"`
	AssignedTo    *string           `bson:"assigned_to"`
	Recurrence    recurrenceDoc     `bson:"recurrence"`
	SuccessorID   *string           `bson:"successor_id"`
	Notifications []notificationDoc `bson:"notifications"`
	AuditLog      []auditDoc        `bson:"audit_log"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func parseOptionalID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := parseID(*s)
	return &id
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		ManagerID:    idString(u.ManagerID),
		NotificationPreferences: preferencesDoc{
			Email:           u.NotificationPreferences.Email,
			InApp:           u.NotificationPreferences.InApp,
			TaskUpdates:     u.NotificationPreferences.TaskUpdates,
			TaskAssignments: u.NotificationPreferences.TaskAssignments,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (d userDoc) toModel() model.User {
	return model.User{
		ID:           parseID(d.ID),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         model.Role(d.Role),
		ManagerID:    parseOptionalID(d.ManagerID),
		NotificationPreferences: model.NotificationPreferences{
			Email:           d.NotificationPreferences.Email,
			InApp:           d.NotificationPreferences.InApp,
			TaskUpdates:     d.NotificationPreferences.TaskUpdates,
			TaskAssignments: d.NotificationPreferences.TaskAssignments,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toNotificationDoc(n *model.Notification) notificationDoc {
	return notificationDoc{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func (d notificationDoc) toModel(taskID uuid.UUID) model.Notification {
	return model.Notification{
		ID:        parseID(d.ID),
		TaskID:    taskID,
		UserID:    parseID(d.UserID),
		Message:   d.Message,
		Read:      d.Read,
		CreatedAt: d.CreatedAt,
	}
}

func toAuditDoc(a *model.AuditEntry) auditDoc {
	return auditDoc{
		ID:        a.ID.String(),
		Action:    string(a.Action),
		UserID:    a.UserID.String(),
		Details:   a.Details,
		Timestamp: a.Timestamp,
	}
}

func (d auditDoc) toModel(taskID uuid.UUID) model.AuditEntry {
	return model.AuditEntry{
		ID:        parseID(d.ID),
		TaskID:    taskID,
		Action:    model.AuditAction(d.Action),
		UserID:    parseID(d.UserID),
		Details:   d.Details,
		Timestamp: d.Timestamp,
	}
}

func toTaskDoc(t *model.Task) taskDoc {
	doc := taskDoc{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy.String(),
		AssignedTo:  idString(t.AssignedTo),
		Recurrence: recurrenceDoc{
			IsRecurring: t.Recurrence.IsRecurring,
			Frequency:   string(t.Recurrence.Frequency),
			EndDate:     t.Recurrence.EndDate,
		},
		SuccessorID:   idString(t.SuccessorID),
		Notifications: make([]notificationDoc, 0, len(t.Notifications)),
		AuditLog:      make([]auditDoc, 0, len(t.AuditLog)),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	for i := range t.Notifications {
		doc.Notifications = append(doc.Notifications, toNotificationDoc(&t.Notifications[i]))
	}
	for i := range t.AuditLog {
		doc.AuditLog = append(doc.AuditLog, toAuditDoc(&t.AuditLog[i]))
	}
	return doc
}

func (d taskDoc) toModel() model.Task {
	id := parseID(d.ID)
	t := model.Task{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate,
		Priority:    model.Priority(d.Priority),
		Status:      model.Status(d.Status),
		CreatedBy:   parseID(d.CreatedBy),
		AssignedTo:  parseOptionalID(d.AssignedTo),
		Recurrence: model.Recurrence{
			IsRecurring: d.Recurrence.IsRecurring,
			Frequency:   model.Frequency(d.Recurrence.Frequency),
			EndDate:     d.Recurrence.EndDate,
		},
		SuccessorID:   parseOptionalID(d.SuccessorID),
		Notifications: make([]model.Notification, 0, len(d.Notifications)),
		AuditLog:      make([]model.AuditEntry, 0, len(d.AuditLog)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, n := range d.Notifications {
		t.Notifications = append(t.Notifications, n.toModel(id))
	}
	for _, a := range d.AuditLog {
		t.AuditLog = append(t.AuditLog, a.toModel(id))
	}
	return t
}

// translate maps driver errors onto the domain taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return errors.ErrRecordNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(errors.KindConflict, errors.ErrDuplicateRecord.Message, err)
	case mongo.IsTimeout(err), stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(errors.KindTransient, "storage timeout", err)
	case mongo.IsNetworkError(err):
		return errors.Wrap(errors.KindTransient, "storage unavailable", err)
	default:
		return errors.Wrap(errors.KindInternal, "storage failure", err)
	}
}
