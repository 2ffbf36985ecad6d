package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
)

// NotificationService manages the per-task notification logs.
type NotificationService interface {
	// Add appends a notification to the task's log and publishes it live.
	// Failures are logged and swallowed; the result is nil in that case.
	Add(ctx context.Context, task *model.Task, recipient uuid.UUID, message string) *model.Notification
	MarkRead(ctx context.Context, taskID, notificationID uuid.UUID, caller *model.User) (*model.Notification, error)
	List(ctx context.Context, caller *model.User, unreadOnly bool) ([]model.Notification, error)
}

type notificationService struct {
	tasks     repository.TaskRepository
	users     UserService
	publisher notify.Publisher
	log       *zap.Logger
}

// NewNotificationService wires the notification log to a live publisher.
func NewNotificationService(tasks repository.TaskRepository, users UserService, publisher notify.Publisher, log *zap.Logger) NotificationService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &notificationService{tasks: tasks, users: users, publisher: publisher, log: log}
}

func (s *notificationService) Add(ctx context.Context, task *model.Task, recipient uuid.UUID, message string) *model.Notification {
	n := &model.Notification{
		TaskID:  task.ID,
		UserID:  recipient,
		Message: message,
	}
	if err := s.tasks.AppendNotification(ctx, n); err != nil {
		s.log.Warn("notification append failed",
			zap.String("task_id", task.ID.String()),
			zap.String("recipient", recipient.String()),
			zap.Error(err))
		return nil
	}
	task.Notifications = append(task.Notifications, *n)

	user, err := s.users.GetUser(ctx, recipient)
	if err != nil {
		s.log.Warn("notification recipient lookup failed", zap.String("recipient", recipient.String()), zap.Error(err))
		return n
	}
	prefs := user.NotificationPreferences
	if !prefs.InApp || !prefs.TaskAssignments {
		return n
	}

	msg := notify.Message{
		NotificationID: n.ID,
		TaskID:         n.TaskID,
		UserID:         n.UserID,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("notification publish failed", zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
	return n
}

// MarkRead is idempotent: an already-read notification is returned unchanged.
func (s *notificationService) MarkRead(ctx context.Context, taskID, notificationID uuid.UUID, caller *model.User) (*model.Notification, error) {
	n, err := s.tasks.FindNotification(ctx, taskID, notificationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrNotificationNotFound
		}
		return nil, err
	}
	if n.UserID != caller.ID {
		return nil, errors.ErrNotRecipient
	}
	if n.Read {
		return n, nil
	}

	if err := s.tasks.MarkNotificationRead(ctx, taskID, notificationID); err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrNotificationNotFound
		}
		return nil, err
	}
	n.Read = true
	return n, nil
}

func (s *notificationService) List(ctx context.Context, caller *model.User, unreadOnly bool) ([]model.Notification, error) {
	return s.tasks.ListNotifications(ctx, caller.ID, unreadOnly)
}
