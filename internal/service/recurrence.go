package service

import (
	"time"

	"github.com/google/uuid"

	"taskmanager/internal/model"
)

// NextOccurrence advances due by one period of f. Monthly steps keep the day
// of month, clamped to the last day of the target month. ok is false for
// FrequencyNone and unknown frequencies.
func NextOccurrence(due time.Time, f model.Frequency) (next time.Time, ok bool) {
	switch f {
	case model.FrequencyDaily:
		return due.AddDate(0, 0, 1), true
	case model.FrequencyWeekly:
		return due.AddDate(0, 0, 7), true
	case model.FrequencyMonthly:
		y, m, d := due.Date()
		first := time.Date(y, m+1, 1, due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location())
		last := first.AddDate(0, 1, -1).Day()
		if d > last {
			d = last
		}
		return time.Date(first.Year(), first.Month(), d, due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location()), true
	default:
		return time.Time{}, false
	}
}

// GenerateRecurringSuccessor returns the unsaved next instance of a recurring
// task, or nil when the task does not recur or the next date passes its end
// date. The successor starts in To Do with empty logs and no identifier.
func GenerateRecurringSuccessor(task *model.Task) *model.Task {
	if task == nil || !task.Recurrence.IsRecurring {
		return nil
	}
	next, ok := NextOccurrence(task.DueDate, task.Recurrence.Frequency)
	if !ok {
		return nil
	}
	if end := task.Recurrence.EndDate; end != nil && next.After(*end) {
		return nil
	}

	var assignee *uuid.UUID
	if task.AssignedTo != nil {
		id := *task.AssignedTo
		assignee = &id
	}
	recurrence := task.Recurrence
	if recurrence.EndDate != nil {
		end := *recurrence.EndDate
		recurrence.EndDate = &end
	}

	return &model.Task{
		ID:            uuid.Nil,
		Title:         task.Title,
		Description:   task.Description,
		DueDate:       next,
		Priority:      task.Priority,
		Status:        model.StatusToDo,
		CreatedBy:     task.CreatedBy,
		AssignedTo:    assignee,
		Recurrence:    recurrence,
		Notifications: []model.Notification{},
		AuditLog:      []model.AuditEntry{},
	}
}
