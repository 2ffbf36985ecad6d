package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		freq model.Frequency
		want time.Time
		ok   bool
	}{
		{"daily", date(2024, 1, 10), model.FrequencyDaily, date(2024, 1, 11), true},
		{"weekly", date(2024, 1, 10), model.FrequencyWeekly, date(2024, 1, 17), true},
		{"monthly", date(2024, 1, 10), model.FrequencyMonthly, date(2024, 2, 10), true},
		{"monthly clamps to leap day", date(2024, 1, 31), model.FrequencyMonthly, date(2024, 2, 29), true},
		{"monthly clamps to short month", date(2023, 3, 31), model.FrequencyMonthly, date(2023, 4, 30), true},
		{"monthly across year end", date(2023, 12, 15), model.FrequencyMonthly, date(2024, 1, 15), true},
		{"none", date(2024, 1, 10), model.FrequencyNone, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.due, tt.freq)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestGenerateRecurringSuccessor(t *testing.T) {
	assignee := uuid.New()
	base := func() *model.Task {
		return &model.Task{
			ID:          uuid.New(),
			Title:       "Standup",
			Description: "daily sync",
			DueDate:     date(2024, 1, 10),
			Priority:    model.PriorityHigh,
			Status:      model.StatusCompleted,
			CreatedBy:   uuid.New(),
			AssignedTo:  &assignee,
			Recurrence:  model.Recurrence{IsRecurring: true, Frequency: model.FrequencyDaily},
			Notifications: []model.Notification{
				{ID: uuid.New(), Message: "assigned"},
			},
			AuditLog: []model.AuditEntry{
				{ID: uuid.New(), Action: model.AuditCreated},
			},
		}
	}

	t.Run("daily successor", func(t *testing.T) {
		parent := base()
		next := GenerateRecurringSuccessor(parent)
		require.NotNil(t, next)

		assert.True(t, date(2024, 1, 11).Equal(next.DueDate))
		assert.Equal(t, model.StatusToDo, next.Status)
		assert.Equal(t, uuid.Nil, next.ID)
		assert.NotEqual(t, parent.ID, next.ID)
		assert.Empty(t, next.Notifications)
		assert.Empty(t, next.AuditLog)
		assert.Equal(t, parent.Title, next.Title)
		assert.Equal(t, parent.Priority, next.Priority)
		assert.Equal(t, parent.CreatedBy, next.CreatedBy)
		require.NotNil(t, next.AssignedTo)
		assert.Equal(t, assignee, *next.AssignedTo)
		assert.NotSame(t, parent.AssignedTo, next.AssignedTo)
		assert.Nil(t, next.SuccessorID)
	})

	t.Run("monthly past end date", func(t *testing.T) {
		parent := base()
		parent.DueDate = date(2024, 1, 31)
		end := date(2024, 2, 15)
		parent.Recurrence = model.Recurrence{IsRecurring: true, Frequency: model.FrequencyMonthly, EndDate: &end}
		assert.Nil(t, GenerateRecurringSuccessor(parent))
	})

	t.Run("next date equal to end date is allowed", func(t *testing.T) {
		parent := base()
		end := date(2024, 1, 11)
		parent.Recurrence.EndDate = &end
		assert.NotNil(t, GenerateRecurringSuccessor(parent))
	})

	t.Run("not recurring", func(t *testing.T) {
		parent := base()
		parent.Recurrence.IsRecurring = false
		assert.Nil(t, GenerateRecurringSuccessor(parent))
	})

	t.Run("recurring with frequency none", func(t *testing.T) {
		parent := base()
		parent.Recurrence.Frequency = model.FrequencyNone
		assert.Nil(t, GenerateRecurringSuccessor(parent))
	})
}
