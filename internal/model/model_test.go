package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Satisfies(t *testing.T) {
	tests := []struct {
		have     Role
		required Role
		want     bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleUser, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleManager, false},
		{RoleUser, RoleUser, true},
		{Role("root"), RoleUser, false},
		{Role(""), RoleUser, false},
		{RoleAdmin, Role("root"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.have)+"->"+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.have.Satisfies(tt.required))
		})
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Manager ")
	assert.True(t, ok)
	assert.Equal(t, RoleManager, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		due    time.Time
		status Status
		want   bool
	}{
		{name: "past due to do", due: now.Add(-time.Hour), status: StatusToDo, want: true},
		{name: "past due in progress", due: now.Add(-time.Hour), status: StatusInProgress, want: true},
		{name: "past due completed", due: now.Add(-time.Hour), status: StatusCompleted, want: false},
		{name: "due exactly now", due: now, status: StatusToDo, want: false},
		{name: "future", due: now.Add(time.Hour), status: StatusToDo, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueDate: tt.due, Status: tt.status}
			assert.Equal(t, tt.want, task.IsOverdue(now))
			assert.Equal(t, tt.want, NewTaskView(task, now).Overdue)
		})
	}
}

func TestEnumsValid(t *testing.T) {
	for _, p := range Priorities {
		assert.True(t, p.Valid())
	}
	for _, s := range Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Priority("Urgent").Valid())
	assert.False(t, Status("done").Valid())
	assert.False(t, Frequency("yearly").Valid())
	assert.True(t, FrequencyMonthly.Valid())
}

func TestNotificationPatch_Apply(t *testing.T) {
	prefs := DefaultNotificationPreferences()
	off := false
	NotificationPatch{InApp: &off}.Apply(&prefs)

	assert.False(t, prefs.InApp)
	assert.True(t, prefs.Email)
	assert.True(t, prefs.TaskUpdates)
	assert.True(t, prefs.TaskAssignments)
}

func TestTask_IsAssignedTo(t *testing.T) {
	id := uuid.New()
	task := Task{}
	assert.False(t, task.IsAssignedTo(id))
	task.AssignedTo = &id
	assert.True(t, task.IsAssignedTo(id))
	assert.False(t, task.IsAssignedTo(uuid.New()))
}

func TestOptionalID_UnmarshalJSON(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		body    string
		wantSet bool
		want    *uuid.UUID
		wantErr bool
	}{
		{name: "absent", body: `{}`},
		{name: "null clears", body: `{"assignedTo":null}`, wantSet: true},
		{name: "empty string clears", body: `{"assignedTo":""}`, wantSet: true},
		{name: "id", body: `{"assignedTo":"` + id.String() + `"}`, wantSet: true, want: &id},
		{name: "garbage", body: `{"assignedTo":"nope"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var patch struct {
				AssignedTo OptionalID `json:"assignedTo"`
			}
			err := json.Unmarshal([]byte(tt.body), &patch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSet, patch.AssignedTo.Set)
			assert.Equal(t, tt.want, patch.AssignedTo.Value)
		})
	}
}
