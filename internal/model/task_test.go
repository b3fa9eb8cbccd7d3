package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTaskNormalizeNew(t *testing.T) {
	owner, assignee := uuid.New(), uuid.New()

	tests := []struct {
		name          string
		task          Task
		wantStatus    string
		wantCompleted bool
		wantUser      *uuid.UUID
		wantAssignee  *uuid.UUID
	}{
		{
			name:         "defaults to pending",
			task:         Task{UserID: &owner},
			wantStatus:   TaskStatusPending,
			wantUser:     &owner,
			wantAssignee: &owner,
		},
		{
			name:          "completion flag picks status",
			task:          Task{IsCompleted: true, AssigneeID: &assignee},
			wantStatus:    TaskStatusCompleted,
			wantCompleted: true,
			wantUser:      &assignee,
			wantAssignee:  &assignee,
		},
		{
			name:         "explicit status wins over flag",
			task:         Task{Status: TaskStatusInProgress, IsCompleted: true, UserID: &owner, AssigneeID: &assignee},
			wantStatus:   TaskStatusInProgress,
			wantUser:     &owner,
			wantAssignee: &assignee,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := tt.task
			task.normalizeNew()
			assert.Equal(t, tt.wantStatus, task.Status)
			assert.Equal(t, tt.wantCompleted, task.IsCompleted)
			assert.Equal(t, tt.wantUser, task.UserID)
			assert.Equal(t, tt.wantAssignee, task.AssigneeID)
		})
	}
}

func TestTaskReconcile(t *testing.T) {
	owner, assignee := uuid.New(), uuid.New()

	t.Run("status change drives the flag", func(t *testing.T) {
		task := Task{Status: TaskStatusCompleted, IsCompleted: false}
		task.Reconcile(TaskChange{Status: true, IsCompleted: true})
		assert.True(t, task.IsCompleted)
	})

	t.Run("flag change drives the status", func(t *testing.T) {
		task := Task{Status: TaskStatusCompleted, IsCompleted: false}
		task.Reconcile(TaskChange{IsCompleted: true})
		assert.Equal(t, TaskStatusPending, task.Status)
	})

	t.Run("assignee wins over owner", func(t *testing.T) {
		task := Task{UserID: &owner, AssigneeID: &assignee}
		task.Reconcile(TaskChange{UserID: true, AssigneeID: true})
		assert.Equal(t, assignee, *task.UserID)
	})

	t.Run("owner change copies to assignee", func(t *testing.T) {
		task := Task{UserID: &owner, AssigneeID: &assignee}
		task.Reconcile(TaskChange{UserID: true})
		assert.Equal(t, owner, *task.AssigneeID)
	})

	t.Run("no change leaves task alone", func(t *testing.T) {
		task := Task{Status: TaskStatusCancelled, UserID: &owner, AssigneeID: &assignee}
		task.Reconcile(TaskChange{})
		assert.Equal(t, TaskStatusCancelled, task.Status)
		assert.Equal(t, owner, *task.UserID)
		assert.Equal(t, assignee, *task.AssigneeID)
	})
}
