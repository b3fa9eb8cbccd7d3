package service

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskFixture struct {
	env      *testEnv
	owner    *model.User
	other    *model.User
	project  *model.Project
	category *model.Category
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	env := newTestEnv(t, rbac.BackendNone)
	owner := env.createUser(t, "owner@example.com", rbac.DefaultUserRole)
	return &taskFixture{
		env:      env,
		owner:    owner,
		other:    env.createUser(t, "other@example.com", rbac.DefaultUserRole),
		project:  env.createProject(t, owner, "Alpha"),
		category: env.createCategory(t, "Work"),
	}
}

func (f *taskFixture) create(t *testing.T, req TaskRequest) *model.Task {
	t.Helper()
	if req.Title == nil {
		req.Title = ptr("Write report")
	}
	req.ProjectID = &f.project.ID
	req.CategoryID = &f.category.ID
	task, err := f.env.task.CreateTask(f.env.ctx, f.owner, req)
	require.NoError(t, err)
	return task
}

func pdfBytes(size int) []byte {
	head := []byte("%PDF-1.4\n")
	return append(head, bytes.Repeat([]byte("0"), size-len(head))...)
}

func TestTaskServiceCreateDefaults(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, TaskRequest{})

	require.NotNil(t, task.UserID)
	require.NotNil(t, task.AssigneeID)
	assert.Equal(t, f.owner.ID, *task.UserID)
	assert.Equal(t, f.owner.ID, *task.AssigneeID)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.False(t, task.IsCompleted)
	require.NotNil(t, task.Project)
	assert.Equal(t, "Alpha", task.Project.Name)

	assert.Equal(t, []string{EventTaskCreated}, f.env.notifier.events(f.owner.ID))
}

func TestTaskServiceCreateLinksStatus(t *testing.T) {
	f := newTaskFixture(t)

	done := f.create(t, TaskRequest{IsCompleted: ptr(true)})
	assert.Equal(t, model.TaskStatusCompleted, done.Status)

	cancelled := f.create(t, TaskRequest{Status: ptr(model.TaskStatusCancelled), IsCompleted: ptr(true)})
	assert.Equal(t, model.TaskStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.IsCompleted)

	assigned := f.create(t, TaskRequest{AssigneeID: &f.other.ID})
	assert.Equal(t, f.owner.ID, *assigned.UserID)
	assert.Equal(t, f.other.ID, *assigned.AssigneeID)
	assert.Equal(t, []string{EventTaskCreated}, f.env.notifier.events(f.other.ID))
}

func TestTaskServiceCreateValidation(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.env.task.CreateTask(f.env.ctx, f.owner, TaskRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "project_id")
	assert.Contains(t, verr.Fields, "category_id")

	_, err = f.env.task.CreateTask(f.env.ctx, f.owner, TaskRequest{
		Title:      ptr("x"),
		ProjectID:  ptr(uuid.New()),
		CategoryID: &f.category.ID,
		AssigneeID: ptr(uuid.New()),
		DueDate:    ptr("someday"),
		Status:     ptr("blocked"),
	})
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"project_id", "assignee_id", "due_date", "status"} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestTaskServiceUpdateReconciles(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, TaskRequest{})

	got, err := f.env.task.UpdateTask(f.env.ctx, f.owner, task.ID, TaskRequest{IsCompleted: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)

	got, err = f.env.task.UpdateTask(f.env.ctx, f.owner, task.ID, TaskRequest{Status: ptr(model.TaskStatusInProgress)})
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)

	got, err = f.env.task.UpdateTask(f.env.ctx, f.owner, task.ID, TaskRequest{AssigneeID: &f.other.ID})
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, *got.AssigneeID)
	assert.Equal(t, f.other.ID, *got.UserID)

	history, err := f.env.task.History(f.env.ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Contains(t, f.env.notifier.events(f.other.ID), EventTaskUpdated)
}

func TestTaskServiceList(t *testing.T) {
	f := newTaskFixture(t)
	f.create(t, TaskRequest{Title: ptr("mine")})
	f.create(t, TaskRequest{Title: ptr("theirs"), UserID: &f.other.ID, IsCompleted: ptr(true)})

	tasks, total, err := f.env.task.ListTasks(f.env.ctx, repository.TaskFilter{UserID: &f.other.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "theirs", tasks[0].Title)

	done := true
	_, total, err = f.env.task.ListTasks(f.env.ctx, repository.TaskFilter{IsCompleted: &done})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = f.env.task.ListTasks(f.env.ctx, repository.TaskFilter{ListOptions: repository.ListOptions{Search: "MINE"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestTaskServiceAttachment(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, TaskRequest{})

	t.Run("rejects small, large and non-pdf files", func(t *testing.T) {
		for _, data := range [][]byte{pdfBytes(100), pdfBytes(AttachmentMaxSize + 10), bytes.Repeat([]byte("a"), 2048)} {
			_, err := f.env.task.UploadAttachment(f.env.ctx, f.owner, task.ID, "x.pdf", bytes.NewReader(data))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "attachment")
		}
	})

	first, err := f.env.task.UploadAttachment(f.env.ctx, f.owner, task.ID, `C:\docs\brief.pdf`, bytes.NewReader(pdfBytes(2048)))
	require.NoError(t, err)
	assert.Equal(t, "brief.pdf", first.AttachmentName)
	firstKey := first.Attachment

	second, err := f.env.task.UploadAttachment(f.env.ctx, f.owner, task.ID, "v2.pdf", bytes.NewReader(pdfBytes(4096)))
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, second.Attachment)

	_, err = f.env.task.OpenAttachment(f.env.ctx, strings.TrimPrefix(firstKey, attachmentPrefix))
	assert.ErrorIs(t, err, ErrNotFound, "replaced attachment is removed")

	rc, err := f.env.task.OpenAttachment(f.env.ctx, strings.TrimPrefix(second.Attachment, attachmentPrefix))
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Len(t, data, 4096)

	_, err = f.env.task.OpenAttachment(f.env.ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.env.task.DeleteTask(f.env.ctx, f.owner, task.ID))
	_, err = f.env.task.OpenAttachment(f.env.ctx, strings.TrimPrefix(second.Attachment, attachmentPrefix))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.env.task.GetTask(f.env.ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.env.notifier.events(f.owner.ID), EventTaskDeleted)
}
