package service

import (
	"testing"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsDashboard(t *testing.T) {
	f := newTaskFixture(t)
	env := f.env

	f.create(t, TaskRequest{Title: ptr("done"), IsCompleted: ptr(true)})
	f.create(t, TaskRequest{Title: ptr("late"), DueDate: ptr("2020-01-01")})
	f.create(t, TaskRequest{Title: ptr("dropped"), Status: ptr(model.TaskStatusCancelled), DueDate: ptr("2020-01-01")})

	beta := env.createProject(t, f.other, "Beta")
	_, err := env.task.CreateTask(env.ctx, f.other, TaskRequest{Title: ptr("theirs"), ProjectID: &beta.ID, CategoryID: &f.category.ID})
	require.NoError(t, err)

	t.Run("users see their own data", func(t *testing.T) {
		stats, err := env.stats.Dashboard(env.ctx, f.owner, StatisticsQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalProjects)
		assert.EqualValues(t, 1, stats.ActiveProjects)
		assert.EqualValues(t, 3, stats.TotalTasks)
		assert.EqualValues(t, 1, stats.CompletedTasks)
		assert.EqualValues(t, 2, stats.PendingTasks)
		assert.EqualValues(t, 1, stats.OverdueTasks)
		assert.Equal(t, 33, stats.CompletionRate)
		assert.Equal(t, map[string]int64{
			model.TaskStatusPending:    1,
			model.TaskStatusInProgress: 0,
			model.TaskStatusCompleted:  1,
			model.TaskStatusCancelled:  1,
		}, stats.TasksByStatus)

		require.Len(t, stats.RecentProjects, 1)
		assert.Equal(t, "Alpha", stats.RecentProjects[0].Name)
		assert.EqualValues(t, 3, stats.RecentProjects[0].TasksCount)
		assert.EqualValues(t, 1, stats.RecentProjects[0].CompletedTasksCount)
	})

	t.Run("administrators see everything", func(t *testing.T) {
		admin := env.createUser(t, "admin@example.com", rbac.AdministratorRole)
		stats, err := env.stats.Dashboard(env.ctx, admin, StatisticsQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, stats.TotalProjects)
		assert.EqualValues(t, 4, stats.TotalTasks)
		assert.Len(t, stats.RecentProjects, 2)
	})

	t.Run("time window", func(t *testing.T) {
		future := time.Now().AddDate(10, 0, 0)
		stats, err := env.stats.Dashboard(env.ctx, f.owner, StatisticsQuery{Start: &future})
		require.NoError(t, err)
		assert.Zero(t, stats.TotalTasks)
		assert.Zero(t, stats.CompletionRate)
		assert.NotNil(t, stats.RecentProjects)
		assert.Empty(t, stats.RecentProjects)

		past := future.AddDate(-20, 0, 0)
		_, err = env.stats.Dashboard(env.ctx, f.owner, StatisticsQuery{Start: &future, End: &past})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "end_date")
	})
}

func TestAuditList(t *testing.T) {
	f := newTaskFixture(t)
	task := f.create(t, TaskRequest{})
	_, err := f.env.task.UpdateTask(f.env.ctx, f.owner, task.ID, TaskRequest{Title: ptr("renamed")})
	require.NoError(t, err)

	all, total, err := f.env.audit.List(f.env.ctx, repository.AuditFilter{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(3), "project create plus task create and update")
	assert.Len(t, all, int(total))

	updates, total, err := f.env.audit.List(f.env.ctx, repository.AuditFilter{AuditableType: model.AuditTypeTask, Event: model.AuditUpdated})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "renamed", updates[0].NewValues["title"])
	assert.Equal(t, f.owner.Name, updates[0].UserName)
}
