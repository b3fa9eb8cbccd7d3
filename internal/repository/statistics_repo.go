package repository

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatisticsFilter scopes dashboard counters. A nil UserID covers every user;
// Start and End bound created_at.
type StatisticsFilter struct {
	UserID *uuid.UUID
	Start  *time.Time
	End    *time.Time
}

// StatusCount is one row of a GROUP BY status query
type StatusCount struct {
	Status string `gorm:"column:status"`
	Total  int64  `gorm:"column:total"`
}

type StatisticsRepository interface {
	ProjectCounts(ctx context.Context, filter StatisticsFilter) (total, active int64, err error)
	TaskStatusCounts(ctx context.Context, filter StatisticsFilter) ([]StatusCount, error)
	CountCompletedTasks(ctx context.Context, filter StatisticsFilter) (int64, error)
	CountOverdueTasks(ctx context.Context, filter StatisticsFilter, now time.Time) (int64, error)
	RecentProjects(ctx context.Context, filter StatisticsFilter, limit int) ([]model.ProjectSummary, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) projects(ctx context.Context, filter StatisticsFilter) *gorm.DB {
	q := GetDB(ctx, r.db).Model(&model.Project{})
	if filter.UserID != nil {
		q = q.Where("projects.user_id = ?", *filter.UserID)
	}
	return bracket(q, "projects.created_at", filter)
}

func (r *statisticsRepository) tasks(ctx context.Context, filter StatisticsFilter) *gorm.DB {
	q := GetDB(ctx, r.db).Model(&model.Task{})
	if filter.UserID != nil {
		q = q.Where("(tasks.user_id = ? OR tasks.assignee_id = ?)", *filter.UserID, *filter.UserID)
	}
	return bracket(q, "tasks.created_at", filter)
}

func bracket(q *gorm.DB, column string, filter StatisticsFilter) *gorm.DB {
	if filter.Start != nil {
		q = q.Where(column+" >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where(column+" <= ?", *filter.End)
	}
	return q
}

func (r *statisticsRepository) ProjectCounts(ctx context.Context, filter StatisticsFilter) (int64, int64, error) {
	var total, active int64
	if err := r.projects(ctx, filter).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count projects: %w", err)
	}
	if err := r.projects(ctx, filter).Where("projects.is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count active projects: %w", err)
	}
	return total, active, nil
}

func (r *statisticsRepository) TaskStatusCounts(ctx context.Context, filter StatisticsFilter) ([]StatusCount, error) {
	var rows []StatusCount
	if err := r.tasks(ctx, filter).
		Select("tasks.status as status, COUNT(*) as total").
		Group("tasks.status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	return rows, nil
}

func (r *statisticsRepository) CountCompletedTasks(ctx context.Context, filter StatisticsFilter) (int64, error) {
	var n int64
	if err := r.tasks(ctx, filter).Where("tasks.is_completed = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return n, nil
}

// CountOverdueTasks counts open tasks whose due date is before now.
func (r *statisticsRepository) CountOverdueTasks(ctx context.Context, filter StatisticsFilter, now time.Time) (int64, error) {
	var n int64
	if err := r.tasks(ctx, filter).
		Where("tasks.due_date IS NOT NULL AND tasks.due_date < ?", now).
		Where("tasks.is_completed = ? AND tasks.status <> ?", false, model.TaskStatusCancelled).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return n, nil
}

// RecentProjects returns the newest projects with their task counters.
func (r *statisticsRepository) RecentProjects(ctx context.Context, filter StatisticsFilter, limit int) ([]model.ProjectSummary, error) {
	var rows []model.ProjectSummary
	if err := r.projects(ctx, filter).
		Select("projects.id as id, projects.name as name, projects.status as status, " +
			"COUNT(tasks.id) as tasks_count, " +
			"COALESCE(SUM(CASE WHEN tasks.is_completed THEN 1 ELSE 0 END), 0) as completed_tasks_count").
		Joins("LEFT JOIN tasks ON tasks.project_id = projects.id AND tasks.deleted_at IS NULL").
		Group("projects.id, projects.name, projects.status, projects.created_at").
		Order("projects.created_at DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query recent projects: %w", err)
	}
	return rows, nil
}
