package model

import (
	"time"

	"github.com/google/uuid"
)

// DashboardStatistics summarizes projects and tasks inside a time bracket
type DashboardStatistics struct {
	TotalProjects      int64            `json:"total_projects"`
	ActiveProjects     int64            `json:"active_projects"`
	TotalTasks         int64            `json:"total_tasks"`
	CompletedTasks     int64            `json:"completed_tasks"`
	PendingTasks       int64            `json:"pending_tasks"`
	OverdueTasks       int64            `json:"overdue_tasks"`
	CompletionRate     int              `json:"completion_rate"` // percent, rounded
	TasksByStatus      map[string]int64 `json:"tasks_by_status"`
	RecentProjects     []ProjectSummary `json:"recent_projects"`
	TimeRangeStartDate *time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   *time.Time       `json:"time_range_end_date"`
}

// ProjectSummary represents a project with its task counters
type ProjectSummary struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	TasksCount          int64     `json:"tasks_count"`
	CompletedTasksCount int64     `json:"completed_tasks_count"`
}
