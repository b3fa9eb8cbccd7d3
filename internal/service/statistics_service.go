package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/repository"
)

const recentProjectsLimit = 5

// StatisticsQuery bounds the dashboard by creation time. Nil ends are open.
type StatisticsQuery struct {
	Start *time.Time
	End   *time.Time
}

type StatisticsService interface {
	Dashboard(ctx context.Context, user *model.User, q StatisticsQuery) (*model.DashboardStatistics, error)
}

type statisticsService struct {
	repo   repository.StatisticsRepository
	access *RoleAccess
	now    func() time.Time
	logger *slog.Logger
}

// NewStatisticsService creates the dashboard service. Administrators see
// every project and task; everyone else sees their own.
func NewStatisticsService(repo repository.StatisticsRepository, access *RoleAccess, logger *slog.Logger) StatisticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &statisticsService{repo: repo, access: access, now: time.Now, logger: logger}
}

func (s *statisticsService) Dashboard(ctx context.Context, user *model.User, q StatisticsQuery) (*model.DashboardStatistics, error) {
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		return nil, fieldError("end_date", "The end date must be a date after or equal to start date.")
	}

	filter := repository.StatisticsFilter{Start: q.Start, End: q.End}
	admin, err := s.access.isAdministrator(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dashboard scope: %w", err)
	}
	if !admin {
		filter.UserID = &user.ID
	}

	stats := &model.DashboardStatistics{
		TasksByStatus:      make(map[string]int64, len(model.TaskStatuses)),
		TimeRangeStartDate: q.Start,
		TimeRangeEndDate:   q.End,
	}
	for _, st := range model.TaskStatuses {
		stats.TasksByStatus[st] = 0
	}

	if stats.TotalProjects, stats.ActiveProjects, err = s.repo.ProjectCounts(ctx, filter); err != nil {
		return nil, err
	}

	rows, err := s.repo.TaskStatusCounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.TasksByStatus[row.Status] += row.Total
		stats.TotalTasks += row.Total
	}

	if stats.CompletedTasks, err = s.repo.CountCompletedTasks(ctx, filter); err != nil {
		return nil, err
	}
	stats.PendingTasks = stats.TotalTasks - stats.CompletedTasks
	if stats.TotalTasks > 0 {
		stats.CompletionRate = int((stats.CompletedTasks*100 + stats.TotalTasks/2) / stats.TotalTasks)
	}

	if stats.OverdueTasks, err = s.repo.CountOverdueTasks(ctx, filter, s.now()); err != nil {
		return nil, err
	}

	if stats.RecentProjects, err = s.repo.RecentProjects(ctx, filter, recentProjectsLimit); err != nil {
		return nil, err
	}
	if stats.RecentProjects == nil {
		stats.RecentProjects = []model.ProjectSummary{}
	}

	s.logger.DebugContext(ctx, "Dashboard statistics computed", "user_id", user.ID, "all_users", admin, "tasks", stats.TotalTasks)
	return stats, nil
}
