package handler

import (
	"net/http"
	"time"

	"taskhub/internal/middleware"
	"taskhub/internal/service"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	router.GET("/statistics", guards.Auth, h.GetStatistics)
}

// parseBound accepts RFC3339 or a plain date; end dates cover the whole day.
func parseBound(raw string, endOfDay bool) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// GetStatistics returns dashboard counters
// @Summary      Get dashboard statistics
// @Description  Project and task totals, completion rate, overdue tasks and recent projects. Administrators see every user's data.
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "Start date (RFC3339 or YYYY-MM-DD)"
// @Param        end_date    query     string  false  "End date (RFC3339 or YYYY-MM-DD)"
// @Success      200         {object}  response.Response{data=model.DashboardStatistics}
// @Failure      422         {object}  response.Response
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	start, ok := parseBound(c.Query("start_date"), false)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, response.ValidationError(http.StatusUnprocessableEntity, invalidDataMessage,
			map[string][]string{"start_date": {"The start date is not a valid date."}}))
		return
	}
	end, ok := parseBound(c.Query("end_date"), true)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, response.ValidationError(http.StatusUnprocessableEntity, invalidDataMessage,
			map[string][]string{"end_date": {"The end date is not a valid date."}}))
		return
	}

	stats, err := h.statisticsService.Dashboard(c.Request.Context(), middleware.CurrentUser(c), service.StatisticsQuery{Start: start, End: end})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
