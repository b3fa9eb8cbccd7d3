package handler

import (
	"mime"
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/rbac"
	"taskhub/internal/service"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type TransferHandler struct {
	transferService service.TransferService
}

func NewTransferHandler(transferService service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	admin := guards.Roles(rbac.AdministratorRole)
	router.POST("/import/tasks", guards.Auth, admin, h.ImportTasks)
	router.GET("/export/tasks", guards.Auth, admin, h.ExportTasks)

	jobs := router.Group("/jobs")
	jobs.Use(guards.Auth)
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.GET("/:id/download", h.DownloadExport)
	}
}

// ImportTasks queues a CSV import
// @Summary      Import tasks
// @Description  Columns: title, description, project_name, category_name, due_date, is_completed
// @Tags         import-export
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "CSV file"
// @Success      202   {object}  response.Response{data=object}
// @Failure      422   {object}  response.Response
// @Router       /api/import/tasks [post]
func (h *TransferHandler) ImportTasks(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, &service.ValidationError{
			Message: "The file field is required.",
			Fields:  map[string][]string{"file": {"The file field is required."}},
		})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	job, err := h.transferService.ImportTasks(c.Request.Context(), middleware.CurrentUser(c), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, gin.H{
		"message": "Import started in background",
		"job_id":  job.ID,
	}))
}

// ExportTasks queues a CSV export of the caller's tasks
// @Summary      Export tasks
// @Tags         import-export
// @Security     BearerAuth
// @Produce      json
// @Param        project_id    query     string  false  "Project ID"
// @Param        category_id   query     string  false  "Category ID"
// @Param        is_completed  query     bool    false  "Completion flag"
// @Success      202           {object}  response.Response{data=object}
// @Router       /api/export/tasks [get]
func (h *TransferHandler) ExportTasks(c *gin.Context) {
	job, err := h.transferService.ExportTasks(c.Request.Context(), middleware.CurrentUser(c), service.ExportFilter{
		ProjectID:   queryUUID(c, "project_id"),
		CategoryID:  queryUUID(c, "category_id"),
		IsCompleted: queryBool(c, "is_completed"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, gin.H{
		"message": "Export started in background",
		"job_id":  job.ID,
	}))
}

// ListJobs returns the caller's most recent jobs
func (h *TransferHandler) ListJobs(c *gin.Context) {
	jobs, err := h.transferService.ListJobs(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, jobs))
}

// GetJob returns the status of one of the caller's jobs
// @Summary      Job status
// @Tags         import-export
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      404  {object}  response.Response
// @Router       /api/jobs/{id} [get]
func (h *TransferHandler) GetJob(c *gin.Context) {
	id, ok := pathID(c, "job")
	if !ok {
		return
	}
	job, err := h.transferService.GetJob(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, job))
}

// DownloadExport streams the CSV written by a completed export job
// @Summary      Download export
// @Tags         import-export
// @Security     BearerAuth
// @Produce      text/csv
// @Param        id   path  string  true  "Job ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /api/jobs/{id}/download [get]
func (h *TransferHandler) DownloadExport(c *gin.Context) {
	id, ok := pathID(c, "job")
	if !ok {
		return
	}
	rc, name, err := h.transferService.OpenExport(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "text/csv; charset=utf-8", rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}
