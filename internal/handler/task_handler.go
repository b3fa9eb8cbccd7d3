package handler

import (
	"mime"
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/pagination"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	tasks := router.Group("/tasks")
	tasks.Use(guards.Auth)
	{
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.POST("", h.CreateTask)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.GET("/:id/audits", h.TaskAudits)
		tasks.POST("/:id/upload", h.UploadAttachment)
	}

	router.GET("/storage/attachments/:filename", guards.Auth, h.ServeAttachment)
}

// ListTasks returns a page of tasks with their relations
// @Summary      List tasks
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        user_id      query     string  false  "Owner ID (OR-ed with assignee_id)"
// @Param        assignee_id  query     string  false  "Assignee ID (OR-ed with user_id)"
// @Param        project_id   query     string  false  "Project ID"
// @Param        category_id  query     string  false  "Category ID"
// @Param        is_completed query     bool    false  "Completion flag"
// @Param        search       query     string  false  "Search by title or description"
// @Param        sort_by      query     string  false  "title, created_at or due_date"
// @Param        sort_order   query     string  false  "asc or desc"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        per_page     query     int     false  "Items per page (default 50)"
// @Success      200          {object}  response.Response{data=object}
// @Router       /api/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	opts, p := listOptions(c, 50)
	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), repository.TaskFilter{
		ListOptions: opts,
		UserID:      queryUUID(c, "user_id"),
		AssigneeID:  queryUUID(c, "assignee_id"),
		ProjectID:   queryUUID(c, "project_id"),
		CategoryID:  queryUUID(c, "category_id"),
		IsCompleted: queryBool(c, "is_completed"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(tasks, p, total)))
}

// GetTask returns a task with project, category, owner and assignee
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// CreateTask creates a task; the owner defaults to the caller
// @Summary      Create task
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.TaskRequest  true  "Task details"
// @Success      201      {object}  response.Response{data=object}
// @Failure      422      {object}  response.Response
// @Router       /api/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req service.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, task))
}

// UpdateTask applies a partial update
// @Summary      Update task
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Task ID"
// @Param        request  body      service.TaskRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=object}
// @Failure      422      {object}  response.Response
// @Router       /api/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	var req service.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.UpdateTask(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// DeleteTask soft-deletes a task and its attachment
// @Summary      Delete task
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  response.Response
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Task deleted successfully"}))
}

// TaskAudits returns the change history of a task
// @Summary      Task history
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/tasks/{id}/audits [get]
func (h *TaskHandler) TaskAudits(c *gin.Context) {
	id, ok := pathID(c, "task")
	if !ok {
		return
	}
	logs, err := h.taskService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}

// UploadAttachment stores a PDF for the task
// @Summary      Upload task attachment
// @Tags         tasks
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id          path      string  true  "Task ID"
// @Param        attachment  formData  file    true  "PDF between 1KB and 500KB"
// @Success      200         {object}  response.Response{data=object}
// @Failure      422         {object}  response.Response
// @Router       /api/tasks/{id}/upload [post]
func (h *TaskHandler) UploadAttachment(c *gin.Context) {
	id, ok := pathID(c, "task")
	if !ok {
		return
	}

	header, err := c.FormFile("attachment")
	if err != nil {
		respondError(c, &service.ValidationError{
			Message: "The attachment field is required.",
			Fields:  map[string][]string{"attachment": {"The attachment field is required."}},
		})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	task, err := h.taskService.UploadAttachment(c.Request.Context(), middleware.CurrentUser(c), id, header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"message": "File uploaded successfully",
		"task":    task,
	}))
}

// ServeAttachment streams a stored attachment inline
// @Summary      Download attachment
// @Tags         tasks
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        filename  path  string  true  "Stored file name"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /api/storage/attachments/{filename} [get]
func (h *TaskHandler) ServeAttachment(c *gin.Context) {
	filename := c.Param("filename")
	rc, err := h.taskService.OpenAttachment(c.Request.Context(), filename)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": filename}),
	})
}
