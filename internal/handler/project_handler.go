package handler

import (
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/pagination"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectService service.ProjectService
}

func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	projects := router.Group("/projects")
	projects.Use(guards.Auth)
	{
		projects.GET("", h.ListProjects)
		projects.GET("/:id", h.GetProject)
		projects.POST("", h.CreateProject)
		projects.PUT("/:id", h.UpdateProject)
		projects.DELETE("/:id", h.DeleteProject)
	}
}

// ListProjects returns a page of projects
// @Summary      List projects
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        search      query     string  false  "Search by name or description"
// @Param        is_active   query     bool    false  "Filter by active flag"
// @Param        sort_by     query     string  false  "name, created_at, start_date, end_date or status"
// @Param        sort_order  query     string  false  "asc or desc"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        per_page    query     int     false  "Items per page (default 10)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /api/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	opts, p := listOptions(c, 10)
	projects, total, err := h.projectService.ListProjects(c.Request.Context(), repository.ProjectFilter{
		ListOptions: opts,
		IsActive:    queryBool(c, "is_active"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(projects, p, total)))
}

// GetProject returns a project with its owner and manager
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	project, err := h.projectService.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// CreateProject creates a project owned by the caller
// @Summary      Create project
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.ProjectRequest  true  "Project details"
// @Success      201      {object}  response.Response{data=object}
// @Failure      422      {object}  response.Response
// @Router       /api/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req service.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.CreateProject(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, project))
}

// UpdateProject applies a partial update
// @Summary      Update project
// @Tags         projects
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Project ID"
// @Param        request  body      service.ProjectRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=object}
// @Failure      422      {object}  response.Response
// @Router       /api/projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	var req service.ProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := h.projectService.UpdateProject(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, project))
}

// DeleteProject soft-deletes a project
// @Summary      Delete project
// @Tags         projects
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response
// @Router       /api/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Project deleted successfully"}))
}
