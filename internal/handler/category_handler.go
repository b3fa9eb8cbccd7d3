package handler

import (
	"net/http"

	"taskhub/internal/rbac"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/pagination"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// RegisterRoutes mounts the category routes. Writes need the matching
// category permission from the policy enforcer.
func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	categories := router.Group("/categories")
	categories.Use(guards.Auth)
	{
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategory)
		categories.POST("", guards.Permissions(rbac.PermCreateCategories), h.CreateCategory)
		categories.PUT("/:id", guards.Permissions(rbac.PermEditCategories), h.UpdateCategory)
		categories.DELETE("/:id", guards.Permissions(rbac.PermDeleteCategories), h.DeleteCategory)
	}
}

// ListCategories returns a page of categories
// @Summary      List categories
// @Tags         categories
// @Security     BearerAuth
// @Produce      json
// @Param        search      query     string  false  "Search by name"
// @Param        is_active   query     bool    false  "Filter by active flag"
// @Param        sort_by     query     string  false  "name or created_at"
// @Param        sort_order  query     string  false  "asc or desc"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        per_page    query     int     false  "Items per page (default 10)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /api/categories [get]
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	opts, p := listOptions(c, 10)
	categories, total, err := h.categoryService.ListCategories(c.Request.Context(), repository.CategoryFilter{
		ListOptions: opts,
		IsActive:    queryBool(c, "is_active"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(categories, p, total)))
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}
	category, err := h.categoryService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}

// CreateCategory creates a category
// @Summary      Create category
// @Tags         categories
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      service.CategoryRequest  true  "Category details"
// @Success      201      {object}  response.Response{data=object}
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

// UpdateCategory applies a partial update
// @Summary      Update category
// @Tags         categories
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Category ID"
// @Param        request  body      service.CategoryRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=object}
// @Router       /api/categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}
	var req service.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.UpdateCategory(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}

// DeleteCategory removes a category; its tasks keep running uncategorised
// @Summary      Delete category
// @Tags         categories
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Category ID"
// @Success      200  {object}  response.Response
// @Router       /api/categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}
	if err := h.categoryService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Category deleted successfully"}))
}
