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

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, guards Guards) {
	group := router.Group("/audit-logs")
	group.Use(guards.Auth, guards.Roles(rbac.AdministratorRole)) // Protect history logs
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns a page of change history across projects and tasks
// @Summary      Get audit logs
// @Description  Lists audit entries newest first with the acting user's name
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        auditable_type  query     string  false  "task or project"
// @Param        event           query     string  false  "created, updated or deleted"
// @Param        user_id         query     string  false  "Acting user ID"
// @Param        page            query     int     false  "Page number (default 1)"
// @Param        per_page        query     int     false  "Items per page (default 20)"
// @Success      200             {object}  response.Response{data=object}
// @Failure      403             {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c, pagination.DefaultLimit)

	logs, total, err := h.auditService.List(c.Request.Context(), repository.AuditFilter{
		ListOptions:   repository.ListOptions{Limit: p.Limit, Offset: p.Offset},
		AuditableType: c.Query("auditable_type"),
		Event:         c.Query("event"),
		UserID:        queryUUID(c, "user_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, p, total)))
}
