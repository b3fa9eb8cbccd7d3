package handler

import (
	"errors"
	"net/http"

	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/pagination"
	"taskhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const invalidDataMessage = "The given data was invalid."

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var cerr *service.ConflictError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, response.ValidationError(http.StatusUnprocessableEntity, verr.Message, verr.Fields))
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, cerr.Message))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}

// bindJSON decodes the body into req, writing a 422 or 400 response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if fields, ok := bindingFields(err); ok {
			c.JSON(http.StatusUnprocessableEntity, response.ValidationError(http.StatusUnprocessableEntity, invalidDataMessage, fields))
			return false
		}
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

// pathID parses the :id route parameter, answering 404 when it is not a UUID.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, what+" not found"))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID reads an optional UUID query parameter; malformed values are ignored.
func queryUUID(c *gin.Context, key string) *uuid.UUID {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// queryBool reads an optional boolean query parameter accepting 1/0 and true/false.
func queryBool(c *gin.Context, key string) *bool {
	var v bool
	switch c.Query(key) {
	case "1", "true":
		v = true
	case "0", "false":
		v = false
	default:
		return nil
	}
	return &v
}

// listOptions reads search, sort and page parameters shared by list endpoints.
func listOptions(c *gin.Context, defaultLimit int) (repository.ListOptions, pagination.Params) {
	p := pagination.Parse(c, defaultLimit)
	order := c.Query("sort_order")
	if order == "" {
		order = c.Query("sort_direction")
	}
	return repository.ListOptions{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: order,
		Limit:     p.Limit,
		Offset:    p.Offset,
	}, p
}
