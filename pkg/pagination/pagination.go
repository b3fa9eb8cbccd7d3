package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts page and per_page (or limit) from the query string,
// falling back to defaultLimit when neither is given.
func Parse(c *gin.Context, defaultLimit int) Params {
	if defaultLimit < MinLimit {
		defaultLimit = DefaultLimit
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	raw := c.Query("per_page")
	if raw == "" {
		raw = c.Query("limit")
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		limit = defaultLimit
	}

	return New(page, limit)
}

// New clamps page and limit into range.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Page is a paginated list response.
type Page[T any] struct {
	Items       []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// NewPage wraps items with the metadata the client paginates with.
func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	last := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	if last < 1 {
		last = 1
	}
	return Page[T]{
		Items:       items,
		CurrentPage: p.Page,
		PerPage:     p.Limit,
		Total:       total,
		LastPage:    last,
	}
}
