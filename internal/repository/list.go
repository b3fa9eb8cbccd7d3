package repository

import (
	"strings"

	"gorm.io/gorm"
)

// ListOptions carries the search, sort and page window shared by list endpoints.
type ListOptions struct {
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// orderBy applies opts.SortBy when it is one of allowed, otherwise fallback.
// Direction defaults to ascending.
func orderBy(db *gorm.DB, opts ListOptions, allowed []string, fallback string) *gorm.DB {
	column := fallback
	for _, a := range allowed {
		if opts.SortBy == a {
			column = a
			break
		}
	}
	if column == "" {
		return db
	}

	dir := "asc"
	if strings.EqualFold(opts.SortOrder, "desc") {
		dir = "desc"
	}
	return db.Order(column + " " + dir)
}

func page(db *gorm.DB, opts ListOptions) *gorm.DB {
	if opts.Limit > 0 {
		db = db.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		db = db.Offset(opts.Offset)
	}
	return db
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
