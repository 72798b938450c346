package common

import (
	"net/url"

	"github.com/samber/lo"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ParsePagination extracts page and limit query parameters. A missing or invalid limit
// yields defaultPerPage; limits above maxPerPage are clamped when maxPerPage is positive.
func ParsePagination(values url.Values, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = max(AtoiDefault(values.Get("page"), 1), 1)
	perPage = AtoiDefault(values.Get("limit"), defaultPerPage)
	if perPage < 0 {
		perPage = defaultPerPage
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// Paginate returns the requested page of items. A non-positive perPage returns every
// item as a single page.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	total := len(items)
	if perPage <= 0 {
		return items, Pagination{Page: 1, PerPage: total, TotalItems: total, TotalPages: 1}
	}
	page = max(page, 1)
	meta := Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	offset := (page - 1) * perPage
	if offset >= total {
		return []T{}, meta
	}
	return lo.Subset(items, offset, uint(perPage)), meta
}
