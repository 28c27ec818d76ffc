package pagination

import (
	"math"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Metadata describes the page returned alongside a list
type Metadata struct {
	TotalCount  int  `json:"totalCount"`
	PageSize    int  `json:"pageSize"`
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasPrevious bool `json:"hasPrevious"`
	HasNext     bool `json:"hasNext"`
}

// GetPaginationParams extracts page and pageSize from the query, clamped to valid values
func GetPaginationParams(c *fiber.Ctx) (page int, pageSize int) {
	page = c.QueryInt("page", 1)
	pageSize = c.QueryInt("pageSize", DefaultPageSize)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Calculate computes the metadata for totalCount items
func Calculate(totalCount, page, pageSize int) Metadata {
	totalPages := int(math.Ceil(float64(totalCount) / float64(pageSize)))

	currentPage := page
	if currentPage > totalPages && totalPages > 0 {
		currentPage = totalPages
	}

	meta := Metadata{
		TotalCount:  totalCount,
		PageSize:    pageSize,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
	}
	if totalCount > 0 {
		meta.HasPrevious = currentPage > 1
		meta.HasNext = currentPage < totalPages
	}
	return meta
}

// Slice returns the requested page of items. Pages past the end clamp to the last page.
func Slice[T any](items []T, page, pageSize int) ([]T, Metadata) {
	meta := Calculate(len(items), page, pageSize)
	start := (meta.CurrentPage - 1) * pageSize
	if start < 0 || start >= len(items) {
		return []T{}, meta
	}
	end := min(start+pageSize, len(items))
	return items[start:end], meta
}
