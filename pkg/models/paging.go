package models

import (
	"errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ErrNotFound is returned by repositories when the requested record does not exist
var ErrNotFound = errors.New("not found")

// PagedResult holds a single page of a listing
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
}

// TotalPages returns the number of pages for the result's page size
func (p *PagedResult[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// Offset converts a 1-based page into a row offset
func Offset(page, pageSize int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}
