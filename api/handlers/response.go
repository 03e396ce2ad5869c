package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/services/index"
)

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

// statusForError maps search and indexing errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, registry.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, searchdb.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, searchdb.ErrConcurrentWriter), errors.Is(err, index.ErrUpdateInProgress):
		return http.StatusConflict
	case errors.Is(err, kvdb.ErrNotFound):
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	TotalResults int  `json:"total_results"`
}

// calculatePagination describes the page at offset. A limit of zero or less is a single unbounded page.
func calculatePagination(total, limit, offset int) Pagination {
	if limit <= 0 {
		limit = max(total, 1)
		offset = 0
	}
	pageSize := limit
	currentPage := (offset / limit) + 1
	totalPages := (total + pageSize - 1) / pageSize

	if totalPages == 0 {
		totalPages = 1
	}

	return Pagination{
		CurrentPage:  currentPage,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		HasNextPage:  currentPage < totalPages,
		HasPrevPage:  currentPage > 1,
		TotalResults: total,
	}
}
