package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/services/index"
	"github.com/stretchr/testify/require"
)

var paginationTestCases = []struct {
	name                 string
	total, limit, offset int
	expected             Pagination
}{
	{
		name: "FirstPage", total: 45, limit: 20, offset: 0,
		expected: Pagination{CurrentPage: 1, PageSize: 20, TotalPages: 3, HasNextPage: true, TotalResults: 45},
	},
	{
		name: "LastPage", total: 45, limit: 20, offset: 40,
		expected: Pagination{CurrentPage: 3, PageSize: 20, TotalPages: 3, HasPrevPage: true, TotalResults: 45},
	},
	{
		name: "Empty", total: 0, limit: 20, offset: 0,
		expected: Pagination{CurrentPage: 1, PageSize: 20, TotalPages: 1},
	},
	{
		name: "Unbounded", total: 7, limit: 0, offset: 3,
		expected: Pagination{CurrentPage: 1, PageSize: 7, TotalPages: 1, TotalResults: 7},
	},
}

func TestCalculatePagination(t *testing.T) {
	for _, tc := range paginationTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(tc.expected, calculatePagination(tc.total, tc.limit, tc.offset))
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert := require.New(t)

	statuses := map[error]int{
		fmt.Errorf("bad sort: %w", registry.ErrConfiguration):   http.StatusBadRequest,
		fmt.Errorf("open: %w", searchdb.ErrNotInitialized):      http.StatusServiceUnavailable,
		fmt.Errorf("writer: %w", searchdb.ErrConcurrentWriter):  http.StatusConflict,
		index.ErrUpdateInProgress:                               http.StatusConflict,
		fmt.Errorf("status: %w", &kvdb.NotFoundError{Key: "x"}): http.StatusNotFound,
		errors.New("disk on fire"):                              http.StatusInternalServerError,
	}
	for err, expected := range statuses {
		assert.Equal(expected, statusForError(err), err.Error())
	}
}
