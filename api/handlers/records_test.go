package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

var recordHandlerTestCases = []testCase{
	{
		name:           "SaveRecord",
		method:         http.MethodPut,
		endpoint:       "/records/Article/1",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"fields": map[string]any{"title": "Red car", "visible": true}},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"data": map[string]any{"id": float64(1), "entity_type": "Article"},
		},
	},
	{
		name:           "SaveRecordTwice",
		method:         http.MethodPut,
		endpoint:       "/records/Article/1",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"fields": map[string]any{"title": "Blue car", "visible": true}},
		expectedStatus: http.StatusOK,
	},
	{
		name:           "NoRequestBody",
		method:         http.MethodPut,
		endpoint:       "/records/Article/2",
		requestHeaders: defaultTestRequestHeaders,
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "NoFields",
		method:         http.MethodPut,
		endpoint:       "/records/Article/2",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"other": "value"},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "UnknownEntityType",
		method:         http.MethodPut,
		endpoint:       "/records/Nope/1",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"fields": map[string]any{"title": "x"}},
		expectedStatus: http.StatusNotFound,
	},
	{
		name:           "InvalidID",
		method:         http.MethodPut,
		endpoint:       "/records/Article/abc",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"fields": map[string]any{"title": "x"}},
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "ZeroID",
		method:         http.MethodPut,
		endpoint:       "/records/Article/0",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"fields": map[string]any{"title": "x"}},
		expectedStatus: http.StatusNotAcceptable,
	},
	{
		name:           "DestroyRecord",
		method:         http.MethodDelete,
		endpoint:       "/records/Article/1",
		expectedStatus: http.StatusNoContent,
	},
	{
		name:           "DestroyUnknownEntityType",
		method:         http.MethodDelete,
		endpoint:       "/records/Nope/1",
		expectedStatus: http.StatusNotFound,
	},
}

func TestHandleRecords(t *testing.T) {
	assert := require.New(t)
	router := setupTestServer(t, assert)

	runTestCases(t, router, recordHandlerTestCases)
}
