// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/config"
	"github.com/meghashyamc/searchsync/db/jobqueue"
	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/services/index"
	"github.com/meghashyamc/searchsync/services/search"
	"github.com/meghashyamc/searchsync/validation"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name             string
	method           string
	endpoint         string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *gin.Engine {

	t.Setenv("ENV", "test")
	dir := t.TempDir()
	t.Setenv("KVDB_PATH", filepath.Join(dir, "searchsync.db"))
	t.Setenv("INDEX_PATH", filepath.Join(dir, "index"))

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	reg, err := registry.LoadDeclarations(cfg.GetDeclarationsPath())
	assert.NoError(err, "could not load entity declarations")

	kvDB, err := kvdb.New(testLogger, cfg.GetKVDBPath())
	assert.NoError(err, "could not create kv database")
	t.Cleanup(func() { kvDB.Close() })

	queue, err := jobqueue.New(testLogger, kvDB)
	assert.NoError(err, "could not create job queue")

	records, err := recorddb.New(testLogger, kvDB, queue, reg.EntityTypes())
	assert.NoError(err, "could not create record store")

	searchIndex, err := searchdb.New(testLogger, reg, cfg.GetIndexPath())
	assert.NoError(err, "could not create search index")
	t.Cleanup(func() { searchIndex.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	indexer := index.New(ctx, testLogger, reg, records, queue, searchIndex, kvDB, index.Options{RebuildBatchSize: cfg.GetRebuildBatchSize()})
	engine := search.New(testLogger, reg, searchIndex, records)

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")
	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupRecords(router, testLogger, reg, records, validator)
	SetupIndex(router, testLogger, indexer, searchIndex, validator, cfg.GetFlushEachJob())
	SetupSearch(router, testLogger, engine, validator)

	return router
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func runTestCases(t *testing.T, router *gin.Engine, testCases []testCase) {
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(router, assert, testCase.method, testCase.endpoint, testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			if testCase.expectedResponse != nil {
				var responseMap map[string]any
				assert.NoError(json.Unmarshal(responseBytes, &responseMap))
				assertSubset(assert, testCase.expectedResponse, responseMap, "response")
			}
		})
	}
}

// assertSubset checks that every key of expected is present in actual with an equal value. Nested maps are
// compared the same way, so a test only names the fields it cares about.
func assertSubset(assert *require.Assertions, expected map[string]any, actual map[string]any, path string) {
	for key, expectedValue := range expected {
		actualValue, ok := actual[key]
		assert.True(ok, fmt.Sprintf("expected field %s.%s not found", path, key))

		expectedMap, isMap := expectedValue.(map[string]any)
		if !isMap {
			assert.Equal(expectedValue, actualValue, fmt.Sprintf("field %s.%s mismatch", path, key))
			continue
		}
		actualMap, isMap := actualValue.(map[string]any)
		assert.True(isMap, fmt.Sprintf("field %s.%s should be an object", path, key))
		assertSubset(assert, expectedMap, actualMap, path+"."+key)
	}
}

// updateIndex requests an index update and waits for it to complete.
func updateIndex(assert *require.Assertions, router *gin.Engine) {
	w := makeTestHTTPRequest(router, assert, http.MethodPost, "/index/update", defaultTestRequestHeaders, nil, nil)
	assert.Equal(http.StatusAccepted, w.Code, w.Body.String())

	var updateResponse struct {
		Data UpdateIndexResponse `json:"data"`
	}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &updateResponse))

	waitForUpdate(assert, router, updateResponse.Data.ID)
}

func waitForUpdate(assert *require.Assertions, router *gin.Engine, requestID string) {
	maxWaitForIndexUpdate := 10 * time.Second
	for startTime := time.Now().UTC(); time.Since(startTime) < maxWaitForIndexUpdate; time.Sleep(50 * time.Millisecond) {
		w := makeTestHTTPRequest(router, assert, http.MethodGet, "/index/update/"+requestID, nil, nil, nil)
		assert.Equal(http.StatusOK, w.Code, w.Body.String())

		var statusResponse struct {
			Data index.UpdateStatus `json:"data"`
		}
		assert.NoError(json.Unmarshal(w.Body.Bytes(), &statusResponse))
		if statusResponse.Data.Status == index.StatusComplete {
			assert.Empty(statusResponse.Data.Errors)
			return
		}
		assert.NotEqual(index.StatusFailed, statusResponse.Data.Status, w.Body.String())
	}
	assert.Fail("timed out waiting for index update", requestID)
}
