// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/meghashyamc/churnsearch/db/kvdb"
	"github.com/meghashyamc/churnsearch/db/searchdb"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/engine"
	"github.com/meghashyamc/churnsearch/services/ingest"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/services/settings"
	"github.com/meghashyamc/churnsearch/services/strategy"
	"github.com/meghashyamc/churnsearch/validation"
	"github.com/stretchr/testify/require"
)

const testIndex = "customer_churn_model"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

type testServer struct {
	router   *gin.Engine
	searchDB *searchdb.BleveDB
	kvDB     *kvdb.BoltDB
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

// setupTestServer wires every handler against fresh stores holding the
// testdata records in testIndex.
func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	t.Setenv("ENV", "test")
	storagePath := t.TempDir()
	t.Setenv("STORAGE_PATH", storagePath)
	t.Setenv("KVDB_PATH", filepath.Join(storagePath, "meta.db"))

	cfg, err := config.Load()
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	searchDB, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")
	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	records, err := ingest.LoadRecords(filepath.Join("testdata", "records.yaml"))
	assert.NoError(err, "could not load test records")
	documents := make([]searchdb.Document, len(records))
	for i, record := range records {
		documents[i] = searchdb.Document{ID: record.ID, Version: 1, Record: record}
	}
	assert.NoError(searchDB.BuildIndex(testIndex, documents), "could not index test records")

	ctx, cancel := context.WithCancel(context.Background())

	searchEngine := engine.New(ctx, testLogger, searchDB, kvDB, engine.OptionsFromConfig(cfg))
	strategies := search.NewRegistry()
	assert.NoError(strategies.Register(search.DefaultStrategy, searchEngine))
	adapter, err := strategy.New(testLogger, strategies)
	assert.NoError(err)
	assert.NoError(strategies.Register(strategy.Name, adapter))

	settingsService := settings.New(testLogger, kvDB, cfg)
	ingestService := ingest.New(ctx, testLogger, searchDB, kvDB)
	defaultIndex := func() string { return settingsService.ResolveDefaultIndex(searchDB.HasIndex).Index }

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupSuspectList(router, testLogger, searchEngine, defaultIndex, validator)
	SetupSearchStream(router, testLogger, strategies, validator)
	SetupIngest(router, testLogger, ingestService, validator)
	SetupSettings(router, testLogger, settingsService, searchDB, validator)

	t.Cleanup(func() {
		cancel()
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, searchDB: searchDB, kvDB: kvDB}
}

// makeTestHTTPRequest sends requestBody as is when it is a []byte and as JSON otherwise.
func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBody any, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var body []byte
	var req *http.Request
	switch requestBody := requestBody.(type) {
	case nil:
	case []byte:
		body = requestBody
	default:
		body, err = json.Marshal(requestBody)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(body))

	if len(body) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(body))
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

func mustGetAbsolutePath(relativePath string) string {
	absPath, err := filepath.Abs(relativePath)
	if err != nil {
		panic(err)
	}
	return absPath
}

func runTestCases(t *testing.T, server *testServer, method string, endpoint string, testCases []testCase) {
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, method, endpoint, testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())
			if testCase.expectedResponse != nil {
				var responseMap map[string]any
				assert.NoError(json.Unmarshal(w.Body.Bytes(), &responseMap))
				assert.Equal(testCase.expectedResponse, responseMap)
			}
		})
	}
}
