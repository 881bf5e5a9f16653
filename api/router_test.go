package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meghashyamc/churnsearch/config"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T, assert *require.Assertions) *server {
	t.Setenv("ENV", "test")
	storagePath := t.TempDir()
	t.Setenv("STORAGE_PATH", storagePath)
	t.Setenv("KVDB_PATH", filepath.Join(storagePath, "meta.db"))

	cfg, err := config.Load()
	assert.NoError(err)

	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	s := &server{cfg: cfg, logger: slog.New(slog.NewTextHandler(os.Stderr, nil))}
	assert.NoError(s.setupDependencies(ctx))
	s.setupRouter()

	t.Cleanup(func() {
		cancel()
		s.close()
	})
	return s
}

func serve(s *server, method string, target string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	assert := require.New(t)
	s := setupTestRouter(t, assert)

	w := serve(s, http.MethodGet, "/health", nil)
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("OK", w.Body.String())
}

func TestRequestID(t *testing.T) {
	assert := require.New(t)
	s := setupTestRouter(t, assert)

	w := serve(s, http.MethodGet, "/health", nil)
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(err, "a request id is assigned")

	given := uuid.New().String()
	w = serve(s, http.MethodGet, "/health", http.Header{HeaderRequestID: []string{given}})
	assert.Equal(given, w.Header().Get(HeaderRequestID))

	w = serve(s, http.MethodGet, "/health", http.Header{HeaderRequestID: []string{"not-a-uuid"}})
	assert.NotEqual("not-a-uuid", w.Header().Get(HeaderRequestID))
}

func TestCORSPreflight(t *testing.T) {
	assert := require.New(t)
	s := setupTestRouter(t, assert)

	w := serve(s, http.MethodOptions, "/api/v1/suspect_list", nil)
	assert.Equal(http.StatusNoContent, w.Code)
	assert.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestMetricsEndpoint(t *testing.T) {
	assert := require.New(t)
	s := setupTestRouter(t, assert)

	serve(s, http.MethodGet, "/health", nil)
	w := serve(s, http.MethodGet, "/metrics", nil)
	assert.Equal(http.StatusOK, w.Code)
	assert.True(strings.Contains(w.Body.String(), `churnsearch_http_requests_total{method="GET",path="/health",status="200"}`))
}

func TestStrategiesAreRegistered(t *testing.T) {
	assert := require.New(t)
	s := setupTestRouter(t, assert)

	assert.Equal([]string{"es", "myStrategy"}, s.strategies.Names())
	assert.Equal("customer_churn_model", s.cfg.GetDefaultIndexPattern())
	assert.Equal("churn_predictions", s.defaultIndex(), "the setting's index does not exist yet")
}
