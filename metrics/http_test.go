package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/api/v1/ingest/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/error", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	assert := require.New(t)
	router := newTestRouter()

	for _, id := range []string{"a", "b"} {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/ingest/"+id, http.NoBody))
		assert.Equal(http.StatusOK, recorder.Code)
	}

	requests := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/ingest/:id", "200"))
	assert.GreaterOrEqual(requests, 2.0, "ids should collapse into the route pattern")
	assert.NotZero(testutil.CollectAndCount(httpRequestDuration))
}

func TestMiddlewareRecordsStatusAndUnknownRoutes(t *testing.T) {
	assert := require.New(t)
	router := newTestRouter()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/error", http.NoBody))
	assert.Equal(http.StatusInternalServerError, recorder.Code)
	assert.GreaterOrEqual(testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/error", "500")), 1.0)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))
	assert.Equal(http.StatusNotFound, recorder.Code)
	assert.GreaterOrEqual(testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unknown", "404")), 1.0)
}
