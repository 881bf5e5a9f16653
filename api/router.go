package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/churnsearch/api/handlers"
	"github.com/meghashyamc/churnsearch/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRoutes(router *gin.Engine, s *server) {
	router.GET("/health", health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.SetupSuspectList(router, s.logger, s.engine, s.defaultIndex, s.validator)
	handlers.SetupSearchStream(router, s.logger, s.strategies, s.validator)
	handlers.SetupIngest(router, s.logger, s.ingest, s.validator)
	handlers.SetupSettings(router, s.logger, s.settings, s.searchdb, s.validator)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(requestIDMiddleware())
	router.Use(metrics.Middleware())
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
