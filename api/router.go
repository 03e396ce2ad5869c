package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/searchsync/api/handlers"
	"github.com/meghashyamc/searchsync/config"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/metrics"
	"github.com/meghashyamc/searchsync/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, cfg *config.Config, deps Dependencies, validator *validation.Validator) {
	router.GET("/health", health())
	router.GET("/metrics", metrics.Handler())

	handlers.SetupRecords(router, logger, deps.Registry, deps.Records, validator)
	handlers.SetupIndex(router, logger, deps.Indexer, deps.Index, validator, cfg.GetFlushEachJob())
	handlers.SetupSearch(router, logger, deps.Engine, validator)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())

	return router
}
