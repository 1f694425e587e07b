package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sheetgrader/pkg/middleware/cors"
	"github.com/noah-isme/sheetgrader/pkg/middleware/requestid"

	pkgLogger "github.com/noah-isme/sheetgrader/pkg/logger"
)

// NewRouter assembles the kiosk status server.
func NewRouter(status *StatusHandler, logger *zap.Logger, allowedOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())
	router.Use(pkgLogger.GinMiddleware(logger))
	router.Use(cors.New(allowedOrigins))

	router.GET("/healthz", status.Health)
	router.GET("/readyz", status.Ready)
	router.GET("/metrics", status.Prometheus)

	api := router.Group("/api/v1")
	api.GET("/status", status.Status)

	return router
}
