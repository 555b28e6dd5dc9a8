// Package http exposes the reconciliation service over a gin HTTP API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NERRecon/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NERRecon/internal/interfaces/http/handlers"
	"github.com/turtacn/NERRecon/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware settings required to
// build the route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	ReconcileHandler *handlers.ReconcileHandler
	EntityHandler    *handlers.EntityHandler
	HealthHandler    *handlers.HealthHandler

	// CORS is applied when set.
	CORS    *middleware.CORSConfig
	Logging middleware.LoggingConfig
	// MaxBodySize caps request bodies when positive.
	MaxBodySize int64

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter builds the route tree: probes and metrics at the root, the API
// under /v1.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.MaxBodySize > 0 {
		limit := cfg.MaxBodySize
		r.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	v1 := r.Group("/v1")
	if cfg.ReconcileHandler != nil {
		cfg.ReconcileHandler.RegisterRoutes(v1)
	}
	if cfg.EntityHandler != nil {
		cfg.EntityHandler.RegisterRoutes(v1)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: "COMMON_005", Message: "resource not found"})
	})
	return r
}

//Personal.AI order the ending
