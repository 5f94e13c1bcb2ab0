package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/gocatalog/internal/logger"
)

// RouterDeps carries everything the admin router serves.
type RouterDeps struct {
	Sources  SourceLister
	Reviews  ReviewLister
	Health   map[string]Pinger
	Registry *prometheus.Registry
	Debug    bool
}

// NewRouter builds the admin HTTP router.
func NewRouter(deps RouterDeps, log logger.Logger) *gin.Engine {
	if !deps.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	healthHandler := NewHealthHandler(deps.Health)
	router.GET("/health", healthHandler.Check)

	if deps.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			deps.Registry,
			promhttp.HandlerOpts{},
		)))
	}

	v1 := router.Group("/api/v1")

	sourceHandler := NewSourceHandler(deps.Sources, log)
	sources := v1.Group("/sources")
	sources.GET("", sourceHandler.List)
	sources.GET("/:id", sourceHandler.GetByID)

	reviewHandler := NewReviewHandler(deps.Reviews, log)
	v1.GET("/reviews", reviewHandler.List)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", c.Writer.Status()),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
