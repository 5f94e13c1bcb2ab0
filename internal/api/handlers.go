// Package api exposes the admin HTTP surface: health, metrics, and
// read-only views over sources and the manual-review queue.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gocatalog/internal/database"
	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

const defaultReviewPageSize = 50

// SourceLister reads configured catalog sources.
type SourceLister interface {
	List(ctx context.Context) ([]domain.Source, error)
	GetByID(ctx context.Context, id string) (*domain.Source, error)
}

// ReviewLister reads the manual-review queue.
type ReviewLister interface {
	List(ctx context.Context, limit int) ([]domain.ReviewItem, error)
}

// Pinger reports whether a backing component is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SourceHandler serves the read-only source endpoints.
type SourceHandler struct {
	sources SourceLister
	log     logger.Logger
}

// NewSourceHandler creates a source handler.
func NewSourceHandler(sources SourceLister, log logger.Logger) *SourceHandler {
	return &SourceHandler{sources: sources, log: log}
}

// List handles GET /api/v1/sources.
func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

// GetByID handles GET /api/v1/sources/:id.
func (h *SourceHandler) GetByID(c *gin.Context) {
	src, err := h.sources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
			return
		}
		h.log.Error("failed to get source",
			logger.String("id", c.Param("id")),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get source"})
		return
	}

	c.JSON(http.StatusOK, src)
}

// ReviewHandler serves the manual-review queue endpoints.
type ReviewHandler struct {
	reviews ReviewLister
	log     logger.Logger
}

// NewReviewHandler creates a review handler.
func NewReviewHandler(reviews ReviewLister, log logger.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log}
}

// List handles GET /api/v1/reviews.
func (h *ReviewHandler) List(c *gin.Context) {
	limit := defaultReviewPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	items, err := h.reviews.List(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("failed to list review items", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list review items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": items, "count": len(items)})
}

// HealthHandler reports the reachability of backing components.
type HealthHandler struct {
	components map[string]Pinger
}

// NewHealthHandler creates a health handler over named components.
func NewHealthHandler(components map[string]Pinger) *HealthHandler {
	return &HealthHandler{components: components}
}

// Check handles GET /health. Returns 503 when any component is down.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	components := make(map[string]string, len(h.components))

	for name, p := range h.components {
		if err := p.Ping(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "components": components})
}
