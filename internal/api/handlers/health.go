package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
)

type HealthHandler struct {
	db        *database.DB
	cache     *services.CacheService
	predictor *predictor.Predictor
}

func NewHealthHandler(db *database.DB, cache *services.CacheService, p *predictor.Predictor) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		predictor: p,
	}
}

// GetHealth reports liveness plus database reachability. It returns 503 when
// the database cannot be pinged.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "ok", "ok", http.StatusOK
	if sqlDB, err := h.db.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status, database, code = "degraded", "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":        status,
		"time":          time.Now().UTC(),
		"service":       "fantasy-rugby",
		"database":      database,
		"cache_enabled": h.cache.Enabled(),
		"model_loaded":  h.predictor.HasModel(),
		"model_version": h.predictor.ModelVersion(),
	})
}
