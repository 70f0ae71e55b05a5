package handlers

import (
	"net/http"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB    *gorm.DB
	Cache *database.Cache
}

func NewHealthHandler(db *gorm.DB, cache *database.Cache) *HealthHandler {
	return &HealthHandler{DB: db, Cache: cache}
}

// Health handles GET /health. The cache is optional, so a cache failure
// degrades the report without failing it.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok", "cache": "disabled"}

	if err := database.Ping(h.DB); err != nil {
		logger.Error().Err(err).Msg("Health check: database unreachable")
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["database"] = "error"
	}
	if h.Cache.Enabled() {
		body["cache"] = "ok"
		if err := h.Cache.Ping(c.Request.Context()); err != nil {
			logger.Warn().Err(err).Msg("Health check: cache unreachable")
			body["cache"] = "error"
		}
	}
	c.JSON(status, body)
}
