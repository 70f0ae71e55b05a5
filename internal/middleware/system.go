package middleware

import (
	"net/http"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/gin-gonic/gin"
)

// MaintenanceMode rejects every mutating request with 503 while enabled.
// Reads stay available so users can still look at history and reflections.
func MaintenanceMode(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		abortWith(c, errors.NewAppError(http.StatusServiceUnavailable, errors.KindMaintenance,
			"The platform is currently under maintenance. Please try again later."))
	}
}
