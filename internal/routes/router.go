package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type RouterOptions struct {
	JWTSecret       string
	FrontendURL     string
	MaintenanceMode bool
	// Limits overrides the per-IP rate limiters; nil uses DefaultLimits.
	Limits *Limits
}

// NewRouter builds the engine with the full middleware chain, /health,
// /metrics and every /api resource.
func NewRouter(opts RouterOptions, db *gorm.DB, h Handlers, health *handlers.HealthHandler) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(opts.FrontendURL))

	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limits := DefaultLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}

	api := r.Group("/api")
	// Optional auth only tags public reads with the caller for request logs.
	api.Use(limits.General, middleware.OptionalAuthMiddleware(opts.JWTSecret), middleware.MaintenanceMode(opts.MaintenanceMode))
	RegisterAPIRoutes(api, h, middleware.AuthMiddleware(opts.JWTSecret, db), limits)
	return r
}
