package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/gin-gonic/gin"
)

func RegisterCatalogRoutes(r gin.IRouter, h *handlers.CatalogHandler) {
	r.GET("/catalog/topics", h.Topics)
}
