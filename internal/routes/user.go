package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/gin-gonic/gin"
)

func RegisterUserRoutes(r gin.IRouter, h *handlers.UserHandler, auth gin.HandlerFunc, limits Limits) {
	users := r.Group("/users")
	{
		users.POST("", limits.Signup, h.Create)
		users.GET("", h.List)

		// Static paths before the :id wildcard
		users.GET("/leaderboard", h.Leaderboard)
		users.GET("/by-username/:username", h.GetByUsername)

		users.GET("/:id", h.Get)
		users.PATCH("/:id", auth, h.Update)
		users.DELETE("/:id", auth, h.Delete)
		users.GET("/:id/topic-ratings", h.TopicRatings)
		users.GET("/:id/weak-topics", h.WeakTopics)
		users.GET("/:id/statistics", h.Statistics)
	}
}
