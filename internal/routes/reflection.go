package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/gin-gonic/gin"
)

// RegisterReflectionRoutes mounts the post-contest reflection endpoints.
// :problemId accepts either the contest problem id or the catalog id.
func RegisterReflectionRoutes(r gin.IRouter, h *handlers.ReflectionHandler, auth gin.HandlerFunc, limits Limits) {
	reflections := r.Group("/reflections")
	{
		reflections.GET("/:contestId", h.ForContest)
		reflections.GET("/:contestId/problem/:problemId", h.ForProblem)

		reflections.POST("/:contestId/problem/:problemId/editorial", auth, h.SaveEditorial)
		reflections.POST("/:contestId/problem/:problemId/generate", auth, limits.Reflection, h.Generate)
		reflections.POST("/:contestId/generate-all", auth, limits.Reflection, h.GenerateAll)
	}
}
