package routes

import (
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/gin-gonic/gin"
)

func RegisterContestRoutes(r gin.IRouter, h *handlers.ContestHandler, auth gin.HandlerFunc, limits Limits) {
	contests := r.Group("/contests")
	{
		// Public reads
		contests.GET("/history/:userId", h.History)

		protected := contests.Group("")
		protected.Use(auth)
		{
			protected.POST("/start", h.Start)
			protected.GET("/active", h.Active)
			protected.POST("/:id/start-problem/:problemId", h.StartProblem)
			protected.POST("/:id/submit", limits.Submit, h.Submit)
			protected.POST("/:id/submit-all", limits.Submit, h.SubmitAll)
			protected.POST("/:id/skip/:problemId", h.Skip)
			protected.POST("/:id/end", h.End)
			protected.POST("/:id/abandon", h.Abandon)
		}

		contests.GET("/:id", h.Get)
	}
}
