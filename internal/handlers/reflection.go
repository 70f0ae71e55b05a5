package handlers

import (
	"net/http"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	"github.com/gin-gonic/gin"
)

type ReflectionHandler struct {
	Service  *services.ReflectionService
	Contests *services.ContestService
}

func NewReflectionHandler(s *services.ReflectionService, contests *services.ContestService) *ReflectionHandler {
	return &ReflectionHandler{Service: s, Contests: contests}
}

// SaveEditorial handles POST /reflections/:contestId/problem/:problemId/editorial
func (h *ReflectionHandler) SaveEditorial(c *gin.Context) {
	contestID := c.Param("contestId")
	if !authorizeContest(c, h.Contests, contestID) {
		return
	}
	var req struct {
		EditorialText string `json:"editorial_text"`
		EditorialURL  string `json:"editorial_url"`
	}
	if !bindJSON(c, &req, false) {
		return
	}
	r, err := h.Service.SaveEditorial(c.Request.Context(), contestID, c.Param("problemId"), req.EditorialText, req.EditorialURL)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Editorial saved", "reflection": r})
}

// Generate handles POST /reflections/:contestId/problem/:problemId/generate
func (h *ReflectionHandler) Generate(c *gin.Context) {
	contestID := c.Param("contestId")
	if !authorizeContest(c, h.Contests, contestID) {
		return
	}
	r, status, err := h.Service.Generate(c.Request.Context(), contestID, c.Param("problemId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "reflection": r})
}

// GenerateAll handles POST /reflections/:contestId/generate-all
func (h *ReflectionHandler) GenerateAll(c *gin.Context) {
	contestID := c.Param("contestId")
	if !authorizeContest(c, h.Contests, contestID) {
		return
	}
	res, err := h.Service.GenerateAll(c.Request.Context(), contestID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ForContest handles GET /reflections/:contestId
func (h *ReflectionHandler) ForContest(c *gin.Context) {
	res, err := h.Service.ForContest(c.Request.Context(), c.Param("contestId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ForProblem handles GET /reflections/:contestId/problem/:problemId
func (h *ReflectionHandler) ForProblem(c *gin.Context) {
	res, err := h.Service.ForProblem(c.Request.Context(), c.Param("contestId"), c.Param("problemId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
