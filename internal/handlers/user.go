package handlers

import (
	"net/http"
	"strconv"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Service *services.UserService
}

func NewUserHandler(s *services.UserService) *UserHandler {
	return &UserHandler{Service: s}
}

// Create handles POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var in services.CreateUserInput
	if !bindJSON(c, &in, false) {
		return
	}
	created, err := h.Service.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List handles GET /users
func (h *UserHandler) List(c *gin.Context) {
	limit, ok := queryInt(c, "limit", services.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	users, err := h.Service.List(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Leaderboard handles GET /users/leaderboard
func (h *UserHandler) Leaderboard(c *gin.Context) {
	limit, ok := queryInt(c, "limit", services.DefaultLeaderboardLimit)
	if !ok {
		return
	}
	board, err := h.Service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}

// GetByUsername handles GET /users/by-username/:username
func (h *UserHandler) GetByUsername(c *gin.Context) {
	user, err := h.Service.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Get handles GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update handles PATCH /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	var in services.UpdateUserInput
	if !bindJSON(c, &in, false) {
		return
	}
	user, err := h.Service.Update(c.Request.Context(), id, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !requireSelf(c, id) {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TopicRatings handles GET /users/:id/topic-ratings
func (h *UserHandler) TopicRatings(c *gin.Context) {
	ratings, err := h.Service.TopicRatings(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic_ratings": ratings})
}

// WeakTopics handles GET /users/:id/weak-topics?active_only=true
func (h *UserHandler) WeakTopics(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("active_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperrors.BadRequest("active_only must be true or false"))
			return
		}
		activeOnly = v
	}
	topics, err := h.Service.WeakTopics(c.Request.Context(), c.Param("id"), activeOnly)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"weak_topics": topics})
}

// Statistics handles GET /users/:id/statistics
func (h *UserHandler) Statistics(c *gin.Context) {
	stats, err := h.Service.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
