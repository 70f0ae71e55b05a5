package handlers

import (
	"context"
	"net/http"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/middleware"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/gin-gonic/gin"
)

type ContestHandler struct {
	Service *services.ContestService
}

func NewContestHandler(s *services.ContestService) *ContestHandler {
	return &ContestHandler{Service: s}
}

// ownerGuard lets the request through only when the contest belongs to the
// authenticated user.
type ownerGuard interface {
	OwnerOf(ctx context.Context, contestID string) (string, error)
}

func authorizeContest(c *gin.Context, g ownerGuard, contestID string) bool {
	owner, err := g.OwnerOf(c.Request.Context(), contestID)
	if err != nil {
		_ = c.Error(err)
		return false
	}
	if owner != middleware.CurrentUserID(c) {
		_ = c.Error(apperrors.ErrForbidden.WithMessage("Contest belongs to another user"))
		return false
	}
	return true
}

// Start handles POST /contests/start
func (h *ContestHandler) Start(c *gin.Context) {
	var in services.CreateContestInput
	if !bindJSON(c, &in, true) {
		return
	}
	contest, err := h.Service.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, contest)
}

// Active handles GET /contests/active
func (h *ContestHandler) Active(c *gin.Context) {
	contest, err := h.Service.GetActive(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// History handles GET /contests/history/:userId
func (h *ContestHandler) History(c *gin.Context) {
	limit, ok := queryInt(c, "limit", services.DefaultHistoryLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	contests, err := h.Service.History(c.Request.Context(), c.Param("userId"), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contests": contests})
}

// Get handles GET /contests/:id
func (h *ContestHandler) Get(c *gin.Context) {
	contest, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, contest)
}

// StartProblem handles POST /contests/:id/start-problem/:problemId
func (h *ContestHandler) StartProblem(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	cp, err := h.Service.StartProblem(c.Request.Context(), contestID, c.Param("problemId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

// Submit handles POST /contests/:id/submit
func (h *ContestHandler) Submit(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	var in services.SubmitInput
	if !bindJSON(c, &in, false) {
		return
	}
	cp, err := h.Service.Submit(c.Request.Context(), contestID, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, services.SubmitOutcome{
		ContestID:        contestID,
		ProblemID:        cp.ProblemID,
		Status:           string(cp.Status),
		TimeTakenSeconds: cp.TimeTakenSeconds,
		Message:          "Problem submitted successfully",
	})
}

// SubmitAll handles POST /contests/:id/submit-all
func (h *ContestHandler) SubmitAll(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	var req struct {
		Submissions []services.SubmitInput `json:"submissions"`
	}
	if !bindJSON(c, &req, false) {
		return
	}
	if len(req.Submissions) == 0 {
		_ = c.Error(apperrors.BadRequest("submissions must not be empty"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": h.Service.SubmitAll(c.Request.Context(), contestID, req.Submissions)})
}

// Skip handles POST /contests/:id/skip/:problemId
func (h *ContestHandler) Skip(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	cp, err := h.Service.Skip(c.Request.Context(), contestID, c.Param("problemId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

// End handles POST /contests/:id/end
func (h *ContestHandler) End(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	result, err := h.Service.End(c.Request.Context(), contestID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Abandon handles POST /contests/:id/abandon
func (h *ContestHandler) Abandon(c *gin.Context) {
	contestID := c.Param("id")
	if !authorizeContest(c, h.Service, contestID) {
		return
	}
	contest, err := h.Service.Abandon(c.Request.Context(), contestID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contest abandoned", "contest": contest})
}
