package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/middleware"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/gin-gonic/gin"
)

// bindJSON decodes the request body into dst. An empty body leaves dst at
// its zero value when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		_ = c.Error(apperrors.BadRequest("Invalid request body: " + err.Error()))
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		_ = c.Error(apperrors.BadRequest(key + " must be a non-negative integer"))
		return 0, false
	}
	return v, true
}

// requireSelf rejects requests where the token user is not userID.
func requireSelf(c *gin.Context, userID string) bool {
	if middleware.CurrentUserID(c) != userID {
		_ = c.Error(apperrors.ErrForbidden.WithMessage("You can only modify your own account"))
		return false
	}
	return true
}
