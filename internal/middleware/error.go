package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

func errorBody(appErr *errors.AppError) gin.H {
	return gin.H{
		"error": appErr.Message,
		"kind":  appErr.Kind,
	}
}

// abortWith stops the chain with the JSON form of appErr.
func abortWith(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.Code, errorBody(appErr))
}

// ErrorHandlerMiddleware handles errors and panics
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Str("path", c.Request.URL.Path).
					Msg("Panic recovered")

				abortWith(c, errors.ErrInternalServer)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := errors.As(err); ok {
			if appErr.Code >= http.StatusInternalServerError {
				logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
			}
			c.JSON(appErr.Code, errorBody(appErr))
			return
		}

		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled request error")
		c.JSON(http.StatusInternalServerError, errorBody(errors.ErrInternalServer))
	}
}
