package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Digital-Creators-Team/reward-roulette-module/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery creates a recovery middleware that recovers from panics
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID, _ := c.Get(TraceIDKey)
				traceIDStr, _ := traceID.(string)

				logger.Error().
					Str("trace_id", traceIDStr).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Interface("error", err).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
					StatusCode: http.StatusInternalServerError,
					IsSuccess:  false,
					Error: types.ErrorDetail{
						Timestamp:    time.Now().Format(time.RFC3339),
						Path:         c.Request.URL.Path,
						ErrorMessage: "Internal server error",
					},
				})
			}
		}()

		c.Next()
	}
}
