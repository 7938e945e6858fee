package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
)

func Recovery(log zerolog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.Writer.Header().Get(requestIDHeader)).
					Msg("panic recovered")
				err := apperr.Internal("panic", fmt.Errorf("%v", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorBody(err, !production))
			}
		}()
		c.Next()
	}
}
