package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Stack      string   `json:"stack,omitempty"`
}

// NewErrorBody renders err. Internal causes are hidden behind a generic message
// and the stack is only attached when withStack is set.
func NewErrorBody(err error, withStack bool) ErrorBody {
	kind := apperr.KindOf(err)
	body := ErrorBody{
		StatusCode: kind.Status(),
		Message:    "Internal server error",
		Errors:     []string{},
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		if len(appErr.Errors) > 0 {
			body.Errors = appErr.Errors
		}
	}
	if withStack {
		body.Stack = apperr.Stack(err)
	}
	return body
}

// Errors writes the last error recorded on the context as the failure envelope.
func Errors(log zerolog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		body := NewErrorBody(err, !production)
		if body.StatusCode >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("request_id", c.Writer.Header().Get(requestIDHeader)).
				Msg("request failed")
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(body.StatusCode, body)
	}
}
