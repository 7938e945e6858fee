package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	currentTeacherKey = "current_teacher"
)

// Authenticator resolves an access token to the teacher it names.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.TeacherProfile, error)
}

type teacherCtxKey struct{}

func WithTeacher(ctx context.Context, t models.TeacherProfile) context.Context {
	return context.WithValue(ctx, teacherCtxKey{}, t)
}

func TeacherFrom(ctx context.Context) (models.TeacherProfile, bool) {
	t, ok := ctx.Value(teacherCtxKey{}).(models.TeacherProfile)
	return t, ok
}

// CurrentTeacher returns the caller attached by Auth.
func CurrentTeacher(c *gin.Context) (models.TeacherProfile, bool) {
	if v, ok := c.Get(currentTeacherKey); ok {
		if t, ok := v.(models.TeacherProfile); ok {
			return t, true
		}
	}
	return TeacherFrom(c.Request.Context())
}

// Auth gates a route on a valid access token. The cookie wins over the bearer header.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			_ = c.Error(apperr.Auth("Unauthorized request"))
			c.Abort()
			return
		}

		teacher, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithTeacher(c.Request.Context(), teacher))
		c.Set(currentTeacherKey, teacher)

		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if v, err := c.Cookie(AccessCookie); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
