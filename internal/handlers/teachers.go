package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/middleware"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/service"
)

type registerRequest struct {
	FullName      string   `json:"fullName" form:"fullName"`
	Username      string   `json:"username" form:"username"`
	Email         string   `json:"email" form:"email"`
	TeacherID     string   `json:"teacherId" form:"teacherId"`
	Password      string   `json:"password" form:"password"`
	ContactNumber string   `json:"contactNumber" form:"contactNumber"`
	Subjects      []string `json:"subjects" form:"subjects"`
}

func (h HandlerSet) RegisterTeacher(c *gin.Context) {
	var req registerRequest
	input := service.RegisterInput{}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			fail(c, apperr.Validation("Invalid form data"))
			return
		}
		if len(req.Subjects) == 0 {
			req.Subjects = c.PostFormArray("subjects[]")
		}
		if header, err := c.FormFile("avatar"); err == nil {
			input.Avatar = header
		} else if !errors.Is(err, http.ErrMissingFile) {
			fail(c, apperr.Validation("Invalid avatar upload"))
			return
		}
	} else if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	input.FullName = req.FullName
	input.Username = req.Username
	input.Email = req.Email
	input.TeacherID = req.TeacherID
	input.Password = req.Password
	input.ContactNumber = req.ContactNumber
	input.Subjects = req.Subjects

	teacher, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, teacher, "Teacher registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.setAuthCookies(c, session)
	respond(c, http.StatusOK, session, "Teacher logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshCookie)
	if token == "" {
		var req refreshRequest
		if err := bindJSON(c, &req); err != nil {
			fail(c, err)
			return
		}
		token = req.RefreshToken
	}

	session, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		return
	}
	h.setAuthCookies(c, session)
	respond(c, http.StatusOK, session, "Access token refreshed")
}

func (h HandlerSet) Logout(c *gin.Context) {
	teacher, _ := middleware.CurrentTeacher(c)
	if err := h.auth.Logout(c.Request.Context(), teacher.ID); err != nil {
		fail(c, err)
		return
	}
	h.clearAuthCookies(c)
	respond(c, http.StatusOK, gin.H{}, "Teacher logged out")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	teacher, _ := middleware.CurrentTeacher(c)
	if err := h.auth.ChangePassword(c.Request.Context(), teacher.ID, req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

func (h HandlerSet) CurrentTeacher(c *gin.Context) {
	teacher, _ := middleware.CurrentTeacher(c)
	respond(c, http.StatusOK, teacher, "Current teacher fetched successfully")
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	teacher, _ := middleware.CurrentTeacher(c)
	updated, err := h.auth.UpdateProfile(c.Request.Context(), teacher.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, updated, "Profile updated successfully")
}

func (h HandlerSet) UpdateAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		fail(c, apperr.Validation("Avatar file is required"))
		return
	}
	teacher, _ := middleware.CurrentTeacher(c)
	updated, err := h.auth.UpdateAvatar(c.Request.Context(), teacher.ID, header)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, updated, "Avatar updated successfully")
}

func (h HandlerSet) ListTeachers(c *gin.Context) {
	teachers, err := h.auth.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, teachers, "Teachers fetched successfully")
}

func (h HandlerSet) CountTeachers(c *gin.Context) {
	n, err := h.auth.Count(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, n, "Teacher count fetched successfully")
}

func (h HandlerSet) GetTeacher(c *gin.Context) {
	teacher, err := h.auth.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, teacher, "Teacher fetched successfully")
}

func (h HandlerSet) setAuthCookies(c *gin.Context, session service.Session) {
	sec := h.cfg.Security
	c.SetSameSite(sameSite(sec.CookieSameSite))
	c.SetCookie(middleware.AccessCookie, session.AccessToken, int(sec.AccessTTL.Seconds()), "/", "", sec.CookieSecure, true)
	c.SetCookie(middleware.RefreshCookie, session.RefreshToken, int(sec.RefreshTTL.Seconds()), "/", "", sec.CookieSecure, true)
}

func (h HandlerSet) clearAuthCookies(c *gin.Context) {
	sec := h.cfg.Security
	c.SetSameSite(sameSite(sec.CookieSameSite))
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", sec.CookieSecure, true)
	c.SetCookie(middleware.RefreshCookie, "", -1, "/", "", sec.CookieSecure, true)
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
