package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

// settingsView reports whether a record exists. Defaults carry no id or timestamps.
type settingsView struct {
	Configured           bool                        `json:"configured"`
	ID                   string                      `json:"id,omitempty"`
	AppName              string                      `json:"appName"`
	Theme                models.Theme                `json:"theme"`
	NotificationSettings models.NotificationSettings `json:"notificationSettings"`
	CreatedAt            *time.Time                  `json:"createdAt,omitempty"`
	UpdatedAt            *time.Time                  `json:"updatedAt,omitempty"`
}

func newSettingsView(s models.Settings, configured bool) settingsView {
	view := settingsView{
		Configured:           configured,
		AppName:              s.AppName,
		Theme:                s.Theme,
		NotificationSettings: s.NotificationSettings,
	}
	if configured {
		view.ID = s.ID
		view.CreatedAt = &s.CreatedAt
		view.UpdatedAt = &s.UpdatedAt
	}
	return view
}

func (h HandlerSet) GetSettings(c *gin.Context) {
	settings, configured, err := h.settings.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	message := "Settings fetched successfully"
	if !configured {
		message = "Settings are not configured, showing defaults"
	}
	respond(c, http.StatusOK, newSettingsView(settings, configured), message)
}

func (h HandlerSet) WriteSettings(c *gin.Context) {
	input, err := bindObject(c)
	if err != nil {
		fail(c, err)
		return
	}
	settings, err := h.settings.Write(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, newSettingsView(settings, true), "Settings updated successfully")
}
