package models

import "time"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type NotificationSettings struct {
	Email bool `json:"email" mapstructure:"email"`
	SMS   bool `json:"sms" mapstructure:"sms"`
	Push  bool `json:"push" mapstructure:"push"`
}

// Settings is the application-wide singleton configuration record.
type Settings struct {
	ID                   string               `json:"id" mapstructure:"id"`
	AppName              string               `json:"appName" mapstructure:"appName"`
	Theme                Theme                `json:"theme" mapstructure:"theme"`
	NotificationSettings NotificationSettings `json:"notificationSettings" mapstructure:"notificationSettings"`
	CreatedAt            time.Time            `json:"createdAt" mapstructure:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt" mapstructure:"updatedAt"`
}

const DefaultAppName = "Department Management System"

func DefaultSettings() Settings {
	return Settings{
		AppName: DefaultAppName,
		Theme:   ThemeLight,
		NotificationSettings: NotificationSettings{
			Email: true,
		},
	}
}
