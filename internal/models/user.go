package models

import "time"

// Teacher is the credentialed identity record. It is never serialized directly;
// responses use TeacherProfile.
type Teacher struct {
	ID            string    `mapstructure:"id"`
	TeacherID     string    `mapstructure:"teacherId"`
	Username      string    `mapstructure:"username"`
	Email         string    `mapstructure:"email"`
	FullName      string    `mapstructure:"fullName"`
	ContactNumber string    `mapstructure:"contactNumber"`
	AvatarURL     string    `mapstructure:"avatarUrl"`
	Subjects      []string  `mapstructure:"subjects"`
	PasswordHash  string    `mapstructure:"passwordHash"`
	RefreshToken  string    `mapstructure:"refreshToken"`
	CreatedAt     time.Time `mapstructure:"createdAt"`
	UpdatedAt     time.Time `mapstructure:"updatedAt"`
}

type SubjectRef struct {
	ID          string `json:"id"`
	SubjectCode string `json:"subjectCode,omitempty"`
	SubjectName string `json:"subjectName,omitempty"`
}

// TeacherProfile is the read projection of a Teacher. It has no secret fields.
type TeacherProfile struct {
	ID            string       `json:"id"`
	TeacherID     string       `json:"teacherId"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	FullName      string       `json:"fullName"`
	ContactNumber string       `json:"contactNumber,omitempty"`
	AvatarURL     string       `json:"avatarUrl,omitempty"`
	Subjects      []SubjectRef `json:"subjects"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}
