package repository

import (
	"context"
	"errors"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

const CollectionTeachers = "teachers"

const (
	teacherFieldUsername     = "username"
	teacherFieldEmail        = "email"
	teacherFieldTeacherID    = "teacherId"
	teacherFieldPassword     = "passwordHash"
	teacherFieldRefreshToken = "refreshToken"
	teacherFieldAvatar       = "avatarUrl"
)

// ErrTokenSuperseded is returned when a refresh token was replaced before the rotation landed.
var ErrTokenSuperseded = errors.New("refresh token superseded")

type TeacherRepository struct {
	store Store
}

func NewTeacherRepository(store Store) *TeacherRepository {
	return &TeacherRepository{store: store}
}

func (r *TeacherRepository) EnsureIndexes(ctx context.Context) error {
	for _, field := range []string{teacherFieldUsername, teacherFieldEmail, teacherFieldTeacherID} {
		idx := Index{Name: field + "_key", Fields: []string{field}, Unique: true}
		if err := r.store.EnsureIndex(ctx, CollectionTeachers, idx); err != nil {
			return err
		}
	}
	return nil
}

func (r *TeacherRepository) Create(ctx context.Context, teacher models.Teacher) (models.Teacher, error) {
	doc, err := r.store.Insert(ctx, CollectionTeachers, teacherDocument(teacher))
	if err != nil {
		return models.Teacher{}, err
	}
	return toTeacher(doc)
}

func (r *TeacherRepository) GetByID(ctx context.Context, id string) (models.Teacher, error) {
	doc, err := r.store.FindByID(ctx, CollectionTeachers, id)
	if err != nil {
		return models.Teacher{}, err
	}
	return toTeacher(doc)
}

func (r *TeacherRepository) FindByUsername(ctx context.Context, username string) (models.Teacher, error) {
	return r.findOne(ctx, Match{teacherFieldUsername: username})
}

func (r *TeacherRepository) FindByEmail(ctx context.Context, email string) (models.Teacher, error) {
	return r.findOne(ctx, Match{teacherFieldEmail: email})
}

func (r *TeacherRepository) FindByTeacherID(ctx context.Context, teacherID string) (models.Teacher, error) {
	return r.findOne(ctx, Match{teacherFieldTeacherID: teacherID})
}

func (r *TeacherRepository) findOne(ctx context.Context, match Match) (models.Teacher, error) {
	doc, err := r.store.FindOne(ctx, CollectionTeachers, match)
	if err != nil {
		return models.Teacher{}, err
	}
	return toTeacher(doc)
}

// SetRefreshToken overwrites the stored refresh token; an empty token clears it.
func (r *TeacherRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.store.Update(ctx, CollectionTeachers, id, nil, models.Document{teacherFieldRefreshToken: optional(token)})
	return err
}

// RotateRefreshToken replaces presented with next only if presented is still the stored value.
func (r *TeacherRepository) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	_, err := r.store.Update(ctx, CollectionTeachers, id,
		Match{teacherFieldRefreshToken: presented},
		models.Document{teacherFieldRefreshToken: next},
	)
	if errors.Is(err, ErrNotFound) {
		return ErrTokenSuperseded
	}
	return err
}

func (r *TeacherRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.store.Update(ctx, CollectionTeachers, id, nil, models.Document{teacherFieldPassword: passwordHash})
	return err
}

func (r *TeacherRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) (models.Teacher, error) {
	return r.UpdateProfile(ctx, id, models.Document{teacherFieldAvatar: optional(avatarURL)})
}

// UpdateProfile merges non-credential fields. Credential keys in set are ignored.
func (r *TeacherRepository) UpdateProfile(ctx context.Context, id string, set models.Document) (models.Teacher, error) {
	safe := models.Document{}
	for k, v := range set {
		if k == teacherFieldPassword || k == teacherFieldRefreshToken {
			continue
		}
		safe[k] = v
	}
	doc, err := r.store.Update(ctx, CollectionTeachers, id, nil, safe)
	if err != nil {
		return models.Teacher{}, err
	}
	return toTeacher(doc)
}

func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	docs, err := r.store.Find(ctx, CollectionTeachers, FindOptions{SortBy: "fullName"})
	if err != nil {
		return nil, err
	}
	teachers := make([]models.Teacher, 0, len(docs))
	for _, doc := range docs {
		t, err := toTeacher(doc)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, nil
}

func (r *TeacherRepository) Count(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, CollectionTeachers)
}

func teacherDocument(t models.Teacher) models.Document {
	doc := models.Document{
		models.FieldID:        t.ID,
		teacherFieldTeacherID: t.TeacherID,
		teacherFieldUsername:  t.Username,
		teacherFieldEmail:     t.Email,
		"fullName":            t.FullName,
		teacherFieldPassword:  t.PasswordHash,
	}
	if t.ContactNumber != "" {
		doc["contactNumber"] = t.ContactNumber
	}
	if t.AvatarURL != "" {
		doc[teacherFieldAvatar] = t.AvatarURL
	}
	if len(t.Subjects) > 0 {
		doc["subjects"] = append([]string(nil), t.Subjects...)
	}
	if t.RefreshToken != "" {
		doc[teacherFieldRefreshToken] = t.RefreshToken
	}
	return doc
}

func toTeacher(doc models.Document) (models.Teacher, error) {
	var t models.Teacher
	if err := decodeDocument(doc, &t); err != nil {
		return models.Teacher{}, err
	}
	return t, nil
}

// optional turns an empty string into a field removal.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
