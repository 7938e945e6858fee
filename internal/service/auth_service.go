package service

import (
	"context"
	"errors"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/cache"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/security"
)

const MinPasswordLength = 8

var (
	validate   = validator.New()
	whitespace = regexp.MustCompile(`\s+`)
)

type AuthService struct {
	teachers *repository.TeacherRepository
	store    repository.Store
	tokens   *security.Tokens
	avatars  *AvatarService
	counts   cache.Counts
	log      zerolog.Logger
}

func NewAuthService(
	teachers *repository.TeacherRepository,
	store repository.Store,
	tokens *security.Tokens,
	avatars *AvatarService,
	counts cache.Counts,
	log zerolog.Logger,
) *AuthService {
	if counts == nil {
		counts = cache.NoCounts{}
	}
	return &AuthService{
		teachers: teachers,
		store:    store,
		tokens:   tokens,
		avatars:  avatars,
		counts:   counts,
		log:      log,
	}
}

type RegisterInput struct {
	FullName      string
	Username      string
	Email         string
	TeacherID     string
	Password      string
	ContactNumber string
	Subjects      []string
	Avatar        *multipart.FileHeader
}

// Session is what login and refresh hand back to the client.
type Session struct {
	Teacher      models.TeacherProfile `json:"user"`
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.TeacherProfile, error) {
	input.FullName = titleCase(input.FullName)
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.TeacherID = strings.TrimSpace(input.TeacherID)
	input.ContactNumber = strings.TrimSpace(input.ContactNumber)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"fullName", input.FullName},
		{"username", input.Username},
		{"email", input.Email},
		{"teacherId", input.TeacherID},
		{"password", strings.TrimSpace(input.Password)},
	} {
		if f.value == "" {
			missing = append(missing, f.name+" is required")
		}
	}
	if len(missing) > 0 {
		return models.TeacherProfile{}, apperr.Validation("All fields are required", missing...)
	}
	if err := validate.Var(input.Email, "email"); err != nil {
		return models.TeacherProfile{}, apperr.Validation("Email must be a valid email address")
	}
	if err := checkPassword(input.Password); err != nil {
		return models.TeacherProfile{}, err
	}
	subjects, err := s.verifySubjects(ctx, input.Subjects)
	if err != nil {
		return models.TeacherProfile{}, err
	}
	if err := s.checkConflicts(ctx, input.Username, input.Email, input.TeacherID); err != nil {
		return models.TeacherProfile{}, err
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.TeacherProfile{}, apperr.Internal("failed to hash password", err)
	}

	teacher := models.Teacher{
		TeacherID:     input.TeacherID,
		Username:      input.Username,
		Email:         input.Email,
		FullName:      input.FullName,
		ContactNumber: input.ContactNumber,
		Subjects:      subjects,
		PasswordHash:  hash,
	}
	// the avatar is checked here and published only after the teacher is stored
	var avatar *StagedAvatar
	if input.Avatar != nil && s.avatars != nil {
		staged, err := s.avatars.Prepare(input.Avatar)
		switch {
		case apperr.Is(err, apperr.KindValidation):
			return models.TeacherProfile{}, err
		case err != nil:
			s.log.Warn().Err(err).Str("username", input.Username).Msg("avatar staging failed")
		default:
			avatar = &staged
			defer s.avatars.Discard(staged)
		}
	}

	created, err := s.teachers.Create(ctx, teacher)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if named := s.checkConflicts(ctx, input.Username, input.Email, input.TeacherID); named != nil {
				return models.TeacherProfile{}, named
			}
			return models.TeacherProfile{}, apperr.Conflict("Teacher already exists")
		}
		return models.TeacherProfile{}, apperr.Internal("failed to register teacher", err)
	}
	s.counts.Invalidate(ctx, repository.CollectionTeachers)
	s.log.Info().Str("teacher_id", created.ID).Str("username", created.Username).Msg("teacher registered")

	if avatar != nil {
		created = s.attachAvatar(ctx, created, *avatar)
	}

	return s.profile(ctx, created, newSubjectMemo())
}

// checkConflicts reports the first taken identifier in the order username, email, teacherId.
func (s *AuthService) checkConflicts(ctx context.Context, username, email, teacherID string) error {
	checks := []struct {
		find    func(context.Context, string) (models.Teacher, error)
		value   string
		message string
	}{
		{s.teachers.FindByUsername, username, "Username already exists"},
		{s.teachers.FindByEmail, email, "Email already exists"},
		{s.teachers.FindByTeacherID, teacherID, "Teacher ID already exists"},
	}
	for _, c := range checks {
		_, err := c.find(ctx, c.value)
		if err == nil {
			return apperr.Conflict(c.message)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return apperr.Internal("failed to check existing teacher", err)
		}
	}
	return nil
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (Session, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" && email == "" {
		return Session{}, apperr.Validation("Username or email is required")
	}
	if input.Password == "" {
		return Session{}, apperr.Validation("Password is required")
	}

	var (
		teacher models.Teacher
		err     error
	)
	if username != "" {
		teacher, err = s.teachers.FindByUsername(ctx, username)
	} else {
		teacher, err = s.teachers.FindByEmail(ctx, email)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.NotFound("Teacher does not exist")
		}
		return Session{}, apperr.Internal("failed to load teacher", err)
	}

	ok, err := security.VerifyPassword(input.Password, teacher.PasswordHash)
	if err != nil {
		return Session{}, apperr.Internal("failed to verify password", err)
	}
	if !ok {
		return Session{}, apperr.Auth("Invalid credentials")
	}

	pair, err := s.tokens.Issue(identityOf(teacher))
	if err != nil {
		return Session{}, apperr.Internal("failed to issue tokens", err)
	}
	// overwriting the stored token ends any earlier session of this teacher
	if err := s.teachers.SetRefreshToken(ctx, teacher.ID, pair.RefreshToken); err != nil {
		return Session{}, apperr.Internal("failed to store refresh token", err)
	}
	s.log.Info().Str("teacher_id", teacher.ID).Msg("teacher logged in")

	profile, err := s.profile(ctx, teacher, newSubjectMemo())
	if err != nil {
		return Session{}, err
	}
	return Session{Teacher: profile, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout clears the stored refresh token. Repeating it is not an error.
func (s *AuthService) Logout(ctx context.Context, teacherID string) error {
	err := s.teachers.SetRefreshToken(ctx, teacherID, "")
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal("failed to log out", err)
	}
	return nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token is
// retired atomically, so of two concurrent refreshes with one token only one succeeds.
func (s *AuthService) Refresh(ctx context.Context, presented string) (Session, error) {
	if presented == "" {
		return Session{}, apperr.Auth("Refresh token is required")
	}
	claims, err := s.tokens.ParseRefresh(presented)
	if err != nil {
		return Session{}, apperr.Auth("Invalid or expired refresh token")
	}

	teacher, err := s.teachers.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, apperr.Auth("Invalid refresh token")
		}
		return Session{}, apperr.Internal("failed to load teacher", err)
	}
	if teacher.RefreshToken != presented {
		return Session{}, apperr.Auth("Refresh token is expired or used")
	}

	pair, err := s.tokens.Issue(identityOf(teacher))
	if err != nil {
		return Session{}, apperr.Internal("failed to issue tokens", err)
	}
	if err := s.teachers.RotateRefreshToken(ctx, teacher.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, repository.ErrTokenSuperseded) {
			return Session{}, apperr.Auth("Refresh token is expired or used")
		}
		return Session{}, apperr.Internal("failed to rotate refresh token", err)
	}

	profile, err := s.profile(ctx, teacher, newSubjectMemo())
	if err != nil {
		return Session{}, err
	}
	return Session{Teacher: profile, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// ChangePassword replaces the password hash. The stored refresh token is kept.
func (s *AuthService) ChangePassword(ctx context.Context, teacherID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("Old and new passwords are required")
	}
	teacher, err := s.teachers.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Auth("Invalid access token")
		}
		return apperr.Internal("failed to load teacher", err)
	}

	ok, err := security.VerifyPassword(oldPassword, teacher.PasswordHash)
	if err != nil {
		return apperr.Internal("failed to verify password", err)
	}
	if !ok {
		return apperr.Auth("Invalid old password")
	}
	if newPassword == oldPassword {
		return apperr.Validation("New password must be different from the old password")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.teachers.UpdatePassword(ctx, teacherID, hash); err != nil {
		return apperr.Internal("failed to update password", err)
	}
	s.log.Info().Str("teacher_id", teacherID).Msg("password changed")
	return nil
}

// Authenticate resolves the teacher named by an access token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.TeacherProfile, error) {
	if accessToken == "" {
		return models.TeacherProfile{}, apperr.Auth("Unauthorized request")
	}
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return models.TeacherProfile{}, apperr.Auth("Invalid access token")
	}
	teacher, err := s.teachers.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TeacherProfile{}, apperr.Auth("Invalid access token")
		}
		return models.TeacherProfile{}, apperr.Internal("failed to load teacher", err)
	}
	return s.profile(ctx, teacher, newSubjectMemo())
}

func (s *AuthService) Get(ctx context.Context, id string) (models.TeacherProfile, error) {
	teacher, err := s.teachers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TeacherProfile{}, apperr.NotFound("Teacher not found")
		}
		return models.TeacherProfile{}, apperr.Internal("failed to load teacher", err)
	}
	return s.profile(ctx, teacher, newSubjectMemo())
}

func (s *AuthService) List(ctx context.Context) ([]models.TeacherProfile, error) {
	teachers, err := s.teachers.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list teachers", err)
	}
	memo := newSubjectMemo()
	out := make([]models.TeacherProfile, 0, len(teachers))
	for _, t := range teachers {
		p, err := s.profile(ctx, t, memo)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *AuthService) Count(ctx context.Context) (int64, error) {
	if n, ok := s.counts.Get(ctx, repository.CollectionTeachers); ok {
		return n, nil
	}
	n, err := s.teachers.Count(ctx)
	if err != nil {
		return 0, apperr.Internal("failed to count teachers", err)
	}
	s.counts.Set(ctx, repository.CollectionTeachers, n)
	return n, nil
}

type UpdateProfileInput struct {
	FullName      *string   `json:"fullName"`
	ContactNumber *string   `json:"contactNumber"`
	Subjects      *[]string `json:"subjects"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, teacherID string, input UpdateProfileInput) (models.TeacherProfile, error) {
	set := models.Document{}
	if input.FullName != nil {
		name := titleCase(*input.FullName)
		if name == "" {
			return models.TeacherProfile{}, apperr.Validation("Full name cannot be empty")
		}
		set["fullName"] = name
	}
	if input.ContactNumber != nil {
		if contact := strings.TrimSpace(*input.ContactNumber); contact != "" {
			set["contactNumber"] = contact
		} else {
			set["contactNumber"] = nil
		}
	}
	if input.Subjects != nil {
		subjects, err := s.verifySubjects(ctx, *input.Subjects)
		if err != nil {
			return models.TeacherProfile{}, err
		}
		if len(subjects) > 0 {
			set["subjects"] = subjects
		} else {
			set["subjects"] = nil
		}
	}
	if len(set) == 0 {
		return models.TeacherProfile{}, apperr.Validation("At least one field is required to update")
	}

	updated, err := s.teachers.UpdateProfile(ctx, teacherID, set)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TeacherProfile{}, apperr.NotFound("Teacher not found")
		}
		return models.TeacherProfile{}, apperr.Internal("failed to update profile", err)
	}
	return s.profile(ctx, updated, newSubjectMemo())
}

// UpdateAvatar replaces the avatar. Unlike registration, an upload failure is returned.
func (s *AuthService) UpdateAvatar(ctx context.Context, teacherID string, file *multipart.FileHeader) (models.TeacherProfile, error) {
	if s.avatars == nil {
		return models.TeacherProfile{}, apperr.Internal("avatar storage is not configured", nil)
	}
	url, err := s.avatars.UploadMultipart(ctx, file)
	if err != nil {
		return models.TeacherProfile{}, err
	}
	updated, err := s.teachers.UpdateAvatar(ctx, teacherID, url)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.TeacherProfile{}, apperr.NotFound("Teacher not found")
		}
		return models.TeacherProfile{}, apperr.Internal("failed to update avatar", err)
	}
	return s.profile(ctx, updated, newSubjectMemo())
}

// attachAvatar publishes a registration avatar. Failures leave the teacher without one.
func (s *AuthService) attachAvatar(ctx context.Context, teacher models.Teacher, staged StagedAvatar) models.Teacher {
	url, err := s.avatars.Publish(ctx, staged)
	if err != nil {
		s.log.Warn().Err(err).Str("teacher_id", teacher.ID).Msg("avatar upload failed")
		return teacher
	}
	updated, err := s.teachers.UpdateAvatar(ctx, teacher.ID, url)
	if err != nil {
		s.log.Warn().Err(err).Str("teacher_id", teacher.ID).Str("url", url).Msg("avatar not saved")
		return teacher
	}
	return updated
}

func (s *AuthService) verifySubjects(ctx context.Context, subjectIDs []string) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0, len(subjectIDs))
	for _, raw := range subjectIDs {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		if _, err := s.store.FindByID(ctx, resource.CollectionSubjects, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("Subject not found")
			}
			return nil, apperr.Internal("failed to look up subject", err)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

type subjectMemo map[string]models.SubjectRef

func newSubjectMemo() subjectMemo {
	return subjectMemo{}
}

// profile projects a teacher without its secrets, with subjects resolved.
func (s *AuthService) profile(ctx context.Context, t models.Teacher, memo subjectMemo) (models.TeacherProfile, error) {
	subjects := make([]models.SubjectRef, 0, len(t.Subjects))
	for _, id := range t.Subjects {
		ref, ok := memo[id]
		if !ok {
			ref = models.SubjectRef{ID: id}
			doc, err := s.store.FindByID(ctx, resource.CollectionSubjects, id)
			switch {
			case err == nil:
				ref.SubjectCode = doc.String("subjectCode")
				ref.SubjectName = doc.String("subjectName")
			case !errors.Is(err, repository.ErrNotFound):
				return models.TeacherProfile{}, apperr.Internal("failed to load subject", err)
			}
			memo[id] = ref
		}
		subjects = append(subjects, ref)
	}
	return models.TeacherProfile{
		ID:            t.ID,
		TeacherID:     t.TeacherID,
		Username:      t.Username,
		Email:         t.Email,
		FullName:      t.FullName,
		ContactNumber: t.ContactNumber,
		AvatarURL:     t.AvatarURL,
		Subjects:      subjects,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}, nil
}

func identityOf(t models.Teacher) security.Identity {
	return security.Identity{ID: t.ID, FullName: t.FullName, Username: t.Username, Email: t.Email}
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validationf("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > security.MaxPasswordBytes {
		return apperr.Validationf("Password must be at most %d bytes", security.MaxPasswordBytes)
	}
	return nil
}

func titleCase(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}
