package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

func adaInput() RegisterInput {
	return RegisterInput{
		FullName:  "  ada   lovelace ",
		Username:  " Ada ",
		Email:     "ADA@Example.com",
		TeacherID: "T-001",
		Password:  "analytical",
	}
}

func TestRegisterNormalizesAndHidesSecrets(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	assert.Equal(t, "ada", profile.Username)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada Lovelace", profile.FullName)
	assert.NotEmpty(t, profile.ID)

	raw, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "refreshToken")
	assert.NotContains(t, string(raw), "analytical")

	stored, err := e.store.FindByID(e.ctx, "teachers", profile.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "analytical", stored["passwordHash"])
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing username", func(in *RegisterInput) { in.Username = " " }},
		{"missing teacher id", func(in *RegisterInput) { in.TeacherID = "" }},
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := adaInput()
			tt.mutate(&in)
			_, err := e.auth.Register(e.ctx, in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestRegisterConflictPrecedence(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	// every identifier collides: username is reported
	_, err = e.auth.Register(e.ctx, adaInput())
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Username already exists", err.Error())

	in := adaInput()
	in.Username = "grace"
	for i := 0; i < 2; i++ {
		_, err = e.auth.Register(e.ctx, in)
		assert.Equal(t, "Email already exists", err.Error())
	}

	in.Email = "grace@example.com"
	_, err = e.auth.Register(e.ctx, in)
	assert.Equal(t, "Teacher ID already exists", err.Error())
}

func TestRegisterResolvesSubjects(t *testing.T) {
	e := newEnv(t)
	course, err := e.courses.Create(e.ctx, map[string]any{"courseCode": "BCA", "courseName": "Computer Applications", "courseDuration": float64(3)})
	require.NoError(t, err)
	subject, err := e.subjects.Create(e.ctx, map[string]any{
		"subjectCode": "CS101", "subjectName": "Programming", "subjectCredit": float64(4), "semester": float64(1), "course": course.ID(),
	})
	require.NoError(t, err)

	in := adaInput()
	in.Subjects = []string{subject.ID(), subject.ID()}
	profile, err := e.auth.Register(e.ctx, in)
	require.NoError(t, err)
	require.Len(t, profile.Subjects, 1)
	assert.Equal(t, models.SubjectRef{ID: subject.ID(), SubjectCode: "CS101", SubjectName: "Programming"}, profile.Subjects[0])

	in = adaInput()
	in.Username, in.Email, in.TeacherID = "bob", "bob@example.com", "T-2"
	in.Subjects = []string{"missing"}
	_, err = e.auth.Register(e.ctx, in)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRegisterWithAvatar(t *testing.T) {
	e := newEnv(t)
	in := adaInput()
	in.Avatar = fileHeader(t, "avatar", "me.png", pngHead)

	profile, err := e.auth.Register(e.ctx, in)
	require.NoError(t, err)
	assert.Contains(t, profile.AvatarURL, "https://cdn.test/avatars/")
	assert.Empty(t, e.stagedFiles(t))
}

func TestRegisterAvatarFailureDegrades(t *testing.T) {
	e := newEnv(t)
	e.objects.fail = true
	in := adaInput()
	in.Avatar = fileHeader(t, "avatar", "me.png", pngHead)

	profile, err := e.auth.Register(e.ctx, in)
	require.NoError(t, err)
	assert.Empty(t, profile.AvatarURL)
	assert.Empty(t, e.stagedFiles(t), "staging copy removed after failed upload")
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	session, err := e.auth.Login(e.ctx, LoginInput{Email: "ada@example.com", Password: "analytical"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "ada", session.Teacher.Username)

	raw, err := json.Marshal(session.Teacher)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "passwordHash")

	tests := []struct {
		name  string
		input LoginInput
		kind  apperr.Kind
	}{
		{"no identifier", LoginInput{Password: "analytical"}, apperr.KindValidation},
		{"no password", LoginInput{Username: "ada"}, apperr.KindValidation},
		{"unknown user", LoginInput{Username: "grace", Password: "analytical"}, apperr.KindNotFound},
		{"wrong password", LoginInput{Username: "ADA", Password: "difference"}, apperr.KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Login(e.ctx, tt.input)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestRefreshRotationInvalidatesPredecessor(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)
	r0 := login.RefreshToken

	first, err := e.auth.Refresh(e.ctx, r0)
	require.NoError(t, err)
	r1 := first.RefreshToken
	assert.NotEqual(t, r0, r1)

	_, err = e.auth.Refresh(e.ctx, r0)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	second, err := e.auth.Refresh(e.ctx, r1)
	require.NoError(t, err)
	assert.NotEqual(t, r1, second.RefreshToken)
}

func TestRefreshRejects(t *testing.T) {
	e := newEnv(t)
	for _, token := range []string{"", "garbage"} {
		_, err := e.auth.Refresh(e.ctx, token)
		assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	}

	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	// access tokens are signed with the other key
	_, err = e.auth.Refresh(e.ctx, login.AccessToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestSecondLoginEndsFirstSession(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	first, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)
	_, err = e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	_, err = e.auth.Refresh(e.ctx, first.RefreshToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.auth.Refresh(e.ctx, login.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestLogoutIsIdempotent(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(e.ctx, profile.ID))
	require.NoError(t, e.auth.Logout(e.ctx, profile.ID))

	_, err = e.auth.Refresh(e.ctx, login.RefreshToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	err = e.auth.ChangePassword(e.ctx, profile.ID, "wrong-password", "engine-two")
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	err = e.auth.ChangePassword(e.ctx, profile.ID, "analytical", "analytical")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, e.auth.ChangePassword(e.ctx, profile.ID, "analytical", "engine-two"))

	_, err = e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	_, err = e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "engine-two"})
	require.NoError(t, err)
}

func TestChangePasswordKeepsRefreshToken(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	require.NoError(t, e.auth.ChangePassword(e.ctx, profile.ID, "analytical", "engine-two"))
	_, err = e.auth.Refresh(e.ctx, login.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	login, err := e.auth.Login(e.ctx, LoginInput{Username: "ada", Password: "analytical"})
	require.NoError(t, err)

	profile, err := e.auth.Authenticate(e.ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ada", profile.Username)

	for _, token := range []string{"", "garbage", login.RefreshToken} {
		_, err := e.auth.Authenticate(e.ctx, token)
		assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	}

	_, err = e.store.Delete(e.ctx, "teachers", profile.ID)
	require.NoError(t, err)
	_, err = e.auth.Authenticate(e.ctx, login.AccessToken)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	_, err = e.auth.UpdateProfile(e.ctx, profile.ID, UpdateProfileInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	name, contact := "augusta ada king", " 555-0100 "
	updated, err := e.auth.UpdateProfile(e.ctx, profile.ID, UpdateProfileInput{FullName: &name, ContactNumber: &contact})
	require.NoError(t, err)
	assert.Equal(t, "Augusta Ada King", updated.FullName)
	assert.Equal(t, "555-0100", updated.ContactNumber)
	assert.Equal(t, "ada", updated.Username)
}

func TestUpdateAvatar(t *testing.T) {
	e := newEnv(t)
	profile, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)

	_, err = e.auth.UpdateAvatar(e.ctx, profile.ID, fileHeader(t, "avatar", "x.txt", []byte("plain text")))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	updated, err := e.auth.UpdateAvatar(e.ctx, profile.ID, fileHeader(t, "avatar", "me.png", pngHead))
	require.NoError(t, err)
	assert.Contains(t, updated.AvatarURL, ".png")

	e.objects.fail = true
	_, err = e.auth.UpdateAvatar(e.ctx, profile.ID, fileHeader(t, "avatar", "me.png", pngHead))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, e.stagedFiles(t))
}

func TestListAndCountTeachers(t *testing.T) {
	e := newEnv(t)
	_, err := e.auth.Register(e.ctx, adaInput())
	require.NoError(t, err)
	in := adaInput()
	in.Username, in.Email, in.TeacherID, in.FullName = "alan", "alan@example.com", "T-2", "alan turing"
	_, err = e.auth.Register(e.ctx, in)
	require.NoError(t, err)

	list, err := e.auth.List(e.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ada Lovelace", list[0].FullName)

	n, err := e.auth.Count(e.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = e.auth.Get(e.ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// failingInsertStore rejects every insert with err.
type failingInsertStore struct {
	*repository.MemoryStore
	err error
}

func (f failingInsertStore) Insert(context.Context, string, models.Document) (models.Document, error) {
	return nil, f.err
}

func TestRegisterAvatarNotPublishedWhenInsertFails(t *testing.T) {
	for _, insertErr := range []error{errors.New("write failed"), repository.ErrDuplicate} {
		e := newEnv(t)
		store := failingInsertStore{MemoryStore: e.store, err: insertErr}
		auth := NewAuthService(repository.NewTeacherRepository(store), store, e.auth.tokens, e.avatars, nil, zerolog.Nop())

		in := adaInput()
		in.Avatar = fileHeader(t, "avatar", "me.png", pngHead)
		_, err := auth.Register(e.ctx, in)
		require.Error(t, err)

		assert.Empty(t, e.objects.uploaded, insertErr.Error())
		assert.Empty(t, e.stagedFiles(t), insertErr.Error())
	}
}
