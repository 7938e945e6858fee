package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/middleware"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/security"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/service"
)

type response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zerolog.Nop()

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     240 * time.Hour,
			CookieSecure:   true,
			CookieSameSite: "strict",
		},
	}

	store := repository.NewMemoryStore()
	teachers := repository.NewTeacherRepository(store)
	require.NoError(t, teachers.EnsureIndexes(ctx))
	tokens := security.NewTokens("access-secret", "refresh-secret", cfg.Security.AccessTTL, cfg.Security.RefreshTTL)
	auth := service.NewAuthService(teachers, store, tokens, nil, nil, log)

	engines := make([]*resource.Engine, 0, len(resource.All()))
	var students *resource.Engine
	for _, schema := range resource.All() {
		engine := resource.NewEngine(store, nil, schema)
		require.NoError(t, engine.EnsureIndexes(ctx))
		if schema.Name == resource.CollectionStudents {
			students = engine
		}
		engines = append(engines, engine)
	}

	router := gin.New()
	router.Use(middleware.Errors(log, false), middleware.Recovery(log, false))
	NewHandlerSet(Deps{
		Log:       log,
		Config:    cfg,
		Store:     store,
		Auth:      auth,
		Settings:  service.NewSettingsService(repository.NewSettingsRepository(store), log),
		Imports:   service.NewImportService(students, store, log),
		Resources: engines,
	}).Register(router.Group("/api"))

	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, response) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var registration = map[string]any{
	"fullName":  "ada lovelace",
	"username":  "Ada",
	"email":     "ADA@example.com",
	"teacherId": "T-1",
	"password":  "correct horse",
}

func TestTeacherSessionFlow(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodPost, "/api/v1/teachers/register", registration)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.NotContains(t, string(resp.Data), "passwordHash")
	assert.NotContains(t, string(resp.Data), "correct horse")

	rec, resp = api.do(http.MethodPost, "/api/v1/teachers/register", registration)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already exists", resp.Message)
	assert.False(t, resp.Success)

	rec, resp = api.do(http.MethodPost, "/api/v1/teachers/login", map[string]any{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieNamed(rec, middleware.AccessCookie)
	refresh := cookieNamed(rec, middleware.RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	var session struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &session))
	assert.Equal(t, access.Value, session.AccessToken)
	assert.Equal(t, refresh.Value, session.RefreshToken)

	rec, resp = api.do(http.MethodGet, "/api/v1/teachers/current", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"username":"ada"`)
	assert.Contains(t, string(resp.Data), `"fullName":"Ada Lovelace"`)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/refresh-token", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := cookieNamed(rec, middleware.RefreshCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	rec, resp = api.do(http.MethodPost, "/api/v1/teachers/refresh-token", map[string]any{"refreshToken": refresh.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/logout", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookieNamed(rec, middleware.AccessCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/logout", nil, access)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/refresh-token", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/v1/teachers/logout", "/api/v1/teachers/change-password"} {
		rec, resp := api.do(http.MethodPost, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	rec, _ := api.do(http.MethodGet, "/api/v1/teachers/current", nil,
		&http.Cookie{Name: middleware.AccessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec, _ := api.do(http.MethodPost, "/api/v1/teachers/register", registration)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/login", map[string]any{"username": "ada", "password": "correct horse"})
	access := cookieNamed(rec, middleware.AccessCookie)
	require.NotNil(t, access)

	rec, resp := api.do(http.MethodPost, "/api/v1/teachers/change-password",
		map[string]any{"oldPassword": "wrong one", "newPassword": "battery staple"}, access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid old password", resp.Message)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/change-password",
		map[string]any{"oldPassword": "correct horse", "newPassword": "battery staple"}, access)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/v1/teachers/login", map[string]any{"username": "ada", "password": "battery staple"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResourceEndpoints(t *testing.T) {
	api := newTestAPI(t)
	course := map[string]any{"courseCode": "bca", "courseName": "computer applications", "courseDuration": 3}

	rec, resp := api.do(http.MethodPost, "/api/v1/courses", course)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "BCA", created["courseCode"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	rec, resp = api.do(http.MethodPost, "/api/v1/courses", course)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Course with this course code already exists", resp.Message)

	rec, resp = api.do(http.MethodPost, "/api/v1/courses", map[string]any{"courseCode": "MCA"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, resp.Errors)

	rec, resp = api.do(http.MethodGet, "/api/v1/courses/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "1", string(resp.Data))

	rec, resp = api.do(http.MethodGet, "/api/v1/courses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 1)

	rec, _ = api.do(http.MethodPatch, "/api/v1/courses/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = api.do(http.MethodPatch, "/api/v1/courses/"+id, map[string]any{"courseDuration": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(resp.Data), `"courseDuration":4`)

	rec, resp = api.do(http.MethodGet, "/api/v1/courses/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Course not found", resp.Message)

	rec, _ = api.do(http.MethodDelete, "/api/v1/courses/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(http.MethodGet, "/api/v1/courses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &defaults))
	assert.Equal(t, false, defaults["configured"])
	assert.Equal(t, "light", defaults["theme"])
	assert.NotContains(t, defaults, "id")
	assert.NotContains(t, defaults, "createdAt")
	assert.NotContains(t, defaults, "updatedAt")

	rec, resp = api.do(http.MethodPatch, "/api/v1/settings", map[string]any{"theme": "dark", "notificationSettings": map[string]any{"sms": true}})
	require.Equal(t, http.StatusOK, rec.Code)
	var settings struct {
		Configured    bool            `json:"configured"`
		Theme         string          `json:"theme"`
		Notifications map[string]bool `json:"notificationSettings"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &settings))
	assert.True(t, settings.Configured)
	assert.Equal(t, "dark", settings.Theme)
	assert.Equal(t, map[string]bool{"email": true, "sms": true, "push": false}, settings.Notifications)

	rec, _ = api.do(http.MethodPut, "/api/v1/settings", map[string]any{"theme": "sepia"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = api.do(http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &stored))
	assert.Equal(t, true, stored["configured"])
	assert.Equal(t, "app", stored["id"])
	assert.Equal(t, "dark", stored["theme"])
	assert.NotEmpty(t, stored["createdAt"])
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Database)
	assert.Equal(t, "disabled", body.Cache)
}

func TestImportStudentsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec, _ := api.do(http.MethodPost, "/api/v1/courses",
		map[string]any{"courseCode": "BCA", "courseName": "Computer Applications", "courseDuration": 3})
	require.Equal(t, http.StatusCreated, rec.Code)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"EnrollmentNumber", "FullName", "Email", "ContactNumber", "Course", "Semester"},
		{"en-1", "grace hopper", "grace@example.com", "555-0101", "bca", "1"},
		{"en-1", "grace again", "other@example.com", "555-0102", "bca", "1"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	workbook, err := book.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/students/import", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var report service.ImportReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 3, report.Skipped[0].Row)

	rec, _ = api.do(http.MethodPost, "/api/v1/students/import", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
