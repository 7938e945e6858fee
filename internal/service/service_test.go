package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/security"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d}

type fakeObjectStore struct {
	mu       sync.Mutex
	fail     bool
	uploaded []string
	seen     []string
}

func (f *fakeObjectStore) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStore) Upload(_ context.Context, key, localPath, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, localPath)
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	if f.fail {
		return "", errors.New("object store unavailable")
	}
	f.uploaded = append(f.uploaded, key)
	return "https://cdn.test/" + key, nil
}

type env struct {
	ctx      context.Context
	store    *repository.MemoryStore
	objects  *fakeObjectStore
	staging  string
	avatars  *AvatarService
	auth     *AuthService
	courses  *resource.Engine
	subjects *resource.Engine
	students *resource.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	teachers := repository.NewTeacherRepository(store)
	require.NoError(t, teachers.EnsureIndexes(ctx))

	e := &env{
		ctx:     ctx,
		store:   store,
		objects: &fakeObjectStore{},
		staging: filepath.Join(t.TempDir(), "staging"),
	}
	e.avatars = NewAvatarService(e.objects, config.UploadConfig{StagingDir: e.staging, MaxAvatarBytes: 1024}, zerolog.Nop())
	tokens := security.NewTokens("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour)
	e.auth = NewAuthService(teachers, store, tokens, e.avatars, nil, zerolog.Nop())

	e.courses = resource.NewEngine(store, nil, resource.Courses)
	e.subjects = resource.NewEngine(store, nil, resource.Subjects)
	e.students = resource.NewEngine(store, nil, resource.Students)
	for _, engine := range []*resource.Engine{e.courses, e.subjects, e.students} {
		require.NoError(t, engine.EnsureIndexes(ctx))
	}
	return e
}

func (e *env) stagedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.staging)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// fileHeader builds a multipart file header the way a parsed request carries it.
func fileHeader(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}
