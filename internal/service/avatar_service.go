package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/ids"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/media/sniffer"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/storage"
)

// StagingPattern names files written to the staging dir; the sweeper only touches these.
const StagingPattern = "avatar-*.upload"

// AvatarService moves uploaded avatars from a local staging file to object storage.
type AvatarService struct {
	store storage.ObjectStore
	cfg   config.UploadConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewAvatarService(store storage.ObjectStore, cfg config.UploadConfig, log zerolog.Logger) *AvatarService {
	return &AvatarService{store: store, cfg: cfg, log: log, now: time.Now}
}

// StagedAvatar is a checked image waiting in the staging dir.
type StagedAvatar struct {
	Path string
	Type sniffer.Result
}

// UploadMultipart stages the part and uploads it, returning the durable URL.
func (s *AvatarService) UploadMultipart(ctx context.Context, header *multipart.FileHeader) (string, error) {
	staged, err := s.Prepare(header)
	if err != nil {
		return "", err
	}
	return s.Publish(ctx, staged)
}

// Prepare stages the part and checks it is a supported image. Nothing reaches
// object storage until Publish; callers that give up must Discard.
func (s *AvatarService) Prepare(header *multipart.FileHeader) (StagedAvatar, error) {
	if header == nil {
		return StagedAvatar{}, apperr.Validation("Avatar file is required")
	}
	if s.cfg.MaxAvatarBytes > 0 && header.Size > s.cfg.MaxAvatarBytes {
		return StagedAvatar{}, s.tooLarge()
	}
	src, err := header.Open()
	if err != nil {
		return StagedAvatar{}, apperr.Internal("failed to read avatar", err)
	}
	defer src.Close()

	stagedPath, err := s.Stage(src)
	if err != nil {
		return StagedAvatar{}, err
	}
	if declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header)); declared != "" {
		s.log.Debug().Str("declared", declared).Str("file", header.Filename).Msg("avatar staged")
	}
	return s.inspect(stagedPath)
}

// Stage copies r into a new file in the staging dir.
func (s *AvatarService) Stage(r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.StagingDir, 0o750); err != nil {
		return "", apperr.Internal("failed to prepare staging dir", err)
	}
	f, err := os.CreateTemp(s.cfg.StagingDir, StagingPattern)
	if err != nil {
		return "", apperr.Internal("failed to stage avatar", err)
	}

	limit := s.cfg.MaxAvatarBytes
	var src io.Reader = r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		s.discard(f.Name())
		return "", apperr.Internal("failed to stage avatar", copyErr)
	}
	if limit > 0 && n > limit {
		s.discard(f.Name())
		return "", s.tooLarge()
	}
	return f.Name(), nil
}

// Upload checks and publishes a file already in the staging dir.
func (s *AvatarService) Upload(ctx context.Context, stagedPath string) (string, error) {
	staged, err := s.inspect(stagedPath)
	if err != nil {
		return "", err
	}
	return s.Publish(ctx, staged)
}

// Publish sends a staged avatar to object storage. The staged file is removed
// whether or not the upload succeeds.
func (s *AvatarService) Publish(ctx context.Context, staged StagedAvatar) (string, error) {
	defer s.discard(staged.Path)

	key := s.objectKey(staged.Type.Extension())
	url, err := s.store.Upload(ctx, key, staged.Path, staged.Type.MIME)
	if err != nil {
		return "", apperr.Internal("failed to upload avatar", err)
	}
	s.log.Info().Str("key", key).Msg("avatar uploaded")
	return url, nil
}

func (s *AvatarService) Discard(staged StagedAvatar) {
	s.discard(staged.Path)
}

// inspect sniffs a staged file; unsupported content is removed.
func (s *AvatarService) inspect(stagedPath string) (StagedAvatar, error) {
	result, err := sniffer.DetectFile(stagedPath)
	if err != nil {
		s.discard(stagedPath)
		if errors.Is(err, sniffer.ErrUnknownType) {
			return StagedAvatar{}, apperr.Validation("Avatar must be a JPEG, PNG, GIF or WEBP image")
		}
		return StagedAvatar{}, apperr.Internal("failed to read staged avatar", err)
	}
	return StagedAvatar{Path: stagedPath, Type: result}, nil
}

func (s *AvatarService) objectKey(ext string) string {
	datePrefix := s.now().UTC().Format("2006/01/02")
	return path.Join("avatars", datePrefix, fmt.Sprintf("%s.%s", ids.New(), ext))
}

func (s *AvatarService) discard(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", p).Msg("remove staged avatar failed")
	}
}

func (s *AvatarService) tooLarge() error {
	return apperr.Validationf("Avatar must be at most %d bytes", s.cfg.MaxAvatarBytes)
}
