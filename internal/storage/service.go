package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/apperr"
)

// MaxFileSize is the largest accepted upload, in bytes.
const MaxFileSize int64 = 10 * 1024 * 1024

var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// StoredFile is the outcome of a successful Service.Upload.
type StoredFile struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Service applies upload policy on top of a Provider and pins every object to
// one container.
type Service struct {
	provider  Provider
	container string
	maxSize   int64
	log       *zap.Logger
}

// NewService returns a Service storing into container through provider.
func NewService(provider Provider, container string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: provider, container: container, maxSize: MaxFileSize, log: log}
}

// Backend returns the provider name, e.g. "local".
func (s *Service) Backend() string { return s.provider.Name() }

// Container returns the container all objects are stored in.
func (s *Service) Container() string { return s.container }

// ValidateFile checks the extension and declared size of an incoming file.
func (s *Service) ValidateFile(fileName string, size int64) error {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if _, ok := allowedExtensions[ext]; !ok {
		return apperr.Validation("invalid file type")
	}
	if size > s.maxSize {
		return apperr.Validation("file too large")
	}
	if size <= 0 {
		return apperr.Validation("no file provided")
	}
	return nil
}

// Upload validates the file, stores it under a fresh random key and returns
// where it landed. The declared size is not trusted: a stream longer than the
// limit is removed again and rejected.
func (s *Service) Upload(ctx context.Context, fileName string, size int64, r io.Reader) (*StoredFile, error) {
	if err := s.ValidateFile(fileName, size); err != nil {
		return nil, err
	}

	key := uuid.NewString() + strings.ToLower(path.Ext(fileName))
	res, err := s.provider.Upload(ctx, s.container, key, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		s.log.Error("upload failed",
			zap.String("op", "upload"),
			zap.String("key", key),
			zap.String("backend", s.Backend()),
			zap.Error(err),
		)
		return nil, apperr.Upload("upload "+key, err)
	}

	if res.Size > s.maxSize {
		if derr := s.provider.Delete(ctx, s.container, key); derr != nil {
			s.log.Warn("remove oversized upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, apperr.Validation("file too large")
	}

	return &StoredFile{Key: key, URL: res.URL, Size: res.Size, ContentType: res.ContentType}, nil
}

// Delete removes the object named by ref, which may be a bare key or a URL
// previously returned for it. A missing object is not an error.
func (s *Service) Delete(ctx context.Context, ref string) error {
	key := KeyFromReference(ref)
	if key == "" {
		return apperr.Validation("empty file reference")
	}
	if err := s.provider.Delete(ctx, s.container, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Open downloads the object named by ref. The caller closes the reader.
func (s *Service) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key := KeyFromReference(ref)
	if key == "" {
		return nil, apperr.Validation("empty file reference")
	}
	return s.provider.Download(ctx, s.container, key)
}

// URL resolves the current absolute URL for key.
func (s *Service) URL(ctx context.Context, key string) (string, error) {
	return s.provider.GetURL(ctx, s.container, key)
}

// KeyFromReference extracts the object key from a bare key or an absolute URL:
// the last path segment, with any query string dropped and escapes decoded.
func KeyFromReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	return ref
}
