package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/apperr"
	"github.com/dockerx/cms/internal/media"
	"github.com/dockerx/cms/internal/storage"
)

// FileStore is the blob side of the lifecycle. *storage.Service implements it.
type FileStore interface {
	Upload(ctx context.Context, fileName string, size int64, r io.Reader) (*storage.StoredFile, error)
	Delete(ctx context.Context, ref string) error
	URL(ctx context.Context, key string) (string, error)
}

// FileInput is an incoming upload.
type FileInput struct {
	Name    string
	Size    int64
	Content io.Reader
}

// CreateInput carries the fields of a new post.
type CreateInput struct {
	Title    string
	File     *FileInput
	JSONMeta string
}

// UpdateInput carries a partial update. Nil or blank fields are left unchanged.
type UpdateInput struct {
	Title    *string
	File     *FileInput
	JSONMeta *string
}

// View is the read projection of a post.
type View struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	PublicID  int64           `json:"publicId"`
	MediaID   *string         `json:"mediaId,omitempty"`
	MediaURL  *string         `json:"mediaUrl,omitempty"`
	JSONMeta  json.RawMessage `json:"jsonMeta" swaggertype:"object"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

// Page is one slice of the paged listing.
type Page struct {
	Items      []View `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalCount int    `json:"totalCount"`
	TotalPages int    `json:"totalPages"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service keeps posts, media rows and blobs consistent across create, update
// and delete. Blob cleanup is best-effort; row cleanup is not.
//
// There is no per-post lock: concurrent updates of one post are last-write-wins
// and may each leave the replaced blob behind.
type Service struct {
	posts Store
	media media.Store
	files FileStore
	log   *zap.Logger
}

// NewService creates a new post Service.
func NewService(posts Store, mediaStore media.Store, files FileStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{posts: posts, media: mediaStore, files: files, log: log}
}

// Create stores the optional file, records it as media and creates the post.
// Nothing is created when the upload fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*View, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	meta, err := normalizeMeta(in.JSONMeta)
	if err != nil {
		return nil, err
	}

	p := &Post{Title: title, JSONMeta: meta}

	var m *media.Media
	if in.File != nil {
		m, err = s.attach(ctx, in.File)
		if err != nil {
			return nil, err
		}
		p.MediaID = &m.ID
	}

	if err := s.posts.Create(ctx, p); err != nil {
		if m != nil {
			s.discard(ctx, m)
		}
		return nil, err
	}

	s.log.Info("post created", zap.String("post_id", p.ID), zap.Int64("public_id", p.PublicID))
	return s.view(ctx, p), nil
}

// Update applies the present fields of in. A new file replaces the current
// media only after the post points at the new one.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*View, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			p.Title = title
		}
	}
	if in.JSONMeta != nil && strings.TrimSpace(*in.JSONMeta) != "" {
		meta, err := normalizeMeta(*in.JSONMeta)
		if err != nil {
			return nil, err
		}
		p.JSONMeta = meta
	}

	var (
		oldMediaID *string
		newMedia   *media.Media
	)
	if in.File != nil {
		newMedia, err = s.attach(ctx, in.File)
		if err != nil {
			return nil, err
		}
		oldMediaID = p.MediaID
		p.MediaID = &newMedia.ID
	}

	if err := s.posts.Update(ctx, p); err != nil {
		if newMedia != nil {
			s.discard(ctx, newMedia)
		}
		return nil, err
	}

	// The post already points at the new media; old media cleanup is best-effort.
	if oldMediaID != nil && *oldMediaID != newMedia.ID {
		if err := s.removeMedia(ctx, *oldMediaID); err != nil {
			s.log.Warn("replaced media cleanup failed",
				zap.String("post_id", p.ID),
				zap.String("media_id", *oldMediaID),
				zap.Error(err),
			)
		}
	}

	s.log.Info("post updated", zap.String("post_id", p.ID), zap.Bool("media_replaced", newMedia != nil))
	return s.view(ctx, p), nil
}

// Delete removes the post, its media row and, best-effort, its blob.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if p.MediaID != nil {
		if err := s.removeMedia(ctx, *p.MediaID); err != nil {
			return err
		}
	}

	if err := s.posts.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.log.Info("post deleted", zap.String("post_id", p.ID))
	return nil
}

// GetAll returns every post, newest first.
func (s *Service) GetAll(ctx context.Context) ([]View, error) {
	posts, err := s.posts.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, posts), nil
}

// GetByID returns one post by its id.
func (s *Service) GetByID(ctx context.Context, id string) (*View, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p), nil
}

// GetByPublicID returns one post by its public sequence id.
func (s *Service) GetByPublicID(ctx context.Context, publicID int64) (*View, error) {
	p, err := s.posts.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p), nil
}

// GetPage returns one page of posts. page < 1 becomes 1; pageSize outside
// 1..100 becomes 10.
func (s *Service) GetPage(ctx context.Context, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	posts, total, err := s.posts.GetPage(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      s.views(ctx, posts),
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// attach uploads f and records it as a media row. A failed row insert removes
// the fresh blob.
func (s *Service) attach(ctx context.Context, f *FileInput) (*media.Media, error) {
	stored, err := s.files.Upload(ctx, f.Name, f.Size, f.Content)
	if err != nil {
		return nil, err
	}

	m := &media.Media{BackendPath: stored.Key}
	if err := s.media.Create(ctx, m); err != nil {
		s.deleteBlob(ctx, stored.Key)
		return nil, err
	}
	return m, nil
}

// discard undoes attach after a later step failed.
func (s *Service) discard(ctx context.Context, m *media.Media) {
	s.deleteBlob(ctx, m.BackendPath)
	if err := s.media.Delete(ctx, m.ID); err != nil && !errors.Is(err, media.ErrNotFound) {
		s.log.Warn("remove orphaned media row", zap.String("media_id", m.ID), zap.Error(err))
	}
}

// removeMedia deletes the media row and then, best-effort, its blob. The blob
// is kept when the row cannot be removed, so a surviving row still has it. A
// dangling id is skipped.
func (s *Service) removeMedia(ctx context.Context, mediaID string) error {
	m, err := s.media.GetByID(ctx, mediaID)
	if errors.Is(err, media.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.media.Delete(ctx, m.ID); err != nil && !errors.Is(err, media.ErrNotFound) {
		return err
	}
	s.deleteBlob(ctx, m.BackendPath)
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		s.log.Warn("blob cleanup failed",
			zap.String("op", "delete"),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func (s *Service) views(ctx context.Context, posts []Post) []View {
	out := make([]View, 0, len(posts))
	for i := range posts {
		out = append(out, *s.view(ctx, &posts[i]))
	}
	return out
}

// view projects p. A dangling media id is dropped; an unresolvable URL leaves
// MediaURL unset.
func (s *Service) view(ctx context.Context, p *Post) *View {
	v := &View{
		ID:        p.ID,
		Title:     p.Title,
		PublicID:  p.PublicID,
		MediaID:   p.MediaID,
		JSONMeta:  json.RawMessage(p.JSONMeta),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.MediaID == nil {
		return v
	}

	m, err := s.media.GetByID(ctx, *p.MediaID)
	if errors.Is(err, media.ErrNotFound) {
		v.MediaID = nil
		return v
	}
	if err != nil {
		s.log.Warn("resolve media", zap.String("media_id", *p.MediaID), zap.Error(err))
		return v
	}
	url, err := s.files.URL(ctx, m.BackendPath)
	if err != nil {
		s.log.Warn("resolve media url", zap.String("media_id", m.ID), zap.Error(err))
		return v
	}
	v.MediaURL = &url
	return v
}

// normalizeMeta maps blank input to "{}" and rejects malformed JSON.
func normalizeMeta(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "{}", nil
	}
	if !json.Valid([]byte(raw)) {
		return "", apperr.Validation("jsonMeta must be valid JSON")
	}
	return raw, nil
}
