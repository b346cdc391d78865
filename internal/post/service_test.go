package post

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dockerx/cms/internal/apperr"
	"github.com/dockerx/cms/internal/media"
	"github.com/dockerx/cms/internal/storage"
)

type fixture struct {
	svc   *Service
	posts *MemoryStore
	media *media.MemoryStore
	blobs *storage.MemoryProvider
	files *storage.Service
}

func newFixture(t *testing.T) *fixture {
	log := zaptest.NewLogger(t)
	blobs := storage.NewMemoryProvider("")
	files := storage.NewService(blobs, "media", log)
	posts := NewMemoryStore()
	mediaStore := media.NewMemoryStore()
	return &fixture{
		svc:   NewService(posts, mediaStore, files, log),
		posts: posts,
		media: mediaStore,
		blobs: blobs,
		files: files,
	}
}

func pngFile(content string) *FileInput {
	return &FileInput{Name: "photo.png", Size: int64(len(content)), Content: strings.NewReader(content)}
}

func readBlob(t *testing.T, f *fixture, key string) string {
	t.Helper()
	rc, err := f.files.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestCreate_WithFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "  Hello  ", File: pngFile("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "Hello", v.Title)
	assert.Equal(t, int64(1), v.PublicID)
	assert.JSONEq(t, "{}", string(v.JSONMeta))
	require.NotNil(t, v.MediaID)
	require.NotNil(t, v.MediaURL)

	all, err := f.media.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, *v.MediaID, all[0].ID)
	assert.Equal(t, "png-bytes", readBlob(t, f, *v.MediaURL))
	assert.Equal(t, "png-bytes", readBlob(t, f, all[0].BackendPath))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{Title: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Create(ctx, CreateInput{Title: "x", JSONMeta: "{broken"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Create(ctx, CreateInput{Title: "x", File: &FileInput{Name: "a.exe", Size: 3, Content: strings.NewReader("abc")}})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	all, _ := f.posts.GetAll(ctx)
	assert.Empty(t, all)
	assert.Equal(t, 0, f.blobs.Len())
}

type failingPosts struct{ *MemoryStore }

func (failingPosts) Create(context.Context, *Post) error { return errors.New("db down") }

func TestCreate_PostFailureCleansUp(t *testing.T) {
	log := zaptest.NewLogger(t)
	blobs := storage.NewMemoryProvider("")
	mediaStore := media.NewMemoryStore()
	svc := NewService(failingPosts{NewMemoryStore()}, mediaStore, storage.NewService(blobs, "media", log), log)

	_, err := svc.Create(context.Background(), CreateInput{Title: "x", File: pngFile("abc")})
	require.Error(t, err)

	rows, _ := mediaStore.GetAll(context.Background())
	assert.Empty(t, rows)
	assert.Equal(t, 0, blobs.Len())
}

func TestJSONMetaRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "meta", JSONMeta: `{"description":"x"}`})
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, v.ID)
	require.NoError(t, err)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.JSONMeta, &meta))
	assert.Equal(t, map[string]string{"description": "x"}, meta)
}

func TestUpdate_ReplacesMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "first", File: pngFile("old")})
	require.NoError(t, err)
	oldMedia, err := f.media.GetByID(ctx, *v.MediaID)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, v.ID, UpdateInput{File: pngFile("new")})
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Title)
	assert.NotEqual(t, *v.MediaID, *updated.MediaID)
	assert.NotNil(t, updated.UpdatedAt)

	rows, err := f.media.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, *updated.MediaID, rows[0].ID)

	_, err = f.files.Open(ctx, oldMedia.BackendPath)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Equal(t, "new", readBlob(t, f, rows[0].BackendPath))
	assert.Equal(t, 1, f.blobs.Len())
}

func TestUpdate_PartialFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "title", JSONMeta: `{"a":1}`})
	require.NoError(t, err)

	blank := "  "
	updated, err := f.svc.Update(ctx, v.ID, UpdateInput{Title: &blank, JSONMeta: &blank})
	require.NoError(t, err)
	assert.Equal(t, "title", updated.Title)
	assert.JSONEq(t, `{"a":1}`, string(updated.JSONMeta))

	title := "renamed"
	meta := `{"b":2}`
	updated, err = f.svc.Update(ctx, v.ID, UpdateInput{Title: &title, JSONMeta: &meta})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.JSONEq(t, `{"b":2}`, string(updated.JSONMeta))
	assert.Equal(t, v.PublicID, updated.PublicID)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), "missing", UpdateInput{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 404, apperr.Status(err))
}

func TestUpdate_UploadFailureLeavesPostUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "keep", File: pngFile("old")})
	require.NoError(t, err)

	title := "changed"
	_, err = f.svc.Update(ctx, v.ID, UpdateInput{Title: &title, File: &FileInput{Name: "bad.txt", Size: 1, Content: strings.NewReader("x")}})
	require.Error(t, err)

	got, err := f.svc.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
	assert.Equal(t, *v.MediaID, *got.MediaID)
	assert.Equal(t, 1, f.blobs.Len())
}

type stickyMedia struct{ *media.MemoryStore }

func (stickyMedia) Delete(context.Context, string) error { return errors.New("db hiccup") }

func TestUpdate_OldMediaCleanupFailureStillSucceeds(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	blobs := storage.NewMemoryProvider("")
	files := storage.NewService(blobs, "media", zap.NewNop())
	mediaStore := stickyMedia{media.NewMemoryStore()}
	posts := NewMemoryStore()
	svc := NewService(posts, mediaStore, files, zap.New(core))
	ctx := context.Background()

	v, err := svc.Create(ctx, CreateInput{Title: "swap", File: pngFile("old")})
	require.NoError(t, err)
	oldMedia, err := mediaStore.GetByID(ctx, *v.MediaID)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, v.ID, UpdateInput{File: pngFile("new")})
	require.NoError(t, err)
	require.NotNil(t, updated.MediaID)
	assert.NotEqual(t, *v.MediaID, *updated.MediaID)

	stored, err := posts.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated.MediaID, *stored.MediaID)

	// The old row could not be removed, so its blob is kept with it.
	rc, err := files.Open(ctx, oldMedia.BackendPath)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, 2, blobs.Len())

	entries := logs.FilterMessage("replaced media cleanup failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, v.ID, fields["post_id"])
	assert.Equal(t, oldMedia.ID, fields["media_id"])
}

// brokenDelete serves everything from an in-memory Service but fails every delete.
type brokenDelete struct{ *storage.Service }

func (brokenDelete) Delete(context.Context, string) error {
	return apperr.Storage("delete", errors.New("backend unavailable"))
}

func TestDelete_MetadataRemovedWhenBlobDeleteFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	blobs := storage.NewMemoryProvider("")
	files := brokenDelete{storage.NewService(blobs, "media", zap.NewNop())}
	posts := NewMemoryStore()
	mediaStore := media.NewMemoryStore()
	svc := NewService(posts, mediaStore, files, zap.New(core))
	ctx := context.Background()

	v, err := svc.Create(ctx, CreateInput{Title: "doomed", File: pngFile("bytes")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, v.ID))

	_, err = posts.GetByID(ctx, v.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = mediaStore.GetByID(ctx, *v.MediaID)
	assert.True(t, errors.Is(err, media.ErrNotFound))

	assert.Equal(t, 1, blobs.Len())
	assert.Equal(t, 1, logs.FilterMessage("blob cleanup failed").Len())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "bye", File: pngFile("bytes")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, v.ID))
	assert.Equal(t, 0, f.blobs.Len())

	_, err = f.svc.GetByID(ctx, v.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = f.svc.Delete(ctx, v.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDanglingMediaIsOmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, CreateInput{Title: "dangling", File: pngFile("x")})
	require.NoError(t, err)
	require.NoError(t, f.media.Delete(ctx, *v.MediaID))

	got, err := f.svc.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MediaURL)
	assert.Nil(t, got.MediaID)

	require.NoError(t, f.svc.Delete(ctx, v.ID))
}

func TestGetPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := f.svc.Create(ctx, CreateInput{Title: "p"})
		require.NoError(t, err)
	}

	tests := []struct {
		name              string
		page, pageSize    int
		wantPage, wantLen int
		wantSize          int
	}{
		{"first page", 1, 10, 1, 10, 10},
		{"last partial page", 3, 10, 3, 5, 10},
		{"page below one", 0, 10, 1, 10, 10},
		{"size too big", 1, 500, 1, 10, 10},
		{"size zero", 2, 0, 2, 10, 10},
		{"past the end", 9, 10, 9, 0, 10},
		{"custom size", 1, 25, 1, 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.GetPage(ctx, tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Len(t, p.Items, tt.wantLen)
			assert.Equal(t, 25, p.TotalCount)
			assert.Equal(t, (25+tt.wantSize-1)/tt.wantSize, p.TotalPages)
		})
	}
}

func TestGetByPublicID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateInput{Title: "one"})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateInput{Title: "two"})
	require.NoError(t, err)
	assert.Greater(t, second.PublicID, first.PublicID)

	got, err := f.svc.GetByPublicID(ctx, second.PublicID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = f.svc.GetByPublicID(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
