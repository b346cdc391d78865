package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dockerx/cms/internal/apperr"
)

func newTestService(t *testing.T) (*Service, *MemoryProvider) {
	mem := NewMemoryProvider("")
	return NewService(mem, "media", zaptest.NewLogger(t)), mem
}

func TestValidateFile(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		file    string
		size    int64
		wantMsg string
	}{
		{"jpg ok", "photo.jpg", 100, ""},
		{"upper case ext ok", "PHOTO.PNG", 100, ""},
		{"webp ok", "x.webp", 1, ""},
		{"exactly max ok", "x.gif", MaxFileSize, ""},
		{"bad extension", "doc.pdf", 100, "invalid file type"},
		{"no extension", "README", 100, "invalid file type"},
		{"too large", "x.jpeg", MaxFileSize + 1, "file too large"},
		{"empty", "x.jpg", 0, "no file provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateFile(tt.file, tt.size)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Equal(t, tt.wantMsg, apperr.Message(err))
		})
	}
}

func TestServiceUpload(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	f, err := svc.Upload(ctx, "Cat.PNG", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(f.Key, ".png"))
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, "memory://media/"+f.Key, f.URL)
	assert.Equal(t, 1, mem.Len())

	rc, err := svc.Open(ctx, f.URL)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(got))

	require.NoError(t, svc.Delete(ctx, f.URL))
	assert.Equal(t, 0, mem.Len())
	assert.NoError(t, svc.Delete(ctx, f.Key))
}

func TestServiceUpload_RejectsBeforeStoring(t *testing.T) {
	svc, mem := newTestService(t)

	_, err := svc.Upload(context.Background(), "evil.exe", 3, strings.NewReader("bad"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, 0, mem.Len())
}

func TestServiceUpload_StreamLongerThanLimit(t *testing.T) {
	svc, mem := newTestService(t)
	svc.maxSize = 8

	_, err := svc.Upload(context.Background(), "x.jpg", 4, bytes.NewReader(make([]byte, 32)))
	require.Error(t, err)
	assert.Equal(t, "file too large", apperr.Message(err))
	assert.Equal(t, 0, mem.Len())
}

type failingProvider struct{ *MemoryProvider }

func (failingProvider) Upload(context.Context, string, string, io.Reader) (*UploadResult, error) {
	return nil, apperr.Storage("fail upload", errors.New("disk full"))
}

func TestServiceUpload_ProviderFailure(t *testing.T) {
	svc := NewService(failingProvider{NewMemoryProvider("")}, "media", zaptest.NewLogger(t))

	_, err := svc.Upload(context.Background(), "x.png", 1, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpload))
	assert.Equal(t, 500, apperr.Status(err))
}

func TestKeyFromReference(t *testing.T) {
	cases := map[string]string{
		"abc.png":                                   "abc.png",
		"http://host/files/media/abc.png":           "abc.png",
		"https://b.s3.amazonaws.com/abc.png?X-Sig=1": "abc.png",
		"memory://media/a%20b.png":                  "a b.png",
		"file:///data/media/abc.jpg/":               "abc.jpg",
		"  ":                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, KeyFromReference(in), in)
	}
}
