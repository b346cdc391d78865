package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dockerx/cms/internal/storage"
)

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	mem := storage.NewMemoryProvider("http://localhost:8080/files")
	h := NewHandler(storage.NewService(mem, "media", zaptest.NewLogger(t)), zaptest.NewLogger(t))

	body, ct := multipartBody(t, "file", "cat.PNG", []byte("png-data"))
	req := httptest.NewRequest(http.MethodPost, "/api/store/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "cat.PNG", env.Data.OriginalFileName)
	assert.True(t, strings.HasSuffix(env.Data.FileName, ".png"))
	assert.Equal(t, "http://localhost:8080/files/media/"+env.Data.FileName, env.Data.FileURL)
	assert.Equal(t, int64(8), env.Data.Size)
	assert.Equal(t, "memory", env.Data.StorageProvider)
	assert.Equal(t, 1, mem.Len())
}

func TestUpload_Rejects(t *testing.T) {
	mem := storage.NewMemoryProvider("")
	h := NewHandler(storage.NewService(mem, "media", zaptest.NewLogger(t)), zaptest.NewLogger(t))

	tests := []struct {
		name    string
		field   string
		file    string
		content []byte
		wantMsg string
	}{
		{"no file", "", "", nil, "no file provided"},
		{"bad type", "file", "notes.txt", []byte("x"), "invalid file type"},
		{"empty file", "file", "a.png", nil, "no file provided"},
		{"too large", "file", "big.jpg", make([]byte, storage.MaxFileSize+1), "file too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.field, tt.file, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/api/store/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.Upload(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}
	assert.Equal(t, 0, mem.Len())
}

func TestServe(t *testing.T) {
	mem := storage.NewMemoryProvider("")
	files := storage.NewService(mem, "media", zaptest.NewLogger(t))
	h := NewHandler(files, zaptest.NewLogger(t))

	stored, err := files.Upload(context.Background(), "a.gif", 3, strings.NewReader("GIF"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/files/{container}/{fileName}", h.Serve)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/media/"+stored.Key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "GIF", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/other/"+stored.Key, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/media/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
