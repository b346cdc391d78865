// Package upload serves the standalone file upload endpoints.
package upload

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/response"
	"github.com/dockerx/cms/internal/storage"
)

const maxRequestBytes = storage.MaxFileSize + 1<<20

// Result describes a stored upload.
type Result struct {
	FileName         string    `json:"fileName"         example:"0b6f2c1e-3f7a-4d8e-9c7b-2a1d5e6f7a8b.png"`
	OriginalFileName string    `json:"originalFileName" example:"cat.png"`
	FileURL          string    `json:"fileUrl"          example:"http://localhost:8080/files/media/0b6f2c1e-3f7a-4d8e-9c7b-2a1d5e6f7a8b.png"`
	Size             int64     `json:"size"             example:"20480"`
	StorageProvider  string    `json:"storageProvider"  example:"local"`
	UploadedAt       time.Time `json:"uploadedAt"       example:"2026-02-27T14:48:34Z"`
}

type healthData struct {
	Status          string `json:"status"          example:"healthy"`
	StorageProvider string `json:"storageProvider" example:"local"`
}

// Handler holds HTTP handlers for the upload service.
type Handler struct {
	files *storage.Service
	log   *zap.Logger
}

// NewHandler creates a new upload Handler.
func NewHandler(files *storage.Service, log *zap.Logger) *Handler {
	return &Handler{files: files, log: log}
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores an image under a generated name and returns its URL.
//	@Tags			upload
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image (jpg, jpeg, png, gif, webp; max 10 MiB)"
//	@Success		200		{object}	response.Envelope{data=Result}
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/store/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(storage.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, "file too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file provided")
		return
	}
	defer f.Close()

	stored, err := h.files.Upload(r.Context(), hdr.Filename, hdr.Size, f)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}

	h.log.Info("file uploaded",
		zap.String("key", stored.Key),
		zap.String("original", hdr.Filename),
		zap.Int64("size", stored.Size),
	)
	response.OK(w, Result{
		FileName:         stored.Key,
		OriginalFileName: hdr.Filename,
		FileURL:          stored.URL,
		Size:             stored.Size,
		StorageProvider:  h.files.Backend(),
		UploadedAt:       time.Now().UTC(),
	})
}

// Health godoc
//
//	@Summary	Upload service health
//	@Tags		upload
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=healthData}
//	@Router		/store/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, healthData{Status: "healthy", StorageProvider: h.files.Backend()})
}

// Serve godoc
//
//	@Summary		Download a stored file
//	@Description	Streams a file from the active storage backend.
//	@Tags			upload
//	@Produce		octet-stream
//	@Param			container	path	string	true	"Container"
//	@Param			fileName	path	string	true	"Stored file name"
//	@Success		200
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{container}/{fileName} [get]
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "container") != h.files.Container() {
		response.NotFound(w, "file not found")
		return
	}
	fileName := chi.URLParam(r, "fileName")

	rc, err := h.files.Open(r.Context(), fileName)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ContentTypeFor(fileName))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("stream file", zap.String("key", fileName), zap.Error(err))
	}
}
