package post

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/response"
	"github.com/dockerx/cms/internal/storage"
)

// maxFormBytes bounds a multipart request: the largest file plus room for the
// other fields and part headers.
const maxFormBytes = storage.MaxFileSize + 1<<20

// Handler holds HTTP handlers for the public and admin post endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new post Handler.
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// List godoc
//
//	@Summary		List posts
//	@Description	Returns every post, newest first.
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]View}
//	@Failure		500	{object}	response.Envelope
//	@Router			/posts [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.GetAll(r.Context())
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, views)
}

// Get godoc
//
//	@Summary		Get post
//	@Description	Returns one post by its id or its numeric public id.
//	@Tags			posts
//	@Produce		json
//	@Param			id	path		string	true	"Post id or public id"
//	@Success		200	{object}	response.Envelope{data=View}
//	@Failure		404	{object}	response.Envelope
//	@Router			/posts/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		v   *View
		err error
	)
	if publicID, perr := strconv.ParseInt(id, 10, 64); perr == nil {
		v, err = h.svc.GetByPublicID(r.Context(), publicID)
	} else {
		v, err = h.svc.GetByID(r.Context(), id)
	}
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, v)
}

// Paged godoc
//
//	@Summary		List posts by page
//	@Description	Returns one page of posts. Out-of-range values fall back to page 1 and page size 10.
//	@Tags			posts
//	@Produce		json
//	@Param			page		query		int	false	"Page number (1-based)"
//	@Param			pageSize	query		int	false	"Page size (1-100)"
//	@Success		200			{object}	response.Envelope{data=Page}
//	@Failure		500			{object}	response.Envelope
//	@Router			/posts/paged [get]
func (h *Handler) Paged(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	p, err := h.svc.GetPage(r.Context(), page, pageSize)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, p)
}

// AdminGet godoc
//
//	@Summary		Get post (admin)
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Post id"
//	@Success		200	{object}	response.Envelope{data=View}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/admin/posts/{id} [get]
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, v)
}

// Create godoc
//
//	@Summary		Create post
//	@Description	Creates a post with an optional image file.
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title		formData	string	true	"Title"
//	@Param			jsonMeta	formData	string	false	"Free-form JSON metadata"
//	@Param			file		formData	file	false	"Image (jpg, jpeg, png, gif, webp; max 10 MiB)"
//	@Success		201			{object}	response.Envelope{data=View}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/admin/posts [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, closeFile, err := formFile(r)
	if err != nil {
		response.BadRequest(w, "invalid file")
		return
	}
	defer closeFile()

	v, err := h.svc.Create(r.Context(), CreateInput{
		Title:    r.FormValue("title"),
		File:     file,
		JSONMeta: r.FormValue("jsonMeta"),
	})
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.Created(w, v)
}

// Update godoc
//
//	@Summary		Update post
//	@Description	Applies the fields present in the form. A new file replaces the current image.
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id			path		string	true	"Post id"
//	@Param			title		formData	string	false	"Title"
//	@Param			jsonMeta	formData	string	false	"Free-form JSON metadata"
//	@Param			file		formData	file	false	"Replacement image"
//	@Success		200			{object}	response.Envelope{data=View}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Router			/admin/posts/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, closeFile, err := formFile(r)
	if err != nil {
		response.BadRequest(w, "invalid file")
		return
	}
	defer closeFile()

	v, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), UpdateInput{
		Title:    formValue(r.MultipartForm, "title"),
		File:     file,
		JSONMeta: formValue(r.MultipartForm, "jsonMeta"),
	})
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.OK(w, v)
}

// Delete godoc
//
//	@Summary		Delete post
//	@Description	Deletes the post and its image.
//	@Tags			admin
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Post id"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/admin/posts/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.Err(w, h.log, err)
		return
	}
	response.NoContent(w)
}

var (
	errFormTooLarge = errors.New("file too large")
	errFormInvalid  = errors.New("invalid multipart form")
)

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(storage.MaxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errFormTooLarge
		}
		return errFormInvalid
	}
	return nil
}

// formFile returns the "file" part, or nil when none was sent. The returned
// func closes it.
func formFile(r *http.Request) (*FileInput, func(), error) {
	f, hdr, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return &FileInput{Name: hdr.Filename, Size: hdr.Size, Content: f}, func() { _ = f.Close() }, nil
}

// formValue distinguishes an absent field (nil) from an empty one.
func formValue(form *multipart.Form, key string) *string {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}
