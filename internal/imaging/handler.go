package imaging

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/apperr"
	"github.com/dockerx/cms/internal/response"
	"github.com/dockerx/cms/internal/storage"
)

type healthData struct {
	Status           string   `json:"status"           example:"healthy"`
	SupportedFormats []string `json:"supportedFormats" example:"jpeg,png,gif"`
}

// Handler holds HTTP handlers for the media processing endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new imaging Handler.
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Image godoc
//
//	@Summary		Resize a stored image
//	@Description	Returns the stored image scaled to width and/or height and encoded in format.
//	@Tags			media
//	@Produce		jpeg,png,gif
//	@Param			fileName	path	string	true	"Stored file name"
//	@Param			width		query	int		false	"Target width"
//	@Param			height		query	int		false	"Target height"
//	@Param			format		query	string	false	"jpeg (default), png or gif"
//	@Param			quality		query	int		false	"JPEG quality 1-100"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/media/image/{fileName} [get]
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	out, err := h.svc.Resize(r.Context(), chi.URLParam(r, "fileName"), opts)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	writeImage(w, out)
}

// Crop godoc
//
//	@Summary		Crop a stored image
//	@Tags			media
//	@Produce		jpeg,png,gif
//	@Param			fileName	path	string	true	"Stored file name"
//	@Param			x			query	int		true	"Left edge"
//	@Param			y			query	int		true	"Top edge"
//	@Param			width		query	int		true	"Crop width"
//	@Param			height		query	int		true	"Crop height"
//	@Param			format		query	string	false	"jpeg (default), png or gif"
//	@Param			quality		query	int		false	"JPEG quality 1-100"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/media/crop/{fileName} [get]
func (h *Handler) Crop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		area CropArea
		err  error
	)
	for _, p := range []struct {
		name string
		dst  *int
	}{{"x", &area.X}, {"y", &area.Y}, {"width", &area.Width}, {"height", &area.Height}} {
		if *p.dst, err = strconv.Atoi(q.Get(p.name)); err != nil {
			response.BadRequest(w, "invalid crop parameter "+p.name)
			return
		}
	}

	quality, _ := strconv.Atoi(q.Get("quality"))
	out, err := h.svc.Crop(r.Context(), chi.URLParam(r, "fileName"), area, Options{
		Format:  q.Get("format"),
		Quality: quality,
	})
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	writeImage(w, out)
}

// Process godoc
//
//	@Summary		Process an uploaded image
//	@Description	Resizes and re-encodes the uploaded file without storing it.
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		jpeg,png,gif
//	@Param			file	formData	file	true	"Image"
//	@Param			width	query		int		false	"Target width"
//	@Param			height	query		int		false	"Target height"
//	@Param			format	query		string	false	"jpeg (default), png or gif"
//	@Param			quality	query		int		false	"JPEG quality 1-100"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Router			/media/process [post]
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	opts, err := parseOptions(r)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxFileSize+1<<20)
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

	f, _, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file provided")
		return
	}
	defer f.Close()

	out, err := h.svc.Process(f, opts)
	if err != nil {
		response.Err(w, h.log, err)
		return
	}
	writeImage(w, out)
}

// Health godoc
//
//	@Summary	Media service health
//	@Tags		media
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=healthData}
//	@Router		/media/health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, healthData{Status: "healthy", SupportedFormats: SupportedFormats})
}

func parseOptions(r *http.Request) (Options, error) {
	q := r.URL.Query()
	var opts Options
	for _, p := range []struct {
		name string
		dst  *int
	}{{"width", &opts.Width}, {"height", &opts.Height}, {"quality", &opts.Quality}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, apperr.Validation("invalid " + p.name)
		}
		*p.dst = n
	}
	opts.Format = q.Get("format")
	return opts, nil
}

func writeImage(w http.ResponseWriter, out *Output) {
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
