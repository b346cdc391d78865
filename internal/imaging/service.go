// Package imaging resizes, crops and re-encodes stored images.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/dockerx/cms/internal/apperr"
)

const (
	defaultQuality = 85
	maxDimension   = 5000
	maxPixels      = maxDimension * maxDimension
)

// SupportedFormats lists the output formats Process, Resize and Crop can produce.
var SupportedFormats = []string{"jpeg", "png", "gif"}

// Source opens stored files by key. *storage.Service implements it.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Options control resizing and output encoding. Zero values mean "keep".
type Options struct {
	Width   int
	Height  int
	Format  string
	Quality int
}

// CropArea is a rectangle in source pixel coordinates.
type CropArea struct {
	X, Y          int
	Width, Height int
}

// Output is an encoded image.
type Output struct {
	Data        []byte
	ContentType string
}

// Service applies transformations to images read from a Source.
type Service struct {
	src Source
}

// NewService creates a new imaging Service.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Resize loads the stored file and scales it. A zero width or height keeps the
// aspect ratio; both zero re-encodes without scaling.
func (s *Service) Resize(ctx context.Context, fileName string, opts Options) (*Output, error) {
	img, err := s.load(ctx, fileName)
	if err != nil {
		return nil, err
	}
	return Transform(img, opts)
}

// Crop loads the stored file and cuts out area.
func (s *Service) Crop(ctx context.Context, fileName string, area CropArea, opts Options) (*Output, error) {
	if area.Width <= 0 || area.Height <= 0 {
		return nil, apperr.Validation("crop width and height must be positive")
	}
	if area.X < 0 || area.Y < 0 {
		return nil, apperr.Validation("crop x and y must not be negative")
	}

	img, err := s.load(ctx, fileName)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(area.X, area.Y, area.X+area.Width, area.Y+area.Height)
	if !rect.In(img.Bounds()) {
		return nil, apperr.Validation("crop area exceeds image bounds")
	}
	return encode(imaging.Crop(img, rect), opts)
}

// Process decodes r and applies opts.
func (s *Service) Process(r io.Reader, opts Options) (*Output, error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	return Transform(img, opts)
}

// Transform scales img per opts and encodes it.
func Transform(img image.Image, opts Options) (*Output, error) {
	if opts.Width < 0 || opts.Height < 0 || opts.Width > maxDimension || opts.Height > maxDimension {
		return nil, apperr.Validation(fmt.Sprintf("width and height must be between 0 and %d", maxDimension))
	}
	if opts.Width > 0 || opts.Height > 0 {
		img = imaging.Resize(img, opts.Width, opts.Height, imaging.Lanczos)
	}
	return encode(img, opts)
}

func (s *Service) load(ctx context.Context, fileName string) (image.Image, error) {
	rc, err := s.src.Open(ctx, fileName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decode(rc)
}

// decode checks the header dimensions before decoding so a small file cannot
// expand into an oversized bitmap.
func decode(r io.Reader) (image.Image, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, apperr.Validation("unsupported or corrupt image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, apperr.Validation(fmt.Sprintf("image exceeds %d pixels", maxPixels))
	}

	img, err := imaging.Decode(io.MultiReader(&head, r), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Validation("unsupported or corrupt image")
	}
	return img, nil
}

func encode(img image.Image, opts Options) (*Output, error) {
	format, contentType, err := outputFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &Output{Data: buf.Bytes(), ContentType: contentType}, nil
}

// outputFormat maps a format name to an encoder. Empty means JPEG.
func outputFormat(name string) (imaging.Format, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpg", "jpeg":
		return imaging.JPEG, "image/jpeg", nil
	case "png":
		return imaging.PNG, "image/png", nil
	case "gif":
		return imaging.GIF, "image/gif", nil
	default:
		return 0, "", apperr.Validation(fmt.Sprintf("unsupported output format %q", name))
	}
}
