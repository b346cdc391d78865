// Package storage defines the blob Provider contract, its backends (local disk,
// S3, MinIO, Azure Blob, memory) and the Service that applies upload policy on
// top of whichever backend was selected at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dockerx/cms/internal/apperr"
)

// ErrNotFound is returned (wrapped) by Download when the object does not exist.
var ErrNotFound = &apperr.Error{Kind: apperr.ErrNotFound, Msg: "file not found"}

// Provider performs blob operations against one concrete backend.
// fileName is a single path segment; container is a directory, bucket or blob container.
type Provider interface {
	// Name identifies the backend, e.g. "local" or "s3".
	Name() string
	// Upload stores content, creating the container if it does not exist yet.
	Upload(ctx context.Context, container, fileName string, content io.Reader) (*UploadResult, error)
	// Download opens the stored object. The caller closes the reader.
	Download(ctx context.Context, container, fileName string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, container, fileName string) error
	// GetURL returns an absolute URL for the object. It may expire.
	GetURL(ctx context.Context, container, fileName string) (string, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// ContentTypeFor infers a MIME type from the file extension.
func ContentTypeFor(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// checkAddress rejects names that could escape their container.
func checkAddress(container, fileName string) error {
	for _, s := range []string{container, fileName} {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return apperr.Validation(fmt.Sprintf("invalid storage name %q", s))
		}
	}
	return nil
}

// publicURL joins a static public base with container and file name.
func publicURL(base, container, fileName string) string {
	return strings.TrimRight(base, "/") + "/" + container + "/" + fileName
}

// countingReader records how many bytes were read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var tracer = otel.Tracer("github.com/dockerx/cms/internal/storage")

func startSpan(ctx context.Context, backend, op, container, fileName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, backend+"."+op, trace.WithAttributes(
		attribute.String("storage.backend", backend),
		attribute.String("storage.container", container),
		attribute.String("storage.key", fileName),
	))
}

// endSpan records err on span unless it is an expected not-found.
func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func storageErr(backend, op, container, fileName string, err error) error {
	return apperr.Storage(fmt.Sprintf("%s %s %s/%s", backend, op, container, fileName), err)
}

func notFound(container, fileName string) error {
	return fmt.Errorf("%s/%s: %w", container, fileName, ErrNotFound)
}
