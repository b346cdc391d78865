package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalProvider stores blobs as files below a base directory, one
// sub-directory per container. All access goes through os.Root so names can
// never resolve outside the base directory.
type LocalProvider struct {
	baseDir    string
	publicBase string
}

// NewLocalProvider creates baseDir if needed. publicBase may be empty, in which
// case GetURL returns file:// URLs.
func NewLocalProvider(baseDir, publicBase string) (*LocalProvider, error) {
	if baseDir == "" {
		return nil, errors.New("base directory is required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &LocalProvider{baseDir: abs, publicBase: publicBase}, nil
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Upload(ctx context.Context, container, fileName string, content io.Reader) (res *UploadResult, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Upload", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(p.baseDir)
	if err != nil {
		return nil, storageErr(p.Name(), "open root", container, fileName, err)
	}
	defer root.Close()

	if err := root.Mkdir(container, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, storageErr(p.Name(), "create container", container, fileName, err)
	}

	rel := filepath.Join(container, fileName)
	f, err := root.Create(rel)
	if err != nil {
		return nil, storageErr(p.Name(), "create", container, fileName, err)
	}

	cr := &countingReader{r: content}
	_, copyErr := io.Copy(f, cr)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = root.Remove(rel)
		return nil, storageErr(p.Name(), "write", container, fileName, err)
	}

	url, err := p.GetURL(ctx, container, fileName)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		FileName:    fileName,
		URL:         url,
		Size:        cr.n,
		ContentType: ContentTypeFor(fileName),
	}, nil
}

func (p *LocalProvider) Download(ctx context.Context, container, fileName string) (rc io.ReadCloser, err error) {
	_, span := startSpan(ctx, p.Name(), "Download", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(p.baseDir)
	if err != nil {
		return nil, storageErr(p.Name(), "open root", container, fileName, err)
	}
	defer root.Close()

	f, err := root.Open(filepath.Join(container, fileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(container, fileName)
	}
	if err != nil {
		return nil, storageErr(p.Name(), "open", container, fileName, err)
	}
	return f, nil
}

func (p *LocalProvider) Delete(ctx context.Context, container, fileName string) (err error) {
	_, span := startSpan(ctx, p.Name(), "Delete", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return err
	}

	root, err := os.OpenRoot(p.baseDir)
	if err != nil {
		return storageErr(p.Name(), "open root", container, fileName, err)
	}
	defer root.Close()

	err = root.Remove(filepath.Join(container, fileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr(p.Name(), "remove", container, fileName, err)
	}
	return nil
}

func (p *LocalProvider) GetURL(_ context.Context, container, fileName string) (string, error) {
	if err := checkAddress(container, fileName); err != nil {
		return "", err
	}
	if p.publicBase != "" {
		return publicURL(p.publicBase, container, fileName), nil
	}
	return "file://" + filepath.ToSlash(filepath.Join(p.baseDir, container, fileName)), nil
}
