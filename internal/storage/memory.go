package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryProvider keeps blobs in process memory. Useful for tests and local
// development; contents are lost on restart.
type MemoryProvider struct {
	mu         sync.RWMutex
	objects    map[string][]byte
	publicBase string
}

// NewMemoryProvider returns an empty in-memory backend.
func NewMemoryProvider(publicBase string) *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte), publicBase: publicBase}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) Upload(ctx context.Context, container, fileName string, content io.Reader) (*UploadResult, error) {
	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, storageErr(p.Name(), "read", container, fileName, err)
	}

	p.mu.Lock()
	p.objects[container+"/"+fileName] = data
	p.mu.Unlock()

	url, _ := p.GetURL(ctx, container, fileName)
	return &UploadResult{
		FileName:    fileName,
		URL:         url,
		Size:        int64(len(data)),
		ContentType: ContentTypeFor(fileName),
	}, nil
}

func (p *MemoryProvider) Download(_ context.Context, container, fileName string) (io.ReadCloser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, ok := p.objects[container+"/"+fileName]
	if !ok {
		return nil, notFound(container, fileName)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (p *MemoryProvider) Delete(_ context.Context, container, fileName string) error {
	p.mu.Lock()
	delete(p.objects, container+"/"+fileName)
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) GetURL(_ context.Context, container, fileName string) (string, error) {
	if err := checkAddress(container, fileName); err != nil {
		return "", err
	}
	if p.publicBase != "" {
		return publicURL(p.publicBase, container, fileName), nil
	}
	return "memory://" + container + "/" + fileName, nil
}

// Len reports the number of stored objects.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.objects)
}
