package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dockerx/cms/internal/config"
)

// ErrUnsupportedProvider is returned by NewProvider for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// NewProvider builds the backend named by cfg.Provider. It is called once at
// startup; the result is shared for the life of the process.
func NewProvider(ctx context.Context, cfg config.Storage) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "local":
		return NewLocalProvider(cfg.Local.BasePath, cfg.PublicBase)
	case "aws", "s3":
		return NewS3Provider(ctx, cfg.S3, cfg.PublicBase)
	case "azure":
		return NewAzureProvider(cfg.Azure.ConnectionString, cfg.PublicBase)
	case "minio":
		return NewMinioProvider(cfg.Minio, cfg.PublicBase, cfg.S3.PresignTTL)
	case "memory":
		return NewMemoryProvider(cfg.PublicBase), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
