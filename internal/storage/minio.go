package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dockerx/cms/internal/config"
)

// MinioProvider implements Provider on top of a MinIO (or any S3-compatible)
// endpoint using minio-go. The container is the bucket name.
type MinioProvider struct {
	client     *minio.Client
	publicBase string
	presignTTL time.Duration

	buckets sync.Map
}

// NewMinioProvider creates the MinIO client. Buckets are created lazily on first upload.
func NewMinioProvider(cfg config.MinioStorage, publicBase string, presignTTL time.Duration) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &MinioProvider{client: client, publicBase: publicBase, presignTTL: presignTTL}, nil
}

func (p *MinioProvider) Name() string { return "minio" }

// ensureBucket makes the bucket if absent. With a public base configured the
// bucket also gets an anonymous-read policy so static URLs resolve.
func (p *MinioProvider) ensureBucket(ctx context.Context, bucket string) error {
	if _, ok := p.buckets.Load(bucket); ok {
		return nil
	}

	exists, err := p.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code != "BucketAlreadyOwnedByYou" && resp.Code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket %q: %w", bucket, err)
			}
		}
	}

	if p.publicBase != "" {
		if err := p.client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
			return fmt.Errorf("set bucket policy: %w", err)
		}
	}

	p.buckets.Store(bucket, struct{}{})
	return nil
}

func (p *MinioProvider) Upload(ctx context.Context, container, fileName string, content io.Reader) (res *UploadResult, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Upload", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}
	if err := p.ensureBucket(ctx, container); err != nil {
		return nil, storageErr(p.Name(), "ensure bucket", container, fileName, err)
	}

	contentType := ContentTypeFor(fileName)
	info, err := p.client.PutObject(ctx, container, fileName, content, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, storageErr(p.Name(), "put", container, fileName, err)
	}

	url, err := p.GetURL(ctx, container, fileName)
	if err != nil {
		return nil, err
	}
	return &UploadResult{FileName: fileName, URL: url, Size: info.Size, ContentType: contentType}, nil
}

func (p *MinioProvider) Download(ctx context.Context, container, fileName string) (rc io.ReadCloser, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Download", container, fileName)
	defer func() { endSpan(span, err) }()

	obj, err := p.client.GetObject(ctx, container, fileName, minio.GetObjectOptions{})
	if err != nil {
		return nil, p.mapErr("get", container, fileName, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, p.mapErr("stat", container, fileName, err)
	}
	return obj, nil
}

func (p *MinioProvider) Delete(ctx context.Context, container, fileName string) (err error) {
	ctx, span := startSpan(ctx, p.Name(), "Delete", container, fileName)
	defer func() { endSpan(span, err) }()

	err = p.client.RemoveObject(ctx, container, fileName, minio.RemoveObjectOptions{})
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil
		}
		return storageErr(p.Name(), "remove", container, fileName, err)
	}
	return nil
}

// GetURL returns the static public URL when a public base is configured, or a
// presigned GET URL otherwise.
// For local MinIO with a public base: "http://localhost:9000/media/<key>".
func (p *MinioProvider) GetURL(ctx context.Context, container, fileName string) (string, error) {
	if err := checkAddress(container, fileName); err != nil {
		return "", err
	}
	if p.publicBase != "" {
		return publicURL(p.publicBase, container, fileName), nil
	}
	u, err := p.client.PresignedGetObject(ctx, container, fileName, p.presignTTL, url.Values{})
	if err != nil {
		return "", storageErr(p.Name(), "presign", container, fileName, err)
	}
	return u.String(), nil
}

func (p *MinioProvider) mapErr(op, container, fileName string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return notFound(container, fileName)
	}
	return storageErr(p.Name(), op, container, fileName, err)
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
