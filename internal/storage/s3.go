package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dockerx/cms/internal/config"
)

// S3Provider stores blobs in AWS S3 or an S3-compatible service. The container
// is the bucket name.
type S3Provider struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presign    *s3.PresignClient
	region     string
	presignTTL time.Duration
	publicBase string

	buckets sync.Map // bucket name -> struct{}, buckets known to exist
}

// NewS3Provider builds the S3 client from static credentials when given, or
// the default AWS credential chain otherwise.
func NewS3Provider(ctx context.Context, cfg config.S3Storage, publicBase string) (*S3Provider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Provider{
		client:     client,
		uploader:   manager.NewUploader(client),
		presign:    s3.NewPresignClient(client),
		region:     cfg.Region,
		presignTTL: cfg.PresignTTL,
		publicBase: publicBase,
	}, nil
}

func (p *S3Provider) Name() string { return "s3" }

// ensureBucket creates bucket unless it is already known to exist.
func (p *S3Provider) ensureBucket(ctx context.Context, bucket string) error {
	if _, ok := p.buckets.Load(bucket); ok {
		return nil
	}

	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		p.buckets.Store(bucket, struct{}{})
		return nil
	}

	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if !errors.As(err, &nf) && !errors.As(err, &nsb) && !strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if p.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}
	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if !errors.As(err, &owned) && !errors.As(err, &exists) {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	p.buckets.Store(bucket, struct{}{})
	return nil
}

func (p *S3Provider) Upload(ctx context.Context, container, fileName string, content io.Reader) (res *UploadResult, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Upload", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}
	if err := p.ensureBucket(ctx, container); err != nil {
		return nil, storageErr(p.Name(), "ensure bucket", container, fileName, err)
	}

	contentType := ContentTypeFor(fileName)
	cr := &countingReader{r: content}
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(container),
		Key:         aws.String(fileName),
		Body:        cr,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, storageErr(p.Name(), "put", container, fileName, err)
	}

	url, err := p.GetURL(ctx, container, fileName)
	if err != nil {
		return nil, err
	}
	return &UploadResult{FileName: fileName, URL: url, Size: cr.n, ContentType: contentType}, nil
}

func (p *S3Provider) Download(ctx context.Context, container, fileName string) (rc io.ReadCloser, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Download", container, fileName)
	defer func() { endSpan(span, err) }()

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(fileName),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nsb *types.NoSuchBucket
		if errors.As(err, &nsk) || errors.As(err, &nsb) {
			return nil, notFound(container, fileName)
		}
		return nil, storageErr(p.Name(), "get", container, fileName, err)
	}
	return out.Body, nil
}

func (p *S3Provider) Delete(ctx context.Context, container, fileName string) (err error) {
	ctx, span := startSpan(ctx, p.Name(), "Delete", container, fileName)
	defer func() { endSpan(span, err) }()

	_, err = p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(fileName),
	})
	if err != nil {
		var nsb *types.NoSuchBucket
		if errors.As(err, &nsb) {
			return nil
		}
		return storageErr(p.Name(), "delete", container, fileName, err)
	}
	return nil
}

// GetURL returns a static URL when a public base is configured, otherwise a
// presigned GET URL valid for the configured TTL.
func (p *S3Provider) GetURL(ctx context.Context, container, fileName string) (string, error) {
	if err := checkAddress(container, fileName); err != nil {
		return "", err
	}
	if p.publicBase != "" {
		return publicURL(p.publicBase, container, fileName), nil
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(fileName),
	}, func(o *s3.PresignOptions) {
		o.Expires = p.presignTTL
	})
	if err != nil {
		return "", storageErr(p.Name(), "presign", container, fileName, err)
	}
	return req.URL, nil
}
