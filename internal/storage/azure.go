package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureProvider stores blobs in Azure Blob Storage (or Azurite).
type AzureProvider struct {
	client     *azblob.Client
	publicBase string

	containers sync.Map
}

// NewAzureProvider connects with a storage account connection string.
func NewAzureProvider(connectionString, publicBase string) (*AzureProvider, error) {
	if connectionString == "" {
		return nil, errors.New("azure connection string is required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &AzureProvider{client: client, publicBase: publicBase}, nil
}

func (p *AzureProvider) Name() string { return "azure" }

func (p *AzureProvider) ensureContainer(ctx context.Context, container string) error {
	if _, ok := p.containers.Load(container); ok {
		return nil
	}
	_, err := p.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %q: %w", container, err)
	}
	p.containers.Store(container, struct{}{})
	return nil
}

func (p *AzureProvider) Upload(ctx context.Context, container, fileName string, content io.Reader) (res *UploadResult, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Upload", container, fileName)
	defer func() { endSpan(span, err) }()

	if err := checkAddress(container, fileName); err != nil {
		return nil, err
	}
	if err := p.ensureContainer(ctx, container); err != nil {
		return nil, storageErr(p.Name(), "ensure container", container, fileName, err)
	}

	contentType := ContentTypeFor(fileName)
	cr := &countingReader{r: content}
	_, err = p.client.UploadStream(ctx, container, fileName, cr, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return nil, storageErr(p.Name(), "upload", container, fileName, err)
	}

	url, err := p.GetURL(ctx, container, fileName)
	if err != nil {
		return nil, err
	}
	return &UploadResult{FileName: fileName, URL: url, Size: cr.n, ContentType: contentType}, nil
}

func (p *AzureProvider) Download(ctx context.Context, container, fileName string) (rc io.ReadCloser, err error) {
	ctx, span := startSpan(ctx, p.Name(), "Download", container, fileName)
	defer func() { endSpan(span, err) }()

	resp, err := p.client.DownloadStream(ctx, container, fileName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, notFound(container, fileName)
		}
		return nil, storageErr(p.Name(), "download", container, fileName, err)
	}
	return resp.Body, nil
}

func (p *AzureProvider) Delete(ctx context.Context, container, fileName string) (err error) {
	ctx, span := startSpan(ctx, p.Name(), "Delete", container, fileName)
	defer func() { endSpan(span, err) }()

	_, err = p.client.DeleteBlob(ctx, container, fileName, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return storageErr(p.Name(), "delete", container, fileName, err)
	}
	return nil
}

// GetURL returns the blob URL. It is only fetchable anonymously when the
// container allows public access.
func (p *AzureProvider) GetURL(_ context.Context, container, fileName string) (string, error) {
	if err := checkAddress(container, fileName); err != nil {
		return "", err
	}
	if p.publicBase != "" {
		return publicURL(p.publicBase, container, fileName), nil
	}
	return p.client.ServiceClient().NewContainerClient(container).NewBlobClient(fileName).URL(), nil
}
