package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient implements Client against any S3-compatible endpoint using
// minio-go.
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a client bound to cfg.Bucket.
func NewMinIOClient(cfg Config) (*MinIOClient, error) {
	endpoint, err := cleanEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

// cleanEndpoint reduces an endpoint URL to host:port, which is what
// minio.New expects.
func cleanEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if strings.Contains(endpoint, "/") {
			return "", fmt.Errorf("endpoint contains path but no protocol")
		}
		return endpoint, nil
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return "", fmt.Errorf("endpoint URL cannot have a path, only host:port is allowed (got path: %s)", parsedURL.Path)
	}

	return parsedURL.Host, nil
}

// translateErr maps the service's missing-key codes onto os.ErrNotExist so
// callers classify with errors.Is instead of matching message text.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %w", os.ErrNotExist, err)
	}
	return err
}

// PutObject uploads an object and returns its handle.
func (c *MinIOClient) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
	if opts.PartSizeHint > 0 {
		putOpts.PartSize = uint64(opts.PartSizeHint)
	}

	info, err := c.client.PutObject(ctx, c.bucket, key, reader, size, putOpts)
	if err != nil {
		return ObjectInfo{}, translateErr(err)
	}

	return ObjectInfo{
		Key:  info.Key,
		Size: info.Size,
		ETag: info.ETag,
	}, nil
}

// GetObject retrieves an object stream.
func (c *MinIOClient) GetObject(ctx context.Context, key string) (Object, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateErr(err)
	}
	return &minioObject{obj}, nil
}

// StatObject gets object metadata without fetching content.
func (c *MinIOClient) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateErr(err)
	}

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		Metadata:     info.UserMetadata,
	}, nil
}

// ListObjects lists objects under prefix, recursively.
func (c *MinIOClient) ListObjects(ctx context.Context, prefix string) (<-chan ObjectInfo, <-chan error) {
	objCh := make(chan ObjectInfo)
	errCh := make(chan error, 1)

	go func() {
		defer close(objCh)
		defer close(errCh)

		for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				errCh <- translateErr(obj.Err)
				return
			}

			select {
			case objCh <- ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ETag:         obj.ETag,
				LastModified: obj.LastModified,
				ContentType:  obj.ContentType,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return objCh, errCh
}

// NewMultipartUpload initiates a chunked upload.
func (c *MinIOClient) NewMultipartUpload(ctx context.Context, key string, opts PutOptions) (string, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}

	core := &minio.Core{Client: c.client}
	uploadID, err := core.NewMultipartUpload(ctx, c.bucket, key, putOpts)
	return uploadID, translateErr(err)
}

// UploadPart uploads one chunk of a chunked upload.
func (c *MinIOClient) UploadPart(ctx context.Context, key, uploadID string, partNumber int, reader io.Reader, size int64) (string, error) {
	core := &minio.Core{Client: c.client}
	part, err := core.PutObjectPart(ctx, c.bucket, key, uploadID, partNumber, reader, size, minio.PutObjectPartOptions{})
	if err != nil {
		return "", translateErr(err)
	}
	return part.ETag, nil
}

// CompleteMultipartUpload composes the final object from uploaded parts.
func (c *MinIOClient) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (ObjectInfo, error) {
	minioParts := make([]minio.CompletePart, len(parts))
	for i, part := range parts {
		minioParts[i] = minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		}
	}

	core := &minio.Core{Client: c.client}
	info, err := core.CompleteMultipartUpload(ctx, c.bucket, key, uploadID, minioParts, minio.PutObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateErr(err)
	}

	return ObjectInfo{
		Key:  info.Key,
		Size: info.Size,
		ETag: info.ETag,
	}, nil
}

// AbortMultipartUpload abandons a chunked upload, releasing its parts.
func (c *MinIOClient) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	core := &minio.Core{Client: c.client}
	return translateErr(core.AbortMultipartUpload(ctx, c.bucket, key, uploadID))
}

// minioObject adapts minio.Object to the Object interface.
type minioObject struct {
	*minio.Object
}

func (o *minioObject) Stat() (ObjectInfo, error) {
	info, err := o.Object.Stat()
	if err != nil {
		return ObjectInfo{}, translateErr(err)
	}

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		Metadata:     info.UserMetadata,
	}, nil
}
