package storage

import (
	"context"
	"io"
	"time"
)

// Client is the object-storage collaborator the transfer engine drives. The
// bucket is fixed at client construction; keys are relative to it. The
// client must be safe for concurrent independent calls.
type Client interface {
	// Object operations
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	GetObject(ctx context.Context, key string) (Object, error)
	StatObject(ctx context.Context, key string) (ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) (<-chan ObjectInfo, <-chan error)

	// Part operations for chunked uploads. CompleteMultipartUpload composes
	// the final object from previously uploaded parts.
	NewMultipartUpload(ctx context.Context, key string, opts PutOptions) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, reader io.Reader, size int64) (string, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) (ObjectInfo, error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}

// Object is a readable remote object stream.
type Object interface {
	io.ReadCloser
	Stat() (ObjectInfo, error)
}

// ObjectInfo is the handle the store returns for an object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

// PutOptions carries per-put options.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string

	// PartSizeHint, when positive, is forwarded to the client as its
	// internal buffering/part size. It does not change what is stored.
	PartSizeHint int64
}

// CompletedPart identifies one uploaded part for composition.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// Config contains client configuration, fixed at session setup.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
}
