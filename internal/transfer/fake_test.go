package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"blobferry/internal/events"
	"blobferry/internal/storage"
)

// inflightEmitter counts inflight notifications from concurrent workers.
type inflightEmitter struct {
	mu       sync.Mutex
	started  int
	finished int
}

func (e *inflightEmitter) Emit(events.Event) {}

func (e *inflightEmitter) TaskStarted(events.Op) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started++
}

func (e *inflightEmitter) TaskFinished(events.Op) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished++
}

// fakeClient is an in-memory storage.Client for tests. Error injection is
// per concern: putErr fails every put, failKeys fails puts of specific keys,
// partErrs fails specific part numbers.
type fakeClient struct {
	mu sync.Mutex

	putErr       error
	putFailFirst int // fail this many leading put calls
	failKeys     map[string]error
	putCalls     int
	stored       map[string][]byte

	remote map[string][]byte
	getErr error

	listInfos []storage.ObjectInfo
	listErr   error

	partErrs     map[int]error
	uploadedPart map[int][]byte
	composeCalls int
	composedWith []storage.CompletedPart
	abortCalls   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		stored:       make(map[string][]byte),
		remote:       make(map[string][]byte),
		failKeys:     make(map[string]error),
		partErrs:     make(map[int]error),
		uploadedPart: make(map[int][]byte),
	}
}

func (f *fakeClient) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	f.mu.Lock()
	f.putCalls++
	err := f.putErr
	if err == nil && f.putCalls <= f.putFailFirst {
		err = errors.New("temporary failure")
	}
	if err == nil {
		err = f.failKeys[key]
	}
	f.mu.Unlock()

	if err != nil {
		return storage.ObjectInfo{}, err
	}

	data, readErr := io.ReadAll(reader)
	if readErr != nil {
		return storage.ObjectInfo{}, readErr
	}

	f.mu.Lock()
	f.stored[key] = data
	f.mu.Unlock()

	return storage.ObjectInfo{Key: key, Size: size, ETag: "fake-etag"}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, key string) (storage.Object, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	f.mu.Lock()
	data, ok := f.remote[key]
	f.mu.Unlock()

	if !ok {
		// minio surfaces missing keys lazily; mimic that by failing Stat with
		// the sentinel the real storage layer translates to.
		return &fakeObject{statErr: fmt.Errorf("get %s: %w", key, os.ErrNotExist)}, nil
	}

	return &fakeObject{
		Reader: bytes.NewReader(data),
		info:   storage.ObjectInfo{Key: key, Size: int64(len(data)), ETag: "fake-etag"},
	}, nil
}

func (f *fakeClient) StatObject(ctx context.Context, key string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.remote[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, os.ErrNotExist)
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) ListObjects(ctx context.Context, prefix string) (<-chan storage.ObjectInfo, <-chan error) {
	objCh := make(chan storage.ObjectInfo)
	errCh := make(chan error, 1)

	go func() {
		defer close(objCh)
		defer close(errCh)

		if f.listErr != nil {
			errCh <- f.listErr
			return
		}
		for _, info := range f.listInfos {
			select {
			case objCh <- info:
			case <-ctx.Done():
				return
			}
		}
	}()

	return objCh, errCh
}

func (f *fakeClient) NewMultipartUpload(ctx context.Context, key string, opts storage.PutOptions) (string, error) {
	return "fake-upload-id", nil
}

func (f *fakeClient) UploadPart(ctx context.Context, key, uploadID string, partNumber int, reader io.Reader, size int64) (string, error) {
	f.mu.Lock()
	err := f.partErrs[partNumber]
	f.mu.Unlock()
	if err != nil {
		return "", err
	}

	data, readErr := io.ReadAll(reader)
	if readErr != nil {
		return "", readErr
	}

	f.mu.Lock()
	f.uploadedPart[partNumber] = data
	f.mu.Unlock()

	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (f *fakeClient) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.composeCalls++
	f.composedWith = append([]storage.CompletedPart(nil), parts...)

	var total int64
	for _, data := range f.uploadedPart {
		total += int64(len(data))
	}
	return storage.ObjectInfo{Key: key, Size: total, ETag: "fake-composed-etag"}, nil
}

func (f *fakeClient) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	return nil
}

// fakeObject is a readable remote object backed by a byte slice.
type fakeObject struct {
	*bytes.Reader
	info    storage.ObjectInfo
	statErr error
}

func (o *fakeObject) Read(p []byte) (int, error) {
	if o.Reader == nil {
		return 0, o.statErr
	}
	return o.Reader.Read(p)
}

func (o *fakeObject) Close() error {
	return nil
}

func (o *fakeObject) Stat() (storage.ObjectInfo, error) {
	if o.statErr != nil {
		return storage.ObjectInfo{}, o.statErr
	}
	return o.info, nil
}
