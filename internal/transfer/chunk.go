package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"blobferry/internal/events"
	"blobferry/internal/storage"
	"blobferry/internal/worker"
)

// MiB is the unit all user-facing chunk sizes are expressed in.
const MiB = 1 << 20

// DefaultChunkSize is the chunking unit for large uploads.
const DefaultChunkSize = 32 * MiB

// ChunkRange is one contiguous byte range of a large object.
type ChunkRange struct {
	Index  int
	Offset int64
	Length int64
}

// PlanChunks partitions [0, totalSize) into ranges of at most chunkSize
// bytes. The ranges are contiguous, non-overlapping, indexed 0..n-1 in
// ascending order, and their lengths sum to totalSize. There is always at
// least one range, so a zero-size file still yields one empty chunk and the
// compose step has a part to reference.
func PlanChunks(totalSize, chunkSize int64) ([]ChunkRange, error) {
	if totalSize < 0 {
		return nil, fmt.Errorf("total size must be non-negative, got %d", totalSize)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	count := (totalSize + chunkSize - 1) / chunkSize
	if count < 1 {
		count = 1
	}

	ranges := make([]ChunkRange, 0, count)
	for i := int64(0); i < count; i++ {
		offset := i * chunkSize
		length := chunkSize
		if offset+length > totalSize {
			length = totalSize - offset
		}
		ranges = append(ranges, ChunkRange{Index: int(i), Offset: offset, Length: length})
	}

	return ranges, nil
}

// ChunkUploader uploads a large object as independently transferred chunks
// and composes the final object from them. Chunking is opt-in: callers
// choose it explicitly, it is never triggered by size alone.
type ChunkUploader struct {
	client  storage.Client
	emitter events.Emitter
	pool    *worker.Pool
}

// NewChunkUploader creates a chunk uploader with the given concurrency
// bound. A nil emitter is replaced by a no-op one.
func NewChunkUploader(client storage.Client, emitter events.Emitter, maxWorkers int) *ChunkUploader {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &ChunkUploader{
		client:  client,
		emitter: emitter,
		pool:    worker.NewPool(maxWorkers),
	}
}

// Upload transfers sourcePath to key in chunks of chunkSize bytes
// (DefaultChunkSize when non-positive), then composes the object. Compose
// runs only if every chunk succeeded; any chunk failure aborts the whole
// upload and returns a *Failure of kind KindPartialChunk. The abort is best
// effort: if it fails too, already-uploaded chunks remain on the remote as
// orphaned parts under the upload ID named in the error, and cleaning them
// up is the caller's responsibility.
func (c *ChunkUploader) Upload(ctx context.Context, sourcePath, key string, chunkSize int64) (storage.ObjectInfo, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	file, err := os.Open(sourcePath)
	if err != nil {
		return storage.ObjectInfo{}, newFailure(classify(err), fmt.Sprintf("open %s", sourcePath), err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return storage.ObjectInfo{}, newFailure(classify(err), fmt.Sprintf("stat %s", sourcePath), err)
	}

	ranges, err := PlanChunks(info.Size(), chunkSize)
	if err != nil {
		return storage.ObjectInfo{}, newFailure(KindPartialChunk, "plan chunks", err)
	}

	uploadID, err := c.client.NewMultipartUpload(ctx, key, storage.PutOptions{
		ContentType: contentTypeFor(sourcePath),
	})
	if err != nil {
		return storage.ObjectInfo{}, newFailure(classify(err), fmt.Sprintf("initiate chunked upload for %s", key), err)
	}

	parts := make([]storage.CompletedPart, len(ranges))
	errs := make([]error, len(ranges))

	c.pool.Run(ctx, len(ranges), func(ctx context.Context, i int) {
		defer trackInflight(c.emitter, events.OpChunk)()
		r := ranges[i]
		start := time.Now()

		// Concurrent readers share the file handle via ReadAt.
		section := io.NewSectionReader(file, r.Offset, r.Length)
		etag, err := c.client.UploadPart(ctx, key, uploadID, r.Index+1, section, r.Length)

		c.emitter.Emit(events.Event{
			Op:       events.OpChunk,
			Key:      key,
			Size:     r.Length,
			Duration: time.Since(start),
			Attempts: 1,
			Err:      err,
		})

		if err != nil {
			errs[i] = fmt.Errorf("chunk %d (offset %d, length %d): %w", r.Index, r.Offset, r.Length, err)
			return
		}
		parts[i] = storage.CompletedPart{PartNumber: r.Index + 1, ETag: etag}
	})

	for _, chunkErr := range errs {
		if chunkErr == nil {
			continue
		}
		if abortErr := c.client.AbortMultipartUpload(ctx, key, uploadID); abortErr != nil {
			return storage.ObjectInfo{}, newFailure(KindPartialChunk,
				fmt.Sprintf("chunked upload of %s failed and abort of upload %s failed too, uploaded chunks remain orphaned (abort error: %v)",
					key, uploadID, abortErr), chunkErr)
		}
		return storage.ObjectInfo{}, newFailure(KindPartialChunk,
			fmt.Sprintf("chunked upload of %s aborted", key), chunkErr)
	}

	handle, err := c.client.CompleteMultipartUpload(ctx, key, uploadID, parts)
	if err != nil {
		return storage.ObjectInfo{}, newFailure(classify(err), fmt.Sprintf("compose %s", key), err)
	}

	return handle, nil
}
