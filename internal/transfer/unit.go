package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"blobferry/internal/events"
	"blobferry/internal/storage"
)

// maxUploadAttempts bounds the upload retry loop: one initial attempt plus
// exactly one retry. A persistent failure terminates after the second
// attempt, never later.
const maxUploadAttempts = 2

// Unit performs one object's upload or download against the storage client.
// All failures are recovered into the Result; Unit methods never return an
// error and never panic.
type Unit struct {
	client  storage.Client
	emitter events.Emitter
}

// NewUnit creates a transfer unit. A nil emitter is replaced by a no-op one.
func NewUnit(client storage.Client, emitter events.Emitter) *Unit {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Unit{client: client, emitter: emitter}
}

// trackInflight notifies the emitter that an operation started, if it cares,
// and returns the matching finish call. Emitters that do not implement
// events.InflightTracker get a no-op.
func trackInflight(emitter events.Emitter, op events.Op) func() {
	t, ok := emitter.(events.InflightTracker)
	if !ok {
		return func() {}
	}
	t.TaskStarted(op)
	return func() { t.TaskFinished(op) }
}

// Upload puts the task's file under its key. On any failure the whole
// operation is re-invoked once; a second failure becomes a Failure result.
func (u *Unit) Upload(ctx context.Context, task Task) Result {
	defer trackInflight(u.emitter, events.OpUpload)()
	start := time.Now()

	var handle storage.ObjectInfo
	var err error
	attempts := 0
	for attempts < maxUploadAttempts {
		attempts++
		handle, err = u.putOnce(ctx, task)
		if err == nil {
			break
		}
	}

	elapsed := time.Since(start)
	u.emitter.Emit(events.Event{
		Op:       events.OpUpload,
		Key:      task.Key,
		Size:     task.Size,
		Duration: elapsed,
		Attempts: attempts,
		Err:      err,
	})

	if err != nil {
		kind := KindRetryExhausted
		if classify(err) == KindNotFound {
			kind = KindNotFound
		}
		return Result{Task: task, Duration: elapsed, Err: newFailure(kind,
			fmt.Sprintf("upload %s failed after %d attempts", task.Key, attempts), err)}
	}

	return Result{Task: task, Handle: handle, Duration: elapsed}
}

// Download fetches the task's key and streams it to the task's local path.
// There is no retry: a second attempt would rewrite a partially downloaded
// local file, which is worse than reporting the failure.
func (u *Unit) Download(ctx context.Context, task Task) Result {
	defer trackInflight(u.emitter, events.OpDownload)()
	start := time.Now()

	handle, err := u.getOnce(ctx, task)

	elapsed := time.Since(start)
	u.emitter.Emit(events.Event{
		Op:       events.OpDownload,
		Key:      task.Key,
		Size:     handle.Size,
		Duration: elapsed,
		Attempts: 1,
		Err:      err,
	})

	if err != nil {
		return Result{Task: task, Duration: elapsed, Err: newFailure(classify(err),
			fmt.Sprintf("download %s failed", task.Key), err)}
	}

	return Result{Task: task, Handle: handle, Duration: elapsed}
}

func (u *Unit) putOnce(ctx context.Context, task Task) (storage.ObjectInfo, error) {
	file, err := os.Open(task.LocalPath)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}

	handle, err := u.client.PutObject(ctx, task.Key, file, info.Size(), storage.PutOptions{
		ContentType:  contentTypeFor(task.LocalPath),
		PartSizeHint: task.ChunkSize,
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object: %w", err)
	}

	return handle, nil
}

func (u *Unit) getOnce(ctx context.Context, task Task) (storage.ObjectInfo, error) {
	obj, err := u.client.GetObject(ctx, task.Key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()

	// Stat before writing anything locally; a missing key surfaces here.
	handle, err := obj.Stat()
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(task.LocalPath), 0o755); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(task.LocalPath)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(file, obj); err != nil {
		file.Close()
		return storage.ObjectInfo{}, fmt.Errorf("write file: %w", err)
	}

	if err := file.Close(); err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("close file: %w", err)
	}

	return handle, nil
}

// contentTypeFor guesses a content type from the file extension.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
