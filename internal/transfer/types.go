package transfer

import (
	"time"

	"blobferry/internal/storage"
)

// Task describes one object transfer. It is created once, consumed exactly
// once by the pool, and discarded with the batch.
type Task struct {
	// LocalPath is the local side of the transfer: source file for an
	// upload, destination file for a download.
	LocalPath string
	// Key is the remote object key.
	Key string
	// Size in bytes, when known at planning time.
	Size int64
	// ChunkSize, when positive, is forwarded to the storage client as a
	// buffering hint. It does not trigger chunked upload by itself.
	ChunkSize int64
}

// Result pairs a task with its outcome. Err is nil on success, and a
// *Failure otherwise; Handle is only meaningful on success.
type Result struct {
	Task     Task
	Handle   storage.ObjectInfo
	Duration time.Duration
	Err      *Failure
}

// Succeeded reports whether the transfer completed.
func (r Result) Succeeded() bool {
	return r.Err == nil
}
