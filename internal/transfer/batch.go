package transfer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"blobferry/internal/events"
	"blobferry/internal/keys"
	"blobferry/internal/storage"
	"blobferry/internal/worker"
)

// BatchOptions configures one batch call. It is built once and not mutated
// while the batch runs.
type BatchOptions struct {
	Naming keys.Naming
	// ChunkSize, when positive, is forwarded to each upload as a client
	// buffering hint.
	ChunkSize int64
}

// Orchestrator expands file patterns into transfer tasks and drives them
// through a bounded pool. The pool and all task state live for one batch
// call only.
type Orchestrator struct {
	client  storage.Client
	unit    *Unit
	workers int
}

// NewOrchestrator creates an orchestrator. maxWorkers bounds concurrency
// per batch; non-positive means min(8, host parallelism).
func NewOrchestrator(client storage.Client, emitter events.Emitter, maxWorkers int) *Orchestrator {
	return &Orchestrator{
		client:  client,
		unit:    NewUnit(client, emitter),
		workers: maxWorkers,
	}
}

// UploadBatch matches pattern (doublestar syntax, `**` supported) under
// root, resolves a destination key per matched file, and uploads them all
// concurrently. The returned slice has one entry per match, in filesystem
// traversal order; matches are not re-sorted. Per-task failures never
// surface as an error; the error return covers only pattern expansion.
func (o *Orchestrator) UploadBatch(ctx context.Context, root, pattern string, opts BatchOptions) ([]Result, error) {
	tasks, err := o.expand(root, pattern, opts)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, tasks, o.unit.Upload), nil
}

// DownloadBatch lists remote objects under prefix and downloads each to
// destDir, preserving key paths. Results are ordered by listing order.
func (o *Orchestrator) DownloadBatch(ctx context.Context, prefix, destDir string) ([]Result, error) {
	tasks, err := o.listTasks(ctx, prefix, destDir)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, tasks, o.unit.Download), nil
}

// run executes tasks through a fresh pool. Slot i of the result slice is
// written only by the goroutine running task i, which is what keeps output
// order equal to submission order regardless of completion order.
func (o *Orchestrator) run(ctx context.Context, tasks []Task, op func(context.Context, Task) Result) []Result {
	results := make([]Result, len(tasks))
	pool := worker.NewPool(o.workers)
	pool.Run(ctx, len(tasks), func(ctx context.Context, i int) {
		results[i] = op(ctx, tasks[i])
	})
	return results
}

// expand walks root with the pattern and builds one task per matched file.
func (o *Orchestrator) expand(root, pattern string, opts BatchOptions) ([]Task, error) {
	var tasks []Task

	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		localPath := filepath.Join(root, filepath.FromSlash(path))
		tasks = append(tasks, Task{
			LocalPath: localPath,
			Key:       keys.Resolve(localPath, opts.Naming),
			Size:      info.Size(),
			ChunkSize: opts.ChunkSize,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expand pattern %q under %s: %w", pattern, root, err)
	}

	return tasks, nil
}

// listTasks drains the client's listing into download tasks.
func (o *Orchestrator) listTasks(ctx context.Context, prefix, destDir string) ([]Task, error) {
	objCh, errCh := o.client.ListObjects(ctx, prefix)

	var tasks []Task
	for {
		select {
		case obj, ok := <-objCh:
			if !ok {
				// The listing goroutine closes the error channel before the
				// object channel, so any pending error is readable here.
				if err := <-errCh; err != nil {
					return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
				}
				return tasks, nil
			}
			tasks = append(tasks, Task{
				LocalPath: filepath.Join(destDir, filepath.FromSlash(obj.Key)),
				Key:       obj.Key,
				Size:      obj.Size,
			})

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
