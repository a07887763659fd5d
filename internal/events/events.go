// Package events decouples transfer observability from transfer logic. The
// transfer unit emits one structured event per finished operation; sinks
// (log, stats, metrics) subscribe through the Emitter interface.
package events

import (
	"time"

	"go.uber.org/zap"
)

// Op identifies the kind of transfer an event describes.
type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
	OpChunk    Op = "chunk"
)

// Event describes one finished transfer operation.
type Event struct {
	Op       Op
	Key      string
	Size     int64
	Duration time.Duration
	Attempts int
	Err      error
}

// Succeeded reports whether the operation completed without error.
func (e Event) Succeeded() bool {
	return e.Err == nil
}

// Emitter receives transfer events. Implementations must be safe for
// concurrent use; workers emit from multiple goroutines.
type Emitter interface {
	Emit(e Event)
}

// InflightTracker is optionally implemented by emitters that observe work
// in progress, not just completions. Started and Finished calls are always
// paired; the transfer unit guarantees Finished runs even when the
// operation fails.
type InflightTracker interface {
	TaskStarted(op Op)
	TaskFinished(op Op)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(Event) {}

// Multi fans one event out to several emitters.
type Multi []Emitter

func (m Multi) Emit(e Event) {
	for _, em := range m {
		em.Emit(e)
	}
}

// TaskStarted forwards to the members that track inflight work.
func (m Multi) TaskStarted(op Op) {
	for _, em := range m {
		if t, ok := em.(InflightTracker); ok {
			t.TaskStarted(op)
		}
	}
}

// TaskFinished forwards to the members that track inflight work.
func (m Multi) TaskFinished(op Op) {
	for _, em := range m {
		if t, ok := em.(InflightTracker); ok {
			t.TaskFinished(op)
		}
	}
}

// LogEmitter writes events to a zap logger.
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter creates a log-backed emitter.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(e Event) {
	fields := []zap.Field{
		zap.String("op", string(e.Op)),
		zap.String("key", e.Key),
		zap.Int64("size", e.Size),
		zap.Duration("duration", e.Duration),
		zap.Int("attempts", e.Attempts),
	}

	if e.Err != nil {
		l.logger.Warn("Transfer failed", append(fields, zap.Error(e.Err))...)
		return
	}
	l.logger.Info("Transfer completed", fields...)
}
