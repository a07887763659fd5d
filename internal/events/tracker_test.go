package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsObjects(t *testing.T) {
	tracker := NewTracker()

	tracker.Emit(Event{Op: OpUpload, Key: "a", Size: 100})
	tracker.Emit(Event{Op: OpUpload, Key: "b", Size: 50, Err: errors.New("boom")})
	tracker.Emit(Event{Op: OpDownload, Key: "c", Size: 25})

	// Chunk events are per-part observability, not per-object counts.
	tracker.Emit(Event{Op: OpChunk, Key: "a", Size: 1000})

	stats := tracker.Snapshot()
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(125), stats.BytesSucceeded)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	multi := Multi{a, b}

	multi.Emit(Event{Op: OpUpload, Key: "k", Size: 10})

	assert.Equal(t, int64(1), a.Snapshot().Succeeded)
	assert.Equal(t, int64(1), b.Snapshot().Succeeded)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{32 * 1024 * 1024, "32.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.bytes))
	}
}
