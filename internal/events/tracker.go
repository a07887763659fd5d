package events

import (
	"fmt"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of a tracker.
type Stats struct {
	Succeeded      int64
	Failed         int64
	BytesSucceeded int64
	StartTime      time.Time
}

// Elapsed returns the wall time since tracking started.
func (s Stats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Tracker aggregates transfer events into batch-level statistics for the
// end-of-run summary. Chunk events are excluded so a large object counts
// once, not once per chunk.
type Tracker struct {
	mu    sync.Mutex
	stats Stats
}

// NewTracker creates a tracker with the clock started.
func NewTracker() *Tracker {
	return &Tracker{stats: Stats{StartTime: time.Now()}}
}

func (t *Tracker) Emit(e Event) {
	if e.Op == OpChunk {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Succeeded() {
		t.stats.Succeeded++
		t.stats.BytesSucceeded += e.Size
	} else {
		t.stats.Failed++
	}
}

// Snapshot returns the current statistics.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// FormatBytes renders a byte count in human-readable binary units.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
