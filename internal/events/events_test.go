package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingTracker records inflight notifications.
type countingTracker struct {
	Nop
	started  []Op
	finished []Op
}

func (c *countingTracker) TaskStarted(op Op)  { c.started = append(c.started, op) }
func (c *countingTracker) TaskFinished(op Op) { c.finished = append(c.finished, op) }

func TestMultiForwardsInflightToTrackers(t *testing.T) {
	tracking := &countingTracker{}
	plain := NewTracker() // does not implement InflightTracker
	multi := Multi{plain, tracking}

	multi.TaskStarted(OpUpload)
	multi.TaskStarted(OpChunk)
	multi.TaskFinished(OpChunk)
	multi.TaskFinished(OpUpload)

	assert.Equal(t, []Op{OpUpload, OpChunk}, tracking.started)
	assert.Equal(t, []Op{OpChunk, OpUpload}, tracking.finished)
}

func TestMultiIsAnInflightTracker(t *testing.T) {
	var emitter Emitter = Multi{}

	_, ok := emitter.(InflightTracker)
	assert.True(t, ok)
}
