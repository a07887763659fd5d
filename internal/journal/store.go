package journal

import (
	"time"
)

// Status marks a journaled transfer outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is one transfer outcome within a batch. The journal is purely
// observational: the transfer engine never reads it to decide work.
type Record struct {
	BatchID   string        `json:"batch_id"`
	Op        string        `json:"op"`
	Key       string        `json:"key"`
	LocalPath string        `json:"local_path"`
	Size      int64         `json:"size"`
	Status    Status        `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists batch outcomes.
type Store interface {
	SaveRecord(record *Record) error
	ListFailed(batchID string) ([]*Record, error)
	Close() error
}
