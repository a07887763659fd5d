package transfer

import (
	"errors"
	"fmt"
	"os"
)

// Kind classifies a transfer failure.
type Kind string

const (
	// KindNetwork covers transport and service errors.
	KindNetwork Kind = "network"
	// KindNotFound means the remote object or the local path is missing.
	KindNotFound Kind = "not_found"
	// KindPartialChunk means at least one chunk of a large upload failed,
	// so the object was never composed.
	KindPartialChunk Kind = "partial_chunk"
	// KindRetryExhausted means an upload failed again after its single
	// permitted retry.
	KindRetryExhausted Kind = "retry_exhausted"
)

// Failure is a recovered transfer error. It never escapes as a panic; it
// travels inside a Result.
type Failure struct {
	Kind    Kind
	Message string
	cause   error
}

func newFailure(kind Kind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, cause: cause}
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// classify maps a collaborator or filesystem error to a Kind. The storage
// layer translates the service's missing-key codes into os.ErrNotExist, so
// one sentinel covers both local and remote absence.
func classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, os.ErrNotExist) {
		return KindNotFound
	}
	return KindNetwork
}
