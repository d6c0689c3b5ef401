package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("job not found")
	ErrDuplicateJob     = errors.New("job already exists")
	ErrCapacityExceeded = errors.New("server is busy, queue is full")
	ErrNotReady         = errors.New("file not ready for download")
	ErrJobTerminal      = errors.New("job already finished")
	ErrInvalidRequest   = errors.New("invalid request")

	// ErrInterrupted is recorded on jobs a previous process left queued or
	// processing.
	ErrInterrupted = errors.New("interrupted by server restart")
)

func transitionError(from, to JobState) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, from)
	}
	return fmt.Errorf("invalid transition: %s -> %s", from, to)
}

// MalformedSourceError reports an unreadable input or one without usable
// video dimensions.
type MalformedSourceError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	msg := "malformed source"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }

// BackendExecutionError is returned when an external process exits non-zero.
// Output holds the captured diagnostic text.
type BackendExecutionError struct {
	Stage    string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *BackendExecutionError) Error() string {
	msg := fmt.Sprintf("%s failed (cmd=%s exit=%d)", e.Stage, e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *BackendExecutionError) Unwrap() error { return e.Err }

// BackendIOError wraps filesystem failures inside a backend.
type BackendIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *BackendIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *BackendIOError) Unwrap() error { return e.Err }
