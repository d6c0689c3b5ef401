package domain

import (
	"strings"
	"time"
)

type ResolutionClass string

const (
	Resolution720p  ResolutionClass = "720p"
	Resolution1080p ResolutionClass = "1080p"
	Resolution4K    ResolutionClass = "4k"
)

// ParseResolution maps a user supplied class name to a known class.
// Unrecognized names fall back to 720p.
func ParseResolution(s string) ResolutionClass {
	switch ResolutionClass(strings.ToLower(strings.TrimSpace(s))) {
	case Resolution1080p:
		return Resolution1080p
	case Resolution4K:
		return Resolution4K
	default:
		return Resolution720p
	}
}

type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

const (
	ProgressStarted  = 10
	ProgressResolved = 20
	ProgressCeiling  = 95
	ProgressDone     = 100
)

// Descriptor is the immutable unit of work handed to the worker.
type Descriptor struct {
	ID         string
	InputPath  string
	OutputPath string
	Resolution ResolutionClass
	Fps        int
}

// Record is the externally visible status of a job.
type Record struct {
	ID          string          `json:"job_id"`
	State       JobState        `json:"status"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	InputFile   string          `json:"input_file"`
	OutputFile  string          `json:"output_file"`
	Resolution  ResolutionClass `json:"resolution"`
	Fps         int             `json:"fps"`
	Backend     BackendKind     `json:"backend,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

func NewRecord(d Descriptor, inputFile, outputFile string) Record {
	return Record{
		ID:          d.ID,
		State:       JobStateQueued,
		InputFile:   inputFile,
		OutputFile:  outputFile,
		Resolution:  d.Resolution,
		Fps:         d.Fps,
		SubmittedAt: time.Now().UTC(),
	}
}

func (r *Record) Start() error {
	if r.State != JobStateQueued {
		return transitionError(r.State, JobStateProcessing)
	}
	now := time.Now().UTC()
	r.State = JobStateProcessing
	r.StartedAt = &now
	r.raise(ProgressStarted)
	return nil
}

// Advance raises progress while processing. Lower values are ignored and
// values are capped at ProgressCeiling until Complete.
func (r *Record) Advance(progress int) error {
	if r.State != JobStateProcessing {
		return transitionError(r.State, JobStateProcessing)
	}
	if progress > ProgressCeiling {
		progress = ProgressCeiling
	}
	r.raise(progress)
	return nil
}

func (r *Record) SelectBackend(kind BackendKind) error {
	if r.State != JobStateProcessing {
		return transitionError(r.State, JobStateProcessing)
	}
	r.Backend = kind
	return nil
}

func (r *Record) Complete(outputFile string) error {
	if r.State != JobStateProcessing {
		return transitionError(r.State, JobStateCompleted)
	}
	now := time.Now().UTC()
	r.State = JobStateCompleted
	r.Progress = ProgressDone
	r.FinishedAt = &now
	if outputFile != "" {
		r.OutputFile = outputFile
	}
	return nil
}

// Fail records err verbatim. Progress keeps its last value.
func (r *Record) Fail(err error) error {
	if r.State.IsTerminal() {
		return transitionError(r.State, JobStateFailed)
	}
	now := time.Now().UTC()
	r.State = JobStateFailed
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
	return nil
}

func (r *Record) raise(progress int) {
	if progress > r.Progress {
		r.Progress = progress
	}
}

// Event is published on every observable change of a job record.
type Event struct {
	JobID    string   `json:"job_id"`
	State    JobState `json:"status"`
	Progress int      `json:"progress"`
	Error    string   `json:"error,omitempty"`
}

func (r Record) Event() Event {
	return Event{
		JobID:    r.ID,
		State:    r.State,
		Progress: r.Progress,
		Error:    r.Error,
	}
}
