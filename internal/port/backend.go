package port

import (
	"context"

	"github.com/bnema/upscaler/internal/domain"
)

type BackendRequest struct {
	JobID        string
	InputPath    string
	OutputPath   string
	TargetWidth  int
	TargetHeight int
	// TargetFps is the requested output rate; zero keeps SourceFps.
	TargetFps int
	SourceFps float64
	Source    domain.SourceInfo
}

// OutputFps returns the frame rate the output should be encoded at.
func (r BackendRequest) OutputFps() float64 {
	if r.TargetFps > 0 {
		return float64(r.TargetFps)
	}
	return r.SourceFps
}

type BackendResult struct {
	// OutputPath is the file actually written. Backends may adjust the
	// container extension of the requested path.
	OutputPath string
}

// Backend is one processing strategy. On failure the output file and any
// workspace it created are removed before Run returns.
type Backend interface {
	Kind() domain.BackendKind
	Run(ctx context.Context, req BackendRequest, progress domain.ProgressFunc) (BackendResult, error)
}
