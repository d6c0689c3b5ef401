package port

import (
	"context"

	"github.com/bnema/upscaler/internal/domain"
)

// VideoEncoder drives an external encoder binary. Every call blocks until the
// process exits; progress is reported as a local 0-100 estimate.
type VideoEncoder interface {
	Version(ctx context.Context) (string, error)
	Scale(ctx context.Context, inputPath, outputPath string, width, height int, progress domain.ProgressFunc) error
	Interpolate(ctx context.Context, inputPath, outputPath string, fps int, progress domain.ProgressFunc) error
}

// SourceProber reads source metadata from a media file.
type SourceProber interface {
	Probe(ctx context.Context, path string) (domain.SourceInfo, error)
}
