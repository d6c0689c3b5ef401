package backend

import (
	"context"
	"path/filepath"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// scaleShare is the local progress budget of the scale stage when frame
// interpolation follows it.
const scaleShare = 40

// ExternalEncoder delegates scaling and optional motion interpolation to the
// external encoder process.
type ExternalEncoder struct {
	encoder  port.VideoEncoder
	workRoot string
}

func NewExternalEncoder(encoder port.VideoEncoder, workRoot string) *ExternalEncoder {
	return &ExternalEncoder{encoder: encoder, workRoot: workRoot}
}

func (b *ExternalEncoder) Kind() domain.BackendKind { return domain.BackendExternalEncoder }

// needsInterpolation reports whether the requested rate exceeds the source.
func needsInterpolation(req port.BackendRequest) bool {
	return req.TargetFps > 0 && float64(req.TargetFps) > req.SourceFps
}

func (b *ExternalEncoder) Run(ctx context.Context, req port.BackendRequest, progress domain.ProgressFunc) (res port.BackendResult, err error) {
	if progress == nil {
		progress = func(int) {}
	}

	ws, err := NewWorkspace(b.workRoot, req.JobID)
	if err != nil {
		return port.BackendResult{}, err
	}
	defer func() {
		_ = ws.Remove()
		if err != nil {
			discard(req.OutputPath)
		}
	}()

	interpolate := needsInterpolation(req)
	scaleProgress := domain.Span(progress, 0, 100)
	if interpolate {
		scaleProgress = domain.Span(progress, 0, scaleShare)
	}

	scaled := ws.Path("scaled" + extOf(req.OutputPath))
	if err := b.encoder.Scale(ctx, req.InputPath, scaled, req.TargetWidth, req.TargetHeight, scaleProgress); err != nil {
		return port.BackendResult{}, err
	}

	final := scaled
	if interpolate {
		final = ws.Path("interpolated" + extOf(req.OutputPath))
		if err := b.encoder.Interpolate(ctx, scaled, final, req.TargetFps, domain.Span(progress, scaleShare, 100)); err != nil {
			return port.BackendResult{}, err
		}
	}

	if err := promote(final, req.OutputPath); err != nil {
		return port.BackendResult{}, err
	}
	return port.BackendResult{OutputPath: req.OutputPath}, nil
}

func extOf(path string) string {
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".mp4"
}

var _ port.Backend = (*ExternalEncoder)(nil)
