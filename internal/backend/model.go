package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// Local progress budget of the three model phases.
const (
	modelExtractEnd = 20
	modelEnhanceEnd = 50
)

// ModelUpscale extracts frames, enlarges each with a super-resolution model,
// resizes the result to the exact target and re-encodes.
type ModelUpscale struct {
	enhancer port.Enhancer
	codec    port.FrameCodec
	workRoot string
}

func NewModelUpscale(enhancer port.Enhancer, codec port.FrameCodec, workRoot string) *ModelUpscale {
	return &ModelUpscale{enhancer: enhancer, codec: codec, workRoot: workRoot}
}

func (b *ModelUpscale) Kind() domain.BackendKind { return domain.BackendModelUpscale }

func (b *ModelUpscale) Run(ctx context.Context, req port.BackendRequest, progress domain.ProgressFunc) (res port.BackendResult, err error) {
	if progress == nil {
		progress = func(int) {}
	}
	out := withExt(req.OutputPath, b.codec.Extension())

	ws, err := NewWorkspace(b.workRoot, req.JobID)
	if err != nil {
		return port.BackendResult{}, err
	}
	defer func() {
		_ = ws.Remove()
		if err != nil {
			discard(out)
		}
	}()

	progress(0)
	frames, err := b.extract(ctx, ws, req, domain.Span(progress, 0, modelExtractEnd))
	if err != nil {
		return port.BackendResult{}, err
	}

	if err := b.enhance(ctx, ws, req, frames, domain.Span(progress, modelExtractEnd, modelEnhanceEnd)); err != nil {
		return port.BackendResult{}, err
	}

	if err := b.encode(ctx, ws, req, out, frames, domain.Span(progress, modelEnhanceEnd, 100)); err != nil {
		return port.BackendResult{}, err
	}

	return port.BackendResult{OutputPath: out}, nil
}

func (b *ModelUpscale) extract(ctx context.Context, ws *Workspace, req port.BackendRequest, progress domain.ProgressFunc) (int, error) {
	dir, err := ws.Subdir("frames")
	if err != nil {
		return 0, err
	}

	rd, err := b.codec.OpenReader(ctx, req.InputPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rd.Close() }()

	total := req.Source.EstimatedFrames()
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		img, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}

		n++
		path := FramePath(dir, n)
		if err := imaging.Save(img, path); err != nil {
			return 0, &domain.BackendIOError{Op: "save frame", Path: path, Err: err}
		}
		progress(frameProgress(n, total))
	}

	if n == 0 {
		return 0, noFrames(req.InputPath)
	}
	progress(100)
	return n, nil
}

func (b *ModelUpscale) enhance(ctx context.Context, ws *Workspace, req port.BackendRequest, frames int, progress domain.ProgressFunc) error {
	src := ws.Path("frames")
	enhancedDir, err := ws.Subdir("enhanced")
	if err != nil {
		return err
	}
	scaledDir, err := ws.Subdir("scaled")
	if err != nil {
		return err
	}
	factor := b.enhancer.Scale()

	for i := 1; i <= frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		in := FramePath(src, i)
		enhanced := FramePath(enhancedDir, i)
		if err := b.enhancer.Enhance(ctx, in, enhanced); err != nil {
			return err
		}

		img, err := imaging.Open(enhanced)
		if err != nil {
			return &domain.BackendIOError{Op: "open enhanced frame", Path: enhanced, Err: err}
		}
		if err := checkEnhanced(img.Bounds(), req.Source, factor); err != nil {
			return &domain.BackendIOError{Op: "check enhanced frame", Path: enhanced, Err: err}
		}
		resized := img
		if bounds := img.Bounds(); bounds.Dx() != req.TargetWidth || bounds.Dy() != req.TargetHeight {
			resized = imaging.Resize(img, req.TargetWidth, req.TargetHeight, imaging.Lanczos)
		}
		scaled := FramePath(scaledDir, i)
		if err := imaging.Save(resized, scaled); err != nil {
			return &domain.BackendIOError{Op: "save frame", Path: scaled, Err: err}
		}

		// Intermediates are no longer needed once the scaled frame exists.
		_ = os.Remove(in)
		_ = os.Remove(enhanced)

		progress(frameProgress(i, frames))
	}

	progress(100)
	return nil
}

func (b *ModelUpscale) encode(ctx context.Context, ws *Workspace, req port.BackendRequest, out string, frames int, progress domain.ProgressFunc) (err error) {
	scaledDir := ws.Path("scaled")
	fps := outputFps(req)

	if err := ensureParent(out); err != nil {
		return err
	}
	w, err := b.codec.CreateWriter(ctx, out, req.TargetWidth, req.TargetHeight, fps)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Close()
		}
	}()

	rate := newFrameRate(req.SourceFps, fps)
	written := 0
	for i := 1; i <= frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		copies := rate.next()
		if copies > 0 {
			path := FramePath(scaledDir, i)
			img, err := imaging.Open(path)
			if err != nil {
				return &domain.BackendIOError{Op: "open scaled frame", Path: path, Err: err}
			}
			for c := 0; c < copies; c++ {
				if err := w.WriteFrame(img); err != nil {
					return err
				}
				written++
			}
		}
		progress(frameProgress(i, frames))
	}

	if written == 0 {
		return noFrames(req.InputPath)
	}

	if err := w.Close(); err != nil {
		return err
	}
	progress(100)
	return nil
}

// checkEnhanced verifies the model enlarged the frame by its advertised
// factor. Unknown source dimensions skip the check.
func checkEnhanced(got image.Rectangle, src domain.SourceInfo, factor int) error {
	if factor <= 0 || src.Width <= 0 || src.Height <= 0 {
		return nil
	}
	wantW, wantH := src.Width*factor, src.Height*factor
	if got.Dx() != wantW || got.Dy() != wantH {
		return fmt.Errorf("enhancer produced %dx%d, want %dx%d at x%d", got.Dx(), got.Dy(), wantW, wantH, factor)
	}
	return nil
}

var _ port.Backend = (*ModelUpscale)(nil)
