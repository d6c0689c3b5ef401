package backend

import (
	"context"
	"errors"
	"io"

	"github.com/disintegration/imaging"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// RawResize decodes, resizes and re-encodes frame by frame in a single pass
// with no external process and no staging directory.
type RawResize struct {
	codec port.FrameCodec
}

func NewRawResize(codec port.FrameCodec) *RawResize {
	return &RawResize{codec: codec}
}

func (b *RawResize) Kind() domain.BackendKind { return domain.BackendRawResize }

func (b *RawResize) Run(ctx context.Context, req port.BackendRequest, progress domain.ProgressFunc) (res port.BackendResult, err error) {
	if progress == nil {
		progress = func(int) {}
	}
	out := withExt(req.OutputPath, b.codec.Extension())

	rd, err := b.codec.OpenReader(ctx, req.InputPath)
	if err != nil {
		return port.BackendResult{}, err
	}
	defer func() { _ = rd.Close() }()

	if err := ensureParent(out); err != nil {
		return port.BackendResult{}, err
	}
	w, err := b.codec.CreateWriter(ctx, out, req.TargetWidth, req.TargetHeight, outputFps(req))
	if err != nil {
		discard(out)
		return port.BackendResult{}, err
	}
	defer func() {
		if err != nil {
			_ = w.Close()
			discard(out)
		}
	}()

	total := req.Source.EstimatedFrames()
	rate := newFrameRate(req.SourceFps, outputFps(req))
	done, written := 0, 0
	progress(0)

	for {
		if err := ctx.Err(); err != nil {
			return port.BackendResult{}, err
		}

		img, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return port.BackendResult{}, err
		}

		copies := rate.next()
		if copies > 0 {
			frame := imaging.Resize(img, req.TargetWidth, req.TargetHeight, imaging.Lanczos)
			for i := 0; i < copies; i++ {
				if err := w.WriteFrame(frame); err != nil {
					return port.BackendResult{}, err
				}
				written++
			}
		}

		done++
		progress(frameProgress(done, total))
	}

	if written == 0 {
		return port.BackendResult{}, noFrames(req.InputPath)
	}
	if err := w.Close(); err != nil {
		return port.BackendResult{}, err
	}

	progress(100)
	return port.BackendResult{OutputPath: out}, nil
}

var _ port.Backend = (*RawResize)(nil)
