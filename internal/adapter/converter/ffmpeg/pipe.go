package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/bnema/upscaler/internal/port"
)

// PipeCodec streams RGBA frames through ffmpeg over stdin/stdout so frames
// never touch the disk as individual images.
type PipeCodec struct {
	conv *Converter
}

func NewPipeCodec(conv *Converter) *PipeCodec {
	return &PipeCodec{conv: conv}
}

func (p *PipeCodec) Extension() string { return ".mp4" }

func (p *PipeCodec) OpenReader(ctx context.Context, path string) (port.FrameReader, error) {
	info, err := p.conv.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	args := []string{"-v", "error", "-i", path, "-f", "rawvideo", "-pix_fmt", "rgba", "-"}
	cmd := exec.CommandContext(ctx, p.conv.opts.FFmpegPath, args...)
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}
	tail := newTailBuffer(stderrTailBytes)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, executionError("decode", p.conv.opts.FFmpegPath, args, "", err)
	}

	frameSize := info.Width * info.Height * 4
	return &pipeReader{
		cmd:    cmd,
		args:   args,
		out:    bufio.NewReaderSize(stdout, frameSize),
		tail:   tail,
		width:  info.Width,
		height: info.Height,
	}, nil
}

type pipeReader struct {
	cmd    *exec.Cmd
	args   []string
	out    *bufio.Reader
	tail   *tailBuffer
	width  int
	height int

	waitOnce sync.Once
	waitErr  error
}

func (r *pipeReader) Next() (image.Image, error) {
	frame := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	_, err := io.ReadFull(r.out, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF):
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("decode: truncated frame")
	default:
		return nil, fmt.Errorf("decode: %w", err)
	}
}

func (r *pipeReader) wait() error {
	r.waitOnce.Do(func() {
		if err := r.cmd.Wait(); err != nil {
			r.waitErr = executionError("decode", r.cmd.Path, r.args, r.tail.String(), err)
		}
	})
	return r.waitErr
}

func (r *pipeReader) Close() error {
	if r.cmd.ProcessState == nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.wait()
	return nil
}

func (p *PipeCodec) CreateWriter(ctx context.Context, path string, width, height int, fps float64) (port.FrameWriter, error) {
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("encode: invalid frame rate %v", fps)
	}

	opts := p.conv.opts
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-pix_fmt", "yuv420p",
		path,
	}
	cmd := exec.CommandContext(ctx, opts.FFmpegPath, args...)
	cmd.WaitDelay = waitDelay
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	tail := newTailBuffer(stderrTailBytes)
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, executionError("encode", opts.FFmpegPath, args, "", err)
	}

	return &pipeWriter{
		cmd:    cmd,
		args:   args,
		in:     stdin,
		tail:   tail,
		width:  width,
		height: height,
	}, nil
}

type pipeWriter struct {
	cmd    *exec.Cmd
	args   []string
	in     io.WriteCloser
	tail   *tailBuffer
	width  int
	height int
	closed bool
}

func (w *pipeWriter) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("encode: frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	frame := toNRGBA(img)
	if _, err := w.in.Write(frame.Pix); err != nil {
		return executionError("encode", w.cmd.Path, w.args, w.tail.String(), err)
	}
	return nil
}

func (w *pipeWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.in.Close()
	if err := w.cmd.Wait(); err != nil {
		return executionError("encode", w.cmd.Path, w.args, w.tail.String(), err)
	}
	return nil
}

// toNRGBA returns img as a tightly packed NRGBA image anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	return imaging.Clone(img)
}

var _ port.FrameCodec = (*PipeCodec)(nil)
