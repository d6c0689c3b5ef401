package mjpeg

import (
	"context"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// Codec exposes the MJPEG AVI reader and writer through the frame codec and
// source prober ports.
type Codec struct {
	Quality int
}

func NewCodec(quality int) *Codec {
	return &Codec{Quality: quality}
}

func (c *Codec) Extension() string { return ".avi" }

func (c *Codec) OpenReader(ctx context.Context, path string) (port.FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rd, err := Open(path)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

func (c *Codec) CreateWriter(ctx context.Context, path string, width, height int, fps float64) (port.FrameWriter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := Create(path, width, height, fps, c.Quality)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Probe reads the stream headers of an MJPEG AVI file.
func (c *Codec) Probe(ctx context.Context, path string) (domain.SourceInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.SourceInfo{}, err
	}
	rd, err := Open(path)
	if err != nil {
		return domain.SourceInfo{}, err
	}
	defer func() { _ = rd.Close() }()
	return rd.Info(), nil
}

var (
	_ port.FrameCodec   = (*Codec)(nil)
	_ port.SourceProber = (*Codec)(nil)
	_ port.FrameReader  = (*Reader)(nil)
	_ port.FrameWriter  = (*Writer)(nil)
)
