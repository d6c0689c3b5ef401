package port

import (
	"context"
	"image"
)

// FrameReader yields decoded frames in presentation order. Next returns
// io.EOF after the last frame.
type FrameReader interface {
	Next() (image.Image, error)
	Close() error
}

// FrameWriter encodes frames into a container. Close finalizes the file.
type FrameWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

// FrameCodec opens frame streams for a container format.
type FrameCodec interface {
	Extension() string
	OpenReader(ctx context.Context, path string) (FrameReader, error)
	CreateWriter(ctx context.Context, path string, width, height int, fps float64) (FrameWriter, error)
}
