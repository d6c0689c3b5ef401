package ffmpeg

import (
	"context"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeCodec_RoundTrip(t *testing.T) {
	requireRealFFmpeg(t)

	codec := NewPipeCodec(NewConverter(Options{}))
	path := filepath.Join(t.TempDir(), "clip"+codec.Extension())
	ctx := context.Background()

	w, err := codec.CreateWriter(ctx, path, 64, 48, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = uint8(i*40), 128, 64, 255
		}
		require.NoError(t, w.WriteFrame(img))
	}
	require.NoError(t, w.Close())

	r, err := codec.OpenReader(ctx, path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	frames := 0
	for {
		img, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
		frames++
	}
	assert.Equal(t, 5, frames)
}

func TestPipeWriter_RejectsWrongSize(t *testing.T) {
	requireRealFFmpeg(t)

	codec := NewPipeCodec(NewConverter(Options{}))
	w, err := codec.CreateWriter(context.Background(), filepath.Join(t.TempDir(), "x.mp4"), 64, 48, 10)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var wrong image.Image = image.NewUniform(color.Black)
	err = w.WriteFrame(wrong)
	assert.Error(t, err)
}

func TestPipeCodec_InvalidFrameRate(t *testing.T) {
	codec := NewPipeCodec(NewConverter(Options{}))
	_, err := codec.CreateWriter(context.Background(), "out.mp4", 64, 48, 0)
	assert.Error(t, err)
}
