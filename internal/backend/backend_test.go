package backend

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/upscaler/internal/adapter/codec/mjpeg"
	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) report(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) all() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func assertMonotonic(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards at %d: %v", i, values)
	}
	for _, v := range values {
		assert.True(t, v >= 0 && v <= 100, "progress %d out of range", v)
	}
}

// writeAVI produces an MJPEG clip of solid frames.
func writeAVI(t *testing.T, path string, w, h, frames int, fps float64) {
	t.Helper()
	wr, err := mjpeg.Create(path, w, h, fps, mjpeg.DefaultQuality)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		c := color.NRGBA{R: uint8(40 * i), G: 90, B: 160, A: 255}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
		require.NoError(t, wr.WriteFrame(img))
	}
	require.NoError(t, wr.Close())
}

func countFrames(t *testing.T, path string) (int, image.Rectangle) {
	t.Helper()
	rd, err := mjpeg.Open(path)
	require.NoError(t, err)
	defer func() { _ = rd.Close() }()

	n := 0
	var bounds image.Rectangle
	for {
		img, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return n, bounds
		}
		require.NoError(t, err)
		bounds = img.Bounds()
		n++
	}
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestFrameRate(t *testing.T) {
	tests := []struct {
		name           string
		source, target float64
		in             int
		wantOut        int
	}{
		{name: "same rate", source: 30, target: 30, in: 30, wantOut: 30},
		{name: "double", source: 24, target: 48, in: 24, wantOut: 48},
		{name: "24 to 60", source: 24, target: 60, in: 24, wantOut: 60},
		{name: "half", source: 60, target: 30, in: 60, wantOut: 30},
		{name: "unknown source keeps frames", source: 0, target: 60, in: 10, wantOut: 10},
		{name: "tiny ratio keeps first frame", source: 60, target: 1, in: 10, wantOut: 1},
		{name: "one second at 1 fps", source: 60, target: 1, in: 60, wantOut: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := newFrameRate(tt.source, tt.target)
			out := 0
			for i := 0; i < tt.in; i++ {
				n := fr.next()
				assert.GreaterOrEqual(t, n, 0)
				out += n
			}
			assert.Equal(t, tt.wantOut, out)
		})
	}
}

func TestWithExt(t *testing.T) {
	assert.Equal(t, "/p/job_upscaled.avi", withExt("/p/job_upscaled.mp4", ".avi"))
	assert.Equal(t, "/p/job_upscaled.mp4", withExt("/p/job_upscaled", ".mp4"))
}

func TestOutputFps(t *testing.T) {
	assert.Equal(t, 60.0, outputFps(port.BackendRequest{TargetFps: 60, SourceFps: 24}))
	assert.Equal(t, 24.0, outputFps(port.BackendRequest{SourceFps: 24}))
	assert.Equal(t, float64(fallbackFps), outputFps(port.BackendRequest{}))
}

func TestWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")

	ws, err := NewWorkspace(root, "abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir), "job-abc-"))
	assert.DirExists(t, ws.Dir)

	dir, err := ws.Subdir("frames")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_000007.png"), FramePath(dir, 7))

	require.NoError(t, ws.Remove())
	assert.NoDirExists(t, ws.Dir)
}

func TestSet(t *testing.T) {
	native := mjpeg.NewCodec(0)
	enc := &fakeEncoder{}
	set := &Set{Encoder: enc, EncoderProber: enc, EncoderCodec: native, Native: native, Enhancer: &fakeEnhancer{}, WorkDir: t.TempDir()}

	assert.Same(t, enc, set.Prober(domain.Capabilities{Encoder: true}))
	assert.Same(t, native, set.Prober(domain.Capabilities{}))

	for _, kind := range domain.BackendPreference() {
		b, err := set.Backend(kind, domain.Capabilities{Encoder: true, Accelerator: true})
		require.NoError(t, err)
		assert.Equal(t, kind, b.Kind())
	}

	_, err := set.Backend("teleport", domain.Capabilities{})
	assert.Error(t, err)
}

// fakeEncoder stands in for the ffmpeg adapter.
type fakeEncoder struct {
	scaleErr       error
	interpolateErr error
	calls          []string
	lastFps        int
}

func (f *fakeEncoder) Version(context.Context) (string, error) { return "fake 1.0", nil }

func (f *fakeEncoder) Probe(context.Context, string) (domain.SourceInfo, error) {
	return domain.SourceInfo{Width: 64, Height: 36, FrameRate: 24}, nil
}

func (f *fakeEncoder) Scale(_ context.Context, _, out string, w, h int, progress domain.ProgressFunc) error {
	f.calls = append(f.calls, "scale")
	progress(0)
	progress(50)
	if f.scaleErr != nil {
		return f.scaleErr
	}
	if err := os.WriteFile(out, []byte("scaled"), 0o600); err != nil {
		return err
	}
	progress(100)
	return nil
}

func (f *fakeEncoder) Interpolate(_ context.Context, in, out string, fps int, progress domain.ProgressFunc) error {
	f.calls = append(f.calls, "interpolate")
	f.lastFps = fps
	progress(0)
	if f.interpolateErr != nil {
		return f.interpolateErr
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, append(data, []byte("+interpolated")...), 0o600); err != nil {
		return err
	}
	progress(100)
	return nil
}

// fakeEnhancer doubles frames with a box filter. claimed overrides the
// factor it advertises.
type fakeEnhancer struct {
	failAt  int
	calls   int
	claimed int
}

func (f *fakeEnhancer) Scale() int {
	if f.claimed > 0 {
		return f.claimed
	}
	return 2
}

func (f *fakeEnhancer) Enhance(_ context.Context, in, out string) error {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return &domain.BackendExecutionError{Stage: "enhance", Command: "fake", ExitCode: 1, Output: "out of VRAM"}
	}
	img, err := imaging.Open(in)
	if err != nil {
		return err
	}
	b := img.Bounds()
	return imaging.Save(imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Box), out)
}
