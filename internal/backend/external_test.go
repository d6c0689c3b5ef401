package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

func externalRequest(dir string, target int, source float64) port.BackendRequest {
	return port.BackendRequest{
		JobID:        "e1",
		InputPath:    filepath.Join(dir, "uploads", "e1_clip.mp4"),
		OutputPath:   filepath.Join(dir, "processed", "e1_upscaled.mp4"),
		TargetWidth:  1920,
		TargetHeight: 1080,
		TargetFps:    target,
		SourceFps:    source,
	}
}

func TestExternalEncoder_ScaleOnly(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "work")
	enc := &fakeEncoder{}
	b := NewExternalEncoder(enc, work)
	assert.Equal(t, domain.BackendExternalEncoder, b.Kind())

	progress := &progressLog{}
	res, err := b.Run(context.Background(), externalRequest(dir, 30, 30), progress.report)
	require.NoError(t, err)

	assert.Equal(t, []string{"scale"}, enc.calls, "no interpolation when target does not exceed source")
	assert.Equal(t, filepath.Join(dir, "processed", "e1_upscaled.mp4"), res.OutputPath)
	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "scaled", string(data))

	assert.Equal(t, []int{0, 50, 100}, progress.all(), "scale owns the whole local budget")
	assert.Empty(t, entries(t, work))
}

func TestExternalEncoder_ScaleAndInterpolate(t *testing.T) {
	dir := t.TempDir()
	work := filepath.Join(dir, "work")
	enc := &fakeEncoder{}

	progress := &progressLog{}
	res, err := NewExternalEncoder(enc, work).Run(context.Background(), externalRequest(dir, 60, 24), progress.report)
	require.NoError(t, err)

	assert.Equal(t, []string{"scale", "interpolate"}, enc.calls)
	assert.Equal(t, 60, enc.lastFps)
	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "scaled+interpolated", string(data))

	assert.Equal(t, []int{0, 20, 40, 40, 100}, progress.all())
	assert.Empty(t, entries(t, work))
}

func TestExternalEncoder_FailurePreservesDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		enc  *fakeEncoder
		req  func(dir string) port.BackendRequest
	}{
		{
			name: "scale fails",
			enc:  &fakeEncoder{scaleErr: &domain.BackendExecutionError{Stage: "scale", ExitCode: 1, Output: "Invalid data found"}},
			req:  func(dir string) port.BackendRequest { return externalRequest(dir, 30, 30) },
		},
		{
			name: "interpolate fails",
			enc:  &fakeEncoder{interpolateErr: &domain.BackendExecutionError{Stage: "interpolate", ExitCode: 1, Output: "Invalid data found"}},
			req:  func(dir string) port.BackendRequest { return externalRequest(dir, 60, 24) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			work := filepath.Join(dir, "work")
			req := tt.req(dir)

			_, err := NewExternalEncoder(tt.enc, work).Run(context.Background(), req, nil)

			var execErr *domain.BackendExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.Contains(t, execErr.Output, "Invalid data found")
			assert.NoFileExists(t, req.OutputPath)
			assert.Empty(t, entries(t, work))
		})
	}
}

func TestNeedsInterpolation(t *testing.T) {
	assert.True(t, needsInterpolation(port.BackendRequest{TargetFps: 60, SourceFps: 29.97}))
	assert.False(t, needsInterpolation(port.BackendRequest{TargetFps: 30, SourceFps: 30}))
	assert.False(t, needsInterpolation(port.BackendRequest{TargetFps: 24, SourceFps: 30}))
	assert.False(t, needsInterpolation(port.BackendRequest{TargetFps: 0, SourceFps: 30}))
}
