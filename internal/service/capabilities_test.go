package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVersioner struct {
	version string
	err     error
}

func (s stubVersioner) Version(context.Context) (string, error) { return s.version, s.err }

type stubDetector struct {
	detail string
	err    error
	calls  int
}

func (s *stubDetector) Detect(context.Context) (string, error) {
	s.calls++
	return s.detail, s.err
}

func TestParseAcceleratorMode(t *testing.T) {
	for in, want := range map[string]AcceleratorMode{"": AcceleratorAuto, "AUTO": AcceleratorAuto, " on ": AcceleratorOn, "off": AcceleratorOff} {
		got, err := ParseAcceleratorMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAcceleratorMode("maybe")
	assert.Error(t, err)
}

func TestCapabilityProber(t *testing.T) {
	gpu := &stubDetector{detail: "GPU 0: NVIDIA RTX"}

	caps := NewCapabilityProber(stubVersioner{version: "ffmpeg version 7.1"}, gpu, AcceleratorAuto).Probe(context.Background())
	assert.True(t, caps.Encoder)
	assert.Equal(t, "ffmpeg version 7.1", caps.EncoderDetail)
	assert.True(t, caps.Accelerator)
	assert.Equal(t, "GPU 0: NVIDIA RTX", caps.AcceleratorDetail)
}

func TestCapabilityProber_FailuresMeanAbsent(t *testing.T) {
	detector := &stubDetector{err: errors.New("enhancer binary not found")}
	prober := NewCapabilityProber(stubVersioner{err: errors.New("exec: \"ffmpeg\": executable file not found")}, detector, AcceleratorAuto)

	caps := prober.Probe(context.Background())

	assert.False(t, caps.Encoder)
	assert.Contains(t, caps.EncoderDetail, "executable file not found")
	assert.False(t, caps.Accelerator)
	assert.Equal(t, "enhancer binary not found", caps.AcceleratorDetail)
}

func TestCapabilityProber_Modes(t *testing.T) {
	detector := &stubDetector{detail: "GPU 0"}

	caps := NewCapabilityProber(nil, detector, AcceleratorOff).Probe(context.Background())
	assert.False(t, caps.Accelerator)
	assert.False(t, caps.Encoder)
	assert.Equal(t, 0, detector.calls, "off never probes")

	caps = NewCapabilityProber(nil, nil, AcceleratorOn).Probe(context.Background())
	assert.True(t, caps.Accelerator)

	caps = NewCapabilityProber(nil, nil, "").Probe(context.Background())
	assert.False(t, caps.Accelerator)
}
