package backend

import (
	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// NativeCodec is a frame codec that can also read its own container headers.
type NativeCodec interface {
	port.FrameCodec
	port.SourceProber
}

// Set builds backends and source probers for a given capability snapshot.
type Set struct {
	// Encoder runs the external encoder; EncoderCodec streams frames
	// through it and EncoderProber reads metadata with it.
	Encoder       port.VideoEncoder
	EncoderCodec  port.FrameCodec
	EncoderProber port.SourceProber
	// Native needs no external process.
	Native   NativeCodec
	Enhancer port.Enhancer
	WorkDir  string
}

// Prober returns the metadata reader usable under caps.
func (s *Set) Prober(caps domain.Capabilities) port.SourceProber {
	if caps.Encoder && s.EncoderProber != nil {
		return s.EncoderProber
	}
	return s.Native
}

func (s *Set) codec(caps domain.Capabilities) port.FrameCodec {
	if caps.Encoder && s.EncoderCodec != nil {
		return s.EncoderCodec
	}
	return s.Native
}

// Backend builds the strategy for kind.
func (s *Set) Backend(kind domain.BackendKind, caps domain.Capabilities) (port.Backend, error) {
	switch kind {
	case domain.BackendModelUpscale:
		return NewModelUpscale(s.Enhancer, s.codec(caps), s.WorkDir), nil
	case domain.BackendExternalEncoder:
		return NewExternalEncoder(s.Encoder, s.WorkDir), nil
	case domain.BackendRawResize:
		return NewRawResize(s.Native), nil
	default:
		return nil, unknownKind(kind)
	}
}
