package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/port"
)

type AcceleratorMode string

const (
	AcceleratorAuto AcceleratorMode = "auto"
	AcceleratorOn   AcceleratorMode = "on"
	AcceleratorOff  AcceleratorMode = "off"
)

// ParseAcceleratorMode accepts auto, on and off (case-insensitive).
func ParseAcceleratorMode(s string) (AcceleratorMode, error) {
	switch mode := AcceleratorMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case AcceleratorAuto, AcceleratorOn, AcceleratorOff:
		return mode, nil
	case "":
		return AcceleratorAuto, nil
	default:
		return "", fmt.Errorf("invalid accelerator mode %q (want auto, on or off)", s)
	}
}

// EncoderVersioner is the part of the encoder used to confirm it runs.
type EncoderVersioner interface {
	Version(ctx context.Context) (string, error)
}

// CapabilityProber gathers the runtime facts backend selection depends on.
// Probe failures only mark a capability absent.
type CapabilityProber struct {
	encoder     EncoderVersioner
	accelerator port.AcceleratorDetector
	mode        AcceleratorMode
}

func NewCapabilityProber(encoder EncoderVersioner, accelerator port.AcceleratorDetector, mode AcceleratorMode) *CapabilityProber {
	if mode == "" {
		mode = AcceleratorAuto
	}
	return &CapabilityProber{encoder: encoder, accelerator: accelerator, mode: mode}
}

func (p *CapabilityProber) Probe(ctx context.Context) domain.Capabilities {
	var caps domain.Capabilities

	if p.encoder == nil {
		caps.EncoderDetail = "encoder not configured"
	} else if version, err := p.encoder.Version(ctx); err != nil {
		caps.EncoderDetail = err.Error()
	} else {
		caps.Encoder = true
		caps.EncoderDetail = version
	}

	switch p.mode {
	case AcceleratorOff:
		caps.AcceleratorDetail = "disabled by configuration"
	case AcceleratorOn:
		caps.Accelerator = true
		caps.AcceleratorDetail = "forced by configuration"
	default:
		if p.accelerator == nil {
			caps.AcceleratorDetail = "enhancer not configured"
		} else if detail, err := p.accelerator.Detect(ctx); err != nil {
			caps.AcceleratorDetail = err.Error()
		} else {
			caps.Accelerator = true
			caps.AcceleratorDetail = detail
		}
	}

	logger.Debug.Printf("capabilities: accelerator=%t (%s) encoder=%t (%s)",
		caps.Accelerator, logger.SanitizeForLog(caps.AcceleratorDetail),
		caps.Encoder, logger.SanitizeForLog(caps.EncoderDetail))
	return caps
}
