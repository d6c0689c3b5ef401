package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bnema/upscaler/config"
	"github.com/bnema/upscaler/internal/adapter/codec/mjpeg"
	"github.com/bnema/upscaler/internal/adapter/converter/ffmpeg"
	"github.com/bnema/upscaler/internal/adapter/enhancer/realesrgan"
	"github.com/bnema/upscaler/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/upscaler/internal/adapter/storage/sqlite"
	"github.com/bnema/upscaler/internal/backend"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/port"
	"github.com/bnema/upscaler/internal/service"
)

type registry interface {
	port.JobRegistry
	io.Closer
}

type nopCloser struct{ port.JobRegistry }

func (nopCloser) Close() error { return nil }

// openRegistry builds the configured job registry. Persistent registries
// fail whatever a previous process left in flight.
func openRegistry(cfg *config.Config) (registry, error) {
	switch cfg.RegistryBackend {
	case "memory":
		return nopCloser{jsonfile.NewMemoryStore()}, nil
	case "json":
		store, err := jsonfile.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open json registry: %w", err)
		}
		return nopCloser{store}, nil
	case "sqlite":
		store, err := sqlitestore.NewStore(filepath.Join(cfg.DataDir, "upscaler.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite registry: %w", err)
		}
		n, err := store.FailStalled()
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to recover stalled jobs: %w", err)
		}
		if n > 0 {
			logger.Warn.Printf("marked %d interrupted job(s) as failed", n)
		}
		return store, nil
	default:
		return nil, errors.New("unknown registry backend " + cfg.RegistryBackend)
	}
}

// toolchain holds the external process adapters and the capability probe
// built from them.
type toolchain struct {
	converter *ffmpeg.Converter
	enhancer  *realesrgan.Enhancer
	native    *mjpeg.Codec
	prober    *service.CapabilityProber
}

func newToolchain(cfg *config.Config) (*toolchain, error) {
	mode, err := service.ParseAcceleratorMode(cfg.Accelerator)
	if err != nil {
		return nil, err
	}

	converter := ffmpeg.NewConverter(ffmpeg.Options{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		CRF:          cfg.EncoderCRF,
		Preset:       cfg.EncoderPreset,
		PollInterval: cfg.ProgressPollInterval,
	})
	enhancer := realesrgan.New(realesrgan.Options{
		Binary:       cfg.EnhancerPath,
		Model:        cfg.EnhancerModel,
		Scale:        cfg.EnhancerScale,
		ProbeCommand: cfg.AcceleratorProbe,
	})

	return &toolchain{
		converter: converter,
		enhancer:  enhancer,
		native:    mjpeg.NewCodec(mjpeg.DefaultQuality),
		prober:    service.NewCapabilityProber(converter, enhancer, mode),
	}, nil
}

func (tc *toolchain) strategies(workDir string) *backend.Set {
	return &backend.Set{
		Encoder:       tc.converter,
		EncoderCodec:  ffmpeg.NewPipeCodec(tc.converter),
		EncoderProber: tc.converter,
		Native:        tc.native,
		Enhancer:      tc.enhancer,
		WorkDir:       workDir,
	}
}
