package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path cannot be empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

const versionTimeout = 10 * time.Second

// Options configures the ffmpeg binaries and encoder settings.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	CRF          int
	Preset       string
	PollInterval time.Duration
	// PollStep is how many local percent each poll tick adds while the
	// process is still running.
	PollStep int
}

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.CRF <= 0 {
		o.CRF = 18
	}
	if o.Preset == "" {
		o.Preset = "medium"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.PollStep <= 0 {
		o.PollStep = 2
	}
	return o
}

type Converter struct {
	opts Options
}

func NewConverter(opts Options) *Converter {
	return &Converter{opts: opts.withDefaults()}
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

// Version runs `ffmpeg -version` and returns its first line.
func (c *Converter) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.opts.FFmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", c.opts.FFmpegPath, err)
	}
	line, _, _ := bytes.Cut(out, []byte("\n"))
	version := strings.TrimSpace(string(line))
	if version == "" {
		return "", fmt.Errorf("%s -version: empty output", c.opts.FFmpegPath)
	}
	return version, nil
}

func (c *Converter) Scale(ctx context.Context, inputPath, outputPath string, width, height int, progress domain.ProgressFunc) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	args := []string{
		"-y", "-v", "error",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", width, height),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(c.opts.CRF),
		"-preset", c.opts.Preset,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	}
	return c.run(ctx, "scale", args, progress)
}

func (c *Converter) Interpolate(ctx context.Context, inputPath, outputPath string, fps int, progress domain.ProgressFunc) error {
	if err := validatePath(inputPath); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(outputPath); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	if fps <= 0 {
		return fmt.Errorf("interpolate: invalid frame rate %d", fps)
	}

	args := []string{
		"-y", "-v", "error",
		"-i", inputPath,
		"-vf", fmt.Sprintf("minterpolate=fps=%d:mi_mode=mci:mc_mode=aobmc:me_mode=bidir:vsbmc=1", fps),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(c.opts.CRF),
		"-preset", c.opts.Preset,
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		outputPath,
	}
	return c.run(ctx, "interpolate", args, progress)
}

// Probe inspects a media file with ffprobe.
func (c *Converter) Probe(ctx context.Context, path string) (domain.SourceInfo, error) {
	if err := validatePath(path); err != nil {
		return domain.SourceInfo{}, &domain.MalformedSourceError{Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, c.opts.FFprobePath,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return domain.SourceInfo{}, &domain.MalformedSourceError{
			Path:   path,
			Reason: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("ffprobe: %w", err),
		}
	}

	var probe domain.ProbeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return domain.SourceInfo{}, &domain.MalformedSourceError{Path: path, Err: fmt.Errorf("parse ffprobe output: %w", err)}
	}

	info, err := probe.SourceInfo()
	if err != nil {
		return domain.SourceInfo{}, &domain.MalformedSourceError{Path: path, Err: err}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return domain.SourceInfo{}, &domain.MalformedSourceError{Path: path, Reason: "video stream has no dimensions"}
	}
	return info, nil
}

var (
	_ port.VideoEncoder = (*Converter)(nil)
	_ port.SourceProber = (*Converter)(nil)
)
