package realesrgan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

const (
	DefaultBinary = "realesrgan-ncnn-vulkan"
	DefaultModel  = "realesr-animevideov3"
	probeTimeout  = 10 * time.Second
	outputTail    = 4096
)

type Options struct {
	Binary string
	Model  string
	Scale  int
	// ProbeCommand is run to confirm a usable GPU, e.g. "nvidia-smi -L".
	// Empty skips the device check.
	ProbeCommand string
}

// Enhancer runs Real-ESRGAN (ncnn/Vulkan build) on single frames.
type Enhancer struct {
	opts Options
}

func New(opts Options) *Enhancer {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	return &Enhancer{opts: opts}
}

func (e *Enhancer) Scale() int { return e.opts.Scale }

func (e *Enhancer) Enhance(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-i", inputPath,
		"-o", outputPath,
		"-n", e.opts.Model,
		"-s", strconv.Itoa(e.opts.Scale),
		"-f", strings.TrimPrefix(filepath.Ext(outputPath), "."),
	}
	cmd := exec.CommandContext(ctx, e.opts.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &domain.BackendExecutionError{
			Stage:    "enhance",
			Command:  filepath.Base(e.opts.Binary) + " " + strings.Join(args, " "),
			ExitCode: code,
			Output:   tail(out, outputTail),
			Err:      err,
		}
	}

	// The ncnn build exits 0 on some load failures without writing a file.
	if _, err := os.Stat(outputPath); err != nil {
		return &domain.BackendExecutionError{
			Stage:   "enhance",
			Command: filepath.Base(e.opts.Binary),
			Output:  tail(out, outputTail),
			Err:     fmt.Errorf("no output written: %w", err),
		}
	}
	return nil
}

// Detect locates the enhancer binary and, when configured, runs the device
// probe command.
func (e *Enhancer) Detect(ctx context.Context) (string, error) {
	bin, err := exec.LookPath(e.opts.Binary)
	if err != nil {
		return "", fmt.Errorf("enhancer binary %q not found: %w", e.opts.Binary, err)
	}

	fields := strings.Fields(e.opts.ProbeCommand)
	if len(fields) == 0 {
		return bin, nil
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, fields[0], fields[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("accelerator probe %q: %w", e.opts.ProbeCommand, err)
	}
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	if len(line) == 0 {
		return "", fmt.Errorf("accelerator probe %q: no device listed", e.opts.ProbeCommand)
	}
	return strings.TrimSpace(string(line)), nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

var (
	_ port.Enhancer            = (*Enhancer)(nil)
	_ port.AcceleratorDetector = (*Enhancer)(nil)
)
