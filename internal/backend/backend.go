// Package backend holds the processing strategies a job can run with and the
// factory the worker uses to build them from probed capabilities.
package backend

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// fallbackFps is used when neither the request nor the source states a rate.
const fallbackFps = 30

func outputFps(req port.BackendRequest) float64 {
	if fps := req.OutputFps(); fps > 0 {
		return fps
	}
	return fallbackFps
}

// withExt replaces the extension of path with ext.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// discard removes a partially written output.
func discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.RemoveAll(path)
	}
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.BackendIOError{Op: "create output directory", Path: dir, Err: err}
	}
	return nil
}

// promote moves a finished workspace file to its final location.
func promote(src, dst string) error {
	if err := ensureParent(dst); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return &domain.BackendIOError{Op: "move output", Path: dst, Err: err}
	}
	return nil
}

// frameProgress converts a frame count into local progress, holding back 100
// until the output is finalized.
func frameProgress(done, total int) int {
	if p := domain.Fraction(done, total); p < 99 {
		return p
	}
	return 99
}

func noFrames(path string) error {
	return &domain.MalformedSourceError{Path: path, Reason: "no decodable frames"}
}

// frameRate decides how many times each source frame is emitted so the
// output keeps the source duration at a different rate.
type frameRate struct {
	ratio float64
	in    int
	out   int
}

func newFrameRate(source, target float64) *frameRate {
	ratio := 1.0
	if source > 0 && target > 0 {
		ratio = target / source
	}
	return &frameRate{ratio: ratio}
}

// next returns the copy count for the next source frame; zero drops it.
// The first frame is always kept so a short clip never encodes empty.
func (f *frameRate) next() int {
	f.in++
	want := int(math.Floor(float64(f.in)*f.ratio + 0.5))
	n := want - f.out
	if n < 0 {
		n = 0
	}
	if f.out == 0 && n == 0 {
		n = 1
	}
	f.out += n
	return n
}

func unknownKind(kind domain.BackendKind) error {
	return fmt.Errorf("unknown backend kind %q", kind)
}
