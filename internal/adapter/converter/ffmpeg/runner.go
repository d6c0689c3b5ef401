package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/upscaler/internal/domain"
)

const (
	stderrTailBytes = 4096
	// pollCeiling bounds the heuristic counter; only a clean exit reports 100.
	pollCeiling = 95
	// waitDelay bounds how long Wait lingers on inherited pipes after a kill.
	waitDelay = 2 * time.Second
)

// run executes ffmpeg and estimates progress from wall-clock time: every
// poll tick the local counter moves by PollStep until pollCeiling.
func (c *Converter) run(ctx context.Context, stage string, args []string, progress domain.ProgressFunc) error {
	return runPolled(ctx, stage, c.opts.FFmpegPath, args, c.opts.PollInterval, c.opts.PollStep, progress)
}

func runPolled(ctx context.Context, stage, binary string, args []string, interval time.Duration, step int, progress domain.ProgressFunc) error {
	if progress == nil {
		progress = func(int) {}
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = waitDelay
	tail := newTailBuffer(stderrTailBytes)
	cmd.Stderr = tail
	cmd.Stdout = tail

	if err := cmd.Start(); err != nil {
		return &domain.BackendExecutionError{
			Stage:    stage,
			Command:  commandLine(binary, args),
			ExitCode: -1,
			Err:      err,
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	local := 0
	progress(local)
	for {
		select {
		case err := <-done:
			if err != nil {
				return executionError(stage, binary, args, tail.String(), err)
			}
			progress(100)
			return nil
		case <-ticker.C:
			if local+step < pollCeiling {
				local += step
				progress(local)
			}
		}
	}
}

func executionError(stage, binary string, args []string, output string, err error) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &domain.BackendExecutionError{
		Stage:    stage,
		Command:  commandLine(binary, args),
		ExitCode: code,
		Output:   output,
		Err:      err,
	}
}

func commandLine(binary string, args []string) string {
	return filepath.Base(binary) + " " + strings.Join(args, " ")
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
