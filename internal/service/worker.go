package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/port"
)

// CapabilitySource reports what the host can run right now.
type CapabilitySource interface {
	Probe(ctx context.Context) domain.Capabilities
}

// Strategies builds the per-job collaborators for a capability snapshot.
type Strategies interface {
	Prober(caps domain.Capabilities) port.SourceProber
	Backend(kind domain.BackendKind, caps domain.Capabilities) (port.Backend, error)
}

type EventPublisher interface {
	Publish(jobID string, event domain.Event)
}

// WorkerOptions tunes how often backend progress reaches the registry.
type WorkerOptions struct {
	ProgressStep     int
	ProgressInterval time.Duration
}

// Worker is the single consumer of the job queue. Jobs run strictly one
// after another.
type Worker struct {
	queue      port.JobQueue
	registry   port.JobRegistry
	caps       CapabilitySource
	strategies Strategies
	eventBus   EventPublisher
	opts       WorkerOptions
}

func NewWorker(
	queue port.JobQueue,
	registry port.JobRegistry,
	caps CapabilitySource,
	strategies Strategies,
	eventBus EventPublisher,
	opts WorkerOptions,
) *Worker {
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}
	return &Worker{
		queue:      queue,
		registry:   registry,
		caps:       caps,
		strategies: strategies,
		eventBus:   eventBus,
		opts:       opts,
	}
}

// Start runs the worker loop in a goroutine. The returned channel closes
// once the loop has exited and any in-flight job has finished.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	logger.Info.Printf("worker started (queue capacity %d)", w.queue.Cap())
	return done
}

// Run dequeues and processes jobs until ctx is done. Cancelling ctx stops
// dequeuing but never interrupts the job being processed.
func (w *Worker) Run(ctx context.Context) {
	for {
		desc, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info.Printf("worker shutting down")
				return
			}
			logger.Error.Printf("dequeue failed: %v", err)
			continue
		}

		w.Process(context.WithoutCancel(ctx), desc)
	}
}

// Process runs one job to a terminal state. Panics are recorded as job
// failures.
func (w *Worker) Process(ctx context.Context, desc domain.Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("job %s panicked: %v\n%s", desc.ID, r, debug.Stack())
			w.fail(desc.ID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if _, err := w.update(desc.ID, (*domain.Record).Start); err != nil {
		logger.Error.Printf("job %s: cannot start: %v", desc.ID, err)
		return
	}
	logger.Info.Printf("job %s: processing (resolution=%s fps=%d)", desc.ID, desc.Resolution, desc.Fps)

	outputPath, kind, err := w.run(ctx, desc)
	if err != nil {
		w.fail(desc.ID, err)
		return
	}

	if _, err := w.update(desc.ID, func(r *domain.Record) error {
		return r.Complete(filepath.Base(outputPath))
	}); err != nil {
		logger.Error.Printf("job %s: cannot record completion: %v", desc.ID, err)
		return
	}
	logger.Info.Printf("job %s: completed via %s -> %s", desc.ID, kind, filepath.Base(outputPath))
}

func (w *Worker) run(ctx context.Context, desc domain.Descriptor) (string, domain.BackendKind, error) {
	caps := w.caps.Probe(ctx)

	info, err := w.strategies.Prober(caps).Probe(ctx, desc.InputPath)
	if err != nil {
		var malformed *domain.MalformedSourceError
		if !errors.As(err, &malformed) {
			err = &domain.MalformedSourceError{Path: desc.InputPath, Err: err}
		}
		return "", "", err
	}

	width, height, err := domain.ResolveGeometry(info.Width, info.Height, desc.Resolution)
	if err != nil {
		return "", "", err
	}
	if _, err := w.update(desc.ID, func(r *domain.Record) error { return r.Advance(domain.ProgressResolved) }); err != nil {
		return "", "", err
	}

	kind := domain.SelectBackend(caps)
	if _, err := w.update(desc.ID, func(r *domain.Record) error { return r.SelectBackend(kind) }); err != nil {
		return "", "", err
	}
	backend, err := w.strategies.Backend(kind, caps)
	if err != nil {
		return "", kind, err
	}
	logger.Info.Printf("job %s: %dx%d@%.3g -> %dx%d via %s", desc.ID, info.Width, info.Height, info.FrameRate, width, height, kind)

	reporter := domain.NewProgressReporter(w.advance(desc.ID, kind), w.opts.ProgressStep, w.opts.ProgressInterval)
	res, err := backend.Run(ctx, port.BackendRequest{
		JobID:        desc.ID,
		InputPath:    desc.InputPath,
		OutputPath:   desc.OutputPath,
		TargetWidth:  width,
		TargetHeight: height,
		TargetFps:    desc.Fps,
		SourceFps:    info.FrameRate,
		Source:       info,
	}, domain.Span(reporter.Func(), domain.ProgressResolved, domain.ProgressCeiling))
	if err != nil {
		return "", kind, err
	}
	return res.OutputPath, kind, nil
}

// advance returns the sink that records backend progress on the job.
func (w *Worker) advance(jobID string, kind domain.BackendKind) domain.ProgressFunc {
	sampler := logger.NewProgressSampler(10)
	return func(p int) {
		rec, err := w.update(jobID, func(r *domain.Record) error { return r.Advance(p) })
		if err != nil {
			logger.Warn.Printf("job %s: progress update dropped: %v", jobID, err)
			return
		}
		if sampler.ShouldLog(rec.Progress, string(kind)) {
			logger.Info.Printf("job %s: %d%%", jobID, rec.Progress)
		}
	}
}

func (w *Worker) fail(jobID string, cause error) {
	logger.Error.Printf("job %s failed: %s", jobID, logger.SanitizeForLog(cause.Error()))
	if _, err := w.update(jobID, func(r *domain.Record) error { return r.Fail(cause) }); err != nil {
		logger.Error.Printf("job %s: cannot record failure: %v", jobID, err)
	}
}

// update applies fn through the registry and publishes the new state.
func (w *Worker) update(jobID string, fn func(*domain.Record) error) (domain.Record, error) {
	rec, err := w.registry.Update(jobID, fn)
	if err != nil {
		return rec, err
	}
	if w.eventBus != nil {
		w.eventBus.Publish(jobID, rec.Event())
	}
	return rec, nil
}
