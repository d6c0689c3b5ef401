package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/port"
)

// SubmitRequest describes a staged upload. InputPath is moved into the
// upload directory on acceptance.
type SubmitRequest struct {
	InputPath    string `validate:"required"`
	OriginalName string `validate:"required,max=255"`
	Resolution   string `validate:"max=16"`
	// Fps of zero or less keeps the source frame rate.
	Fps int
}

// JobService is the boundary the transport layer talks to.
type JobService struct {
	mu           sync.Mutex
	queue        port.JobQueue
	registry     port.JobRegistry
	caps         CapabilitySource
	validate     *validator.Validate
	uploadDir    string
	processedDir string
	newID        func() string
}

func NewJobService(queue port.JobQueue, registry port.JobRegistry, caps CapabilitySource, dataDir string) *JobService {
	return &JobService{
		queue:        queue,
		registry:     registry,
		caps:         caps,
		validate:     validator.New(),
		uploadDir:    filepath.Join(dataDir, "uploads"),
		processedDir: filepath.Join(dataDir, "processed"),
		newID:        uuid.NewString,
	}
}

// Submit registers a queued job and hands it to the worker. The capacity
// check, record creation and enqueue happen under one lock so a rejected
// request never leaves a queued record behind.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (domain.Record, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() >= s.queue.Cap() {
		return domain.Record{}, domain.ErrCapacityExceeded
	}

	for _, dir := range []string{s.uploadDir, s.processedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error.Printf("failed to create directory %s: %v", dir, err)
			return domain.Record{}, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	fps := req.Fps
	if fps < 0 {
		fps = 0
	}

	id := s.newID()
	inputFile := id + "_" + filepath.Base(req.OriginalName)
	outputFile := id + "_upscaled.mp4"
	desc := domain.Descriptor{
		ID:         id,
		InputPath:  filepath.Join(s.uploadDir, inputFile),
		OutputPath: filepath.Join(s.processedDir, outputFile),
		Resolution: domain.ParseResolution(req.Resolution),
		Fps:        fps,
	}

	if err := os.Rename(req.InputPath, desc.InputPath); err != nil {
		logger.Error.Printf("failed to save upload %s: %v", logger.SanitizeForLog(req.OriginalName), err)
		return domain.Record{}, fmt.Errorf("failed to save upload: %w", err)
	}

	rec := domain.NewRecord(desc, inputFile, outputFile)
	if err := s.registry.Create(rec); err != nil {
		_ = os.Remove(desc.InputPath)
		return domain.Record{}, fmt.Errorf("failed to register job: %w", err)
	}

	if !s.queue.Enqueue(desc) {
		// Only reachable when something else feeds the queue.
		if _, err := s.registry.Update(id, func(r *domain.Record) error { return r.Fail(domain.ErrCapacityExceeded) }); err != nil {
			logger.Error.Printf("job %s: cannot mark rejected job: %v", id, err)
		}
		_ = os.Remove(desc.InputPath)
		return domain.Record{}, domain.ErrCapacityExceeded
	}

	logger.Info.Printf("job %s queued: file=%s resolution=%s fps=%d",
		id, logger.SanitizeForLog(req.OriginalName), desc.Resolution, desc.Fps)
	return rec, nil
}

func (s *JobService) Status(id string) (domain.Record, error) {
	return s.registry.Get(id)
}

// Result returns the path of a completed job's output file.
func (s *JobService) Result(id string) (string, error) {
	rec, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	if rec.State != domain.JobStateCompleted {
		return "", domain.ErrNotReady
	}

	path := filepath.Join(s.processedDir, rec.OutputFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrNotReady
		}
		return "", err
	}
	return path, nil
}

func (s *JobService) List() ([]domain.Record, error) {
	return s.registry.List()
}

func (s *JobService) Capabilities(ctx context.Context) domain.Capabilities {
	return s.caps.Probe(ctx)
}

// QueueDepth reports how many jobs are waiting and the queue capacity.
func (s *JobService) QueueDepth() (int, int) {
	return s.queue.Len(), s.queue.Cap()
}
