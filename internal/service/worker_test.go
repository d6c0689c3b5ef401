package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/upscaler/internal/adapter/codec/mjpeg"
	"github.com/bnema/upscaler/internal/adapter/queue/memory"
	"github.com/bnema/upscaler/internal/adapter/storage/jsonfile"
	"github.com/bnema/upscaler/internal/backend"
	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// recordingRegistry keeps the progress value after every successful update.
type recordingRegistry struct {
	port.JobRegistry
	mu      sync.Mutex
	history map[string][]int
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{JobRegistry: jsonfile.NewMemoryStore(), history: make(map[string][]int)}
}

func (r *recordingRegistry) Update(id string, fn func(*domain.Record) error) (domain.Record, error) {
	rec, err := r.JobRegistry.Update(id, fn)
	if err == nil {
		r.mu.Lock()
		r.history[id] = append(r.history[id], rec.Progress)
		r.mu.Unlock()
	}
	return rec, err
}

func (r *recordingRegistry) progress(id string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.history[id]...)
}

type sourceStub struct {
	info domain.SourceInfo
	err  error
}

func (s sourceStub) Probe(context.Context, string) (domain.SourceInfo, error) { return s.info, s.err }

// encoderStub records the ffmpeg stages it was asked to run.
type encoderStub struct {
	mu         sync.Mutex
	stages     []string
	scaledTo   [2]int
	interpFps  int
	failStages map[string]error
}

func (e *encoderStub) Version(context.Context) (string, error) { return "stub 1.0", nil }

func (e *encoderStub) Scale(_ context.Context, _, out string, w, h int, progress domain.ProgressFunc) error {
	e.mu.Lock()
	e.stages = append(e.stages, "scale")
	e.scaledTo = [2]int{w, h}
	e.mu.Unlock()
	for p := 0; p <= 100; p += 25 {
		progress(p)
	}
	if err := e.failStages["scale"]; err != nil {
		return err
	}
	return os.WriteFile(out, []byte("scaled"), 0o600)
}

func (e *encoderStub) Interpolate(_ context.Context, in, out string, fps int, progress domain.ProgressFunc) error {
	e.mu.Lock()
	e.stages = append(e.stages, "interpolate")
	e.interpFps = fps
	e.mu.Unlock()
	progress(0)
	if err := e.failStages["interpolate"]; err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	progress(100)
	return os.WriteFile(out, append(data, "+interpolated"...), 0o600)
}

type enhancerStub struct {
	failAt int
	calls  int
}

func (e *enhancerStub) Scale() int { return 2 }

func (e *enhancerStub) Enhance(_ context.Context, in, out string) error {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return &domain.BackendExecutionError{Stage: "enhance", Command: "realesrgan", ExitCode: 1, Output: "vkAllocateMemory failed"}
	}
	img, err := imaging.Open(in)
	if err != nil {
		return err
	}
	b := img.Bounds()
	return imaging.Save(imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Box), out)
}

type workerFixture struct {
	dataDir  string
	workDir  string
	queue    *memory.Queue
	registry *recordingRegistry
	bus      *EventBus
	jobs     *JobService
	worker   *Worker
}

func newWorkerFixture(t *testing.T, caps domain.Capabilities, strategies Strategies) *workerFixture {
	t.Helper()
	f := &workerFixture{
		dataDir:  t.TempDir(),
		workDir:  t.TempDir(),
		queue:    memory.NewQueue(5),
		registry: newRecordingRegistry(),
		bus:      NewEventBus(),
	}
	if set, ok := strategies.(*backend.Set); ok {
		set.WorkDir = f.workDir
	}
	f.jobs = NewJobService(f.queue, f.registry, fixedCaps(caps), f.dataDir)
	f.jobs.newID = sequentialIDs()
	f.worker = NewWorker(f.queue, f.registry, fixedCaps(caps), strategies, f.bus, WorkerOptions{ProgressStep: 1, ProgressInterval: time.Millisecond})
	return f
}

// submit queues the staged file and returns its job ID.
func (f *workerFixture) submit(t *testing.T, staged, name, resolution string, fps int) string {
	t.Helper()
	rec, err := f.jobs.Submit(context.Background(), SubmitRequest{
		InputPath: staged, OriginalName: name, Resolution: resolution, Fps: fps,
	})
	require.NoError(t, err)
	return rec.ID
}

// processNext runs the next queued job synchronously.
func (f *workerFixture) processNext(t *testing.T) domain.Record {
	t.Helper()
	desc, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	f.worker.Process(context.Background(), desc)
	rec, err := f.registry.Get(desc.ID)
	require.NoError(t, err)
	return rec
}

func assertMonotonic(t *testing.T, values []int) {
	t.Helper()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards: %v", values)
	}
}

func stageAVI(t *testing.T, w, h, frames int, fps float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.avi")
	wr, err := mjpeg.Create(path, w, h, fps, mjpeg.DefaultQuality)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		c := color.NRGBA{R: uint8(60 * i), G: 120, B: 200, A: 255}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
		require.NoError(t, wr.WriteFrame(img))
	}
	require.NoError(t, wr.Close())
	return path
}

func TestWorker_ExternalEncoderWithInterpolation(t *testing.T) {
	enc := &encoderStub{}
	set := &backend.Set{
		Encoder:       enc,
		EncoderProber: sourceStub{info: domain.SourceInfo{Width: 1280, Height: 720, FrameRate: 30, Duration: 10}},
		Native:        mjpeg.NewCodec(mjpeg.DefaultQuality),
	}
	f := newWorkerFixture(t, domain.Capabilities{Encoder: true}, set)

	id := f.submit(t, stageUpload(t, "mp4"), "clip.mp4", "1080p", 60)
	rec := f.processNext(t)

	require.Equal(t, domain.JobStateCompleted, rec.State, rec.Error)
	assert.Equal(t, domain.ProgressDone, rec.Progress)
	assert.Equal(t, domain.BackendExternalEncoder, rec.Backend)
	assert.Equal(t, id+"_upscaled.mp4", rec.OutputFile)
	assert.Equal(t, []string{"scale", "interpolate"}, enc.stages)
	assert.Equal(t, [2]int{1920, 1080}, enc.scaledTo)
	assert.Equal(t, 60, enc.interpFps)

	data, err := os.ReadFile(filepath.Join(f.dataDir, "processed", rec.OutputFile))
	require.NoError(t, err)
	assert.Equal(t, "scaled+interpolated", string(data))
	assert.Empty(t, entriesOf(t, f.workDir), "workspace is removed")

	history := f.registry.progress(id)
	assertMonotonic(t, history)
	assert.Equal(t, domain.ProgressStarted, history[0])
	assert.Contains(t, history, domain.ProgressResolved)
	assert.Equal(t, domain.ProgressDone, history[len(history)-1])
}

func TestWorker_RawResizeFallback(t *testing.T) {
	native := mjpeg.NewCodec(mjpeg.DefaultQuality)
	set := &backend.Set{Native: native}
	f := newWorkerFixture(t, domain.Capabilities{}, set)

	id := f.submit(t, stageAVI(t, 64, 36, 3, 12), "potato.avi", "potato", 0)
	rec := f.processNext(t)

	require.Equal(t, domain.JobStateCompleted, rec.State, rec.Error)
	assert.Equal(t, domain.BackendRawResize, rec.Backend)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, id+"_upscaled.avi", rec.OutputFile, "native codec keeps its own container")

	info, err := native.Probe(context.Background(), filepath.Join(f.dataDir, "processed", rec.OutputFile))
	require.NoError(t, err)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 720, info.Height)
	assert.Equal(t, 3, info.FrameCount)

	assertMonotonic(t, f.registry.progress(id))

	path, err := f.jobs.Result(id)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestWorker_ModelFailureCleansUp(t *testing.T) {
	enh := &enhancerStub{failAt: 2}
	set := &backend.Set{Native: mjpeg.NewCodec(mjpeg.DefaultQuality), Enhancer: enh}
	f := newWorkerFixture(t, domain.Capabilities{Accelerator: true}, set)

	id := f.submit(t, stageAVI(t, 32, 18, 3, 24), "clip.avi", "720p", 0)
	rec := f.processNext(t)

	assert.Equal(t, domain.JobStateFailed, rec.State)
	assert.Equal(t, domain.BackendModelUpscale, rec.Backend)
	assert.Contains(t, rec.Error, "vkAllocateMemory failed")
	assert.Less(t, rec.Progress, domain.ProgressCeiling)
	assert.Empty(t, entriesOf(t, f.workDir), "workspace is removed")
	assert.Empty(t, entriesOf(t, filepath.Join(f.dataDir, "processed")), "no partial output")

	_, err := f.jobs.Result(id)
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestWorker_MalformedSource(t *testing.T) {
	set := &backend.Set{Native: mjpeg.NewCodec(mjpeg.DefaultQuality)}
	f := newWorkerFixture(t, domain.Capabilities{}, set)

	f.submit(t, stageUpload(t, "definitely not a video"), "junk.avi", "720p", 0)
	rec := f.processNext(t)

	assert.Equal(t, domain.JobStateFailed, rec.State)
	assert.Contains(t, rec.Error, "malformed source")
	assert.Empty(t, rec.Backend, "no backend is chosen for an unreadable source")
	assert.Equal(t, domain.ProgressStarted, rec.Progress)
}

func TestWorker_ProberErrorIsWrapped(t *testing.T) {
	set := &backend.Set{
		Encoder:       &encoderStub{},
		EncoderProber: sourceStub{err: errors.New("moov atom not found")},
	}
	f := newWorkerFixture(t, domain.Capabilities{Encoder: true}, set)

	f.submit(t, stageUpload(t, "x"), "clip.mp4", "720p", 0)
	rec := f.processNext(t)

	assert.Equal(t, domain.JobStateFailed, rec.State)
	assert.Contains(t, rec.Error, "malformed source")
	assert.Contains(t, rec.Error, "moov atom not found")
}

// scriptedStrategies hands out a fixed backend and prober.
type scriptedStrategies struct {
	info    domain.SourceInfo
	backend port.Backend
	panics  bool
}

func (s *scriptedStrategies) Prober(domain.Capabilities) port.SourceProber {
	return sourceStub{info: s.info}
}

func (s *scriptedStrategies) Backend(domain.BackendKind, domain.Capabilities) (port.Backend, error) {
	if s.panics {
		s.panics = false
		panic("nil map write")
	}
	return s.backend, nil
}

// gateBackend blocks in Run until release is closed.
type gateBackend struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateBackend() *gateBackend {
	return &gateBackend{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateBackend) Kind() domain.BackendKind { return domain.BackendRawResize }

func (g *gateBackend) Run(ctx context.Context, req port.BackendRequest, progress domain.ProgressFunc) (port.BackendResult, error) {
	g.once.Do(func() { close(g.started) })
	progress(50)
	select {
	case <-g.release:
	case <-ctx.Done():
		return port.BackendResult{}, ctx.Err()
	}
	if err := os.WriteFile(req.OutputPath, []byte("done"), 0o600); err != nil {
		return port.BackendResult{}, err
	}
	progress(100)
	return port.BackendResult{OutputPath: req.OutputPath}, nil
}

func TestWorker_PanicFailsJobAndLoopContinues(t *testing.T) {
	gate := newGateBackend()
	close(gate.release)
	strategies := &scriptedStrategies{info: domain.SourceInfo{Width: 320, Height: 240}, backend: gate, panics: true}
	f := newWorkerFixture(t, domain.Capabilities{}, strategies)

	first := f.submit(t, stageUpload(t, "a"), "a.mp4", "720p", 0)
	second := f.submit(t, stageUpload(t, "b"), "b.mp4", "720p", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		rec, err := f.registry.Get(second)
		return err == nil && rec.State.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	rec, err := f.registry.Get(first)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, rec.State)
	assert.Equal(t, "internal error: nil map write", rec.Error)

	rec, err = f.registry.Get(second)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, rec.State)
}

func TestWorker_ShutdownFinishesInFlightJob(t *testing.T) {
	gate := newGateBackend()
	strategies := &scriptedStrategies{info: domain.SourceInfo{Width: 320, Height: 240}, backend: gate}
	f := newWorkerFixture(t, domain.Capabilities{}, strategies)

	id := f.submit(t, stageUpload(t, "a"), "a.mp4", "720p", 0)
	queued := f.submit(t, stageUpload(t, "b"), "b.mp4", "720p", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.worker.Start(ctx)

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("backend never started")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("worker exited while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	rec, err := f.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateCompleted, rec.State)

	rec, err = f.registry.Get(queued)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateQueued, rec.State, "jobs still waiting are left queued")
}

func TestWorker_PublishesEvents(t *testing.T) {
	gate := newGateBackend()
	close(gate.release)
	strategies := &scriptedStrategies{info: domain.SourceInfo{Width: 320, Height: 240}, backend: gate}
	f := newWorkerFixture(t, domain.Capabilities{}, strategies)

	id := f.submit(t, stageUpload(t, "a"), "a.mp4", "720p", 0)
	events := f.bus.Subscribe(id)
	defer f.bus.Unsubscribe(id, events)

	f.processNext(t)

	var states []domain.JobState
	var last domain.Event
	for len(events) > 0 {
		last = <-events
		states = append(states, last.State)
	}
	require.NotEmpty(t, states)
	assert.Equal(t, domain.JobStateProcessing, states[0])
	assert.Equal(t, domain.Event{JobID: id, State: domain.JobStateCompleted, Progress: 100}, last)
}

func TestWorker_GeometryFailure(t *testing.T) {
	strategies := &scriptedStrategies{info: domain.SourceInfo{Width: 0, Height: 0}, backend: newGateBackend()}
	f := newWorkerFixture(t, domain.Capabilities{}, strategies)

	f.submit(t, stageUpload(t, "a"), "a.mp4", "720p", 0)
	rec := f.processNext(t)

	assert.Equal(t, domain.JobStateFailed, rec.State)
	assert.NotEmpty(t, rec.Error)
}

func entriesOf(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}
