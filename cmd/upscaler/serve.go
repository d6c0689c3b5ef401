package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/bnema/upscaler/config"
	HTTPAdapter "github.com/bnema/upscaler/internal/adapter/http"
	"github.com/bnema/upscaler/internal/adapter/queue/memory"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the upscaling worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	for _, dir := range []string{cfg.DataDir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// One server per data directory: two workers would race on the same
	// uploads and registry.
	lock := flock.New(filepath.Join(cfg.DataDir, "upscaler.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another upscaler is already using %s", cfg.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	logger.Info.Printf("starting upscaler %s on port %d (data=%s registry=%s)", version, cfg.Port, cfg.DataDir, cfg.RegistryBackend)

	store, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tc, err := newToolchain(cfg)
	if err != nil {
		return err
	}

	caps := tc.prober.Probe(parent)
	logger.Info.Printf("capabilities: accelerator=%t encoder=%t", caps.Accelerator, caps.Encoder)

	queue := memory.NewQueue(cfg.QueueCapacity)
	eventBus := service.NewEventBus()
	jobSvc := service.NewJobService(queue, store, tc.prober, cfg.DataDir)

	workerCtx, workerCancel := context.WithCancel(parent)
	defer workerCancel()
	worker := service.NewWorker(queue, store, tc.prober, tc.strategies(cfg.WorkDir), eventBus, service.WorkerOptions{})
	workerDone := worker.Start(workerCtx)

	server := HTTPAdapter.NewServer(jobSvc, eventBus, HTTPAdapter.ServerOptions{
		StagingDir:      filepath.Join(cfg.DataDir, "uploads", ".incoming"),
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
		Version:         version,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			workerCancel()
			<-workerDone
			return fmt.Errorf("server failed: %w", err)
		}
	case <-sigCtx.Done():
		logger.Info.Printf("shutdown requested")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}

	// Stop dequeuing; the job in progress runs to completion.
	workerCancel()
	<-workerDone

	logger.Info.Printf("shutdown complete")
	return nil
}
