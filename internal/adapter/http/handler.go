package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/upscaler/internal/adapter/http/validation"
	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/infrastructure/logger"
	"github.com/bnema/upscaler/internal/service"
)

const (
	defaultResolution = "720p"
	defaultFps        = 60
	busyMessage       = "Server is busy. Please try again later."
	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to disk.
	multipartMemory = 32 << 20
)

type JobService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (domain.Record, error)
	Status(id string) (domain.Record, error)
	Result(id string) (string, error)
	List() ([]domain.Record, error)
	Capabilities(ctx context.Context) domain.Capabilities
	QueueDepth() (int, int)
}

type Handlers struct {
	jobs       JobService
	stagingDir string
	maxSizeMB  int
	version    string
}

func NewHandlers(jobs JobService, stagingDir string, maxSizeMB int, version string) *Handlers {
	return &Handlers{
		jobs:       jobs,
		stagingDir: stagingDir,
		maxSizeMB:  maxSizeMB,
		version:    version,
	}
}

type uploadResponse struct {
	JobID   string          `json:"job_id"`
	Status  domain.JobState `json:"status"`
	Message string          `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn.Printf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusServiceUnavailable, busyMessage)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusBadRequest, "File not ready for download")
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (max %d MB)", h.maxSizeMB))
				return
			}
			writeError(w, http.StatusBadRequest, "No file part")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file part")
			return
		}
		defer file.Close() //nolint:errcheck

		if header.Filename == "" {
			writeError(w, http.StatusBadRequest, "No file selected")
			return
		}
		if !validation.AllowedExtension(header.Filename) {
			writeError(w, http.StatusBadRequest, "File type not allowed. Allowed types: mp4, avi, mov, mkv, webm")
			return
		}

		fps := defaultFps
		if raw := strings.TrimSpace(r.FormValue("fps")); raw != "" {
			if fps, err = strconv.Atoi(raw); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid fps")
				return
			}
		}
		resolution := r.FormValue("resolution")
		if resolution == "" {
			resolution = defaultResolution
		}

		staged, err := h.stage(file)
		if err != nil {
			logger.Error.Printf("failed to stage upload %s: %v", logger.SanitizeForLog(header.Filename), err)
			writeError(w, http.StatusInternalServerError, "Failed to save file")
			return
		}
		// Submit moves the file on success; whatever is left is ours.
		defer func() { _ = os.Remove(staged) }()

		if mime, allowed, err := sniff(staged); err != nil || !allowed {
			logger.Warn.Printf("rejected upload %s: detected %s", logger.SanitizeForLog(header.Filename), mime)
			writeError(w, http.StatusBadRequest, "File content is not a supported video")
			return
		}

		rec, err := h.jobs.Submit(r.Context(), service.SubmitRequest{
			InputPath:    staged,
			OriginalName: validation.SanitizeFilename(header.Filename),
			Resolution:   resolution,
			Fps:          fps,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			JobID:   rec.ID,
			Status:  rec.State,
			Message: "Your video has been queued for processing",
		})
	}
}

// stage copies the upload next to the data directory so the service can
// move it with a rename.
func (h *Handlers) stage(src io.Reader) (string, error) {
	if err := os.MkdirAll(h.stagingDir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(h.stagingDir, "upload-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func sniff(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close() //nolint:errcheck
	return validation.ValidateMagicBytes(f)
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.jobs.Status(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *Handlers) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := h.jobs.Result(r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentType(path))
		w.Header().Set("Content-Disposition", validation.ContentDisposition(filepath.Base(path)))
		http.ServeFile(w, r, path)
	}
}

func (h *Handlers) Jobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.jobs.List()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if jobs == nil {
			jobs = []domain.Record{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

func (h *Handlers) Capabilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.jobs.Capabilities(r.Context()))
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		depth, capacity := h.jobs.QueueDepth()
		writeJSON(w, http.StatusOK, healthResponse{
			Status:        "ok",
			Version:       h.version,
			QueueDepth:    depth,
			QueueCapacity: capacity,
		})
	}
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".avi":
		return "video/x-msvideo"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
