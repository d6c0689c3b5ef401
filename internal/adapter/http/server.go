package http

import (
	"net/http"

	"github.com/bnema/upscaler/internal/adapter/http/middleware"
	"github.com/bnema/upscaler/internal/service"
)

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	StagingDir      string
	MaxUploadSizeMB int
	Version         string
}

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
}

func NewServer(jobs JobService, eventBus *service.EventBus, opts ServerOptions) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		handlers:   NewHandlers(jobs, opts.StagingDir, opts.MaxUploadSizeMB, opts.Version),
		sseHandler: NewSSEHandler(eventBus, jobs),
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /upload", s.handlers.Upload())
	s.mux.HandleFunc("GET /status/{id}", s.handlers.Status())
	s.mux.HandleFunc("GET /download/{id}", s.handlers.Download())
	s.mux.HandleFunc("GET /jobs", s.handlers.Jobs())
	s.mux.HandleFunc("GET /capabilities", s.handlers.Capabilities())
	s.mux.HandleFunc("GET /events/{id}", s.sseHandler.Events())
	s.mux.HandleFunc("GET /health", s.handlers.Health())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
