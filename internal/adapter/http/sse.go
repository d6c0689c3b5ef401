package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/service"
)

const keepAliveInterval = 15 * time.Second

// SSEHandler streams a job's state changes as server-sent events. Each
// event carries the full status record so a client never has to poll.
type SSEHandler struct {
	eventBus  *service.EventBus
	jobs      JobService
	keepAlive time.Duration
}

func NewSSEHandler(eventBus *service.EventBus, jobs JobService) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		jobs:      jobs,
		keepAlive: keepAliveInterval,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendStatus writes rec unless it matches the last record sent. It returns
// the record now known to the client.
func sendStatus(w http.ResponseWriter, rec domain.Record, last *domain.Record) (*domain.Record, error) {
	if last != nil && last.State == rec.State && last.Progress == rec.Progress && last.Backend == rec.Backend {
		return last, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return last, err
	}
	sseWrite(w, "status", string(data))
	return &rec, nil
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		// Subscribe before reading the record so no transition is lost
		// between the two.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		rec, err := h.jobs.Status(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		last, err := sendStatus(w, rec, nil)
		if err != nil || rec.State.IsTerminal() {
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case _, ok := <-ch:
				if !ok {
					return
				}
				// Events can be dropped for slow readers; the registry
				// has the authoritative record.
				rec, err := h.jobs.Status(id)
				if err != nil {
					return
				}
				if last, err = sendStatus(w, rec, last); err != nil {
					return
				}
				if rec.State.IsTerminal() {
					return
				}
			}
		}
	}
}
