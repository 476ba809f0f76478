package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mnshuhailey/ppa-sap/internal/scheduler"
)

// Runner is implemented by *scheduler.Scheduler.
type Runner interface {
	Jobs() []string
	RunJob(ctx context.Context, name string) error
}

type Handler struct {
	runner Runner
}

func NewHandler(runner Runner) *Handler {
	return &Handler{runner: runner}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{name}/run", h.run)
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Jobs: h.runner.Jobs()})
}

// run executes the job synchronously. The job keeps going if the caller
// disconnects so a run is never left half done.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()

	err := h.runner.RunJob(context.WithoutCancel(r.Context()), name)

	resp := runResponse{Job: name, Status: "ok", DurationMS: time.Since(start).Milliseconds()}

	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		resp.Status = "failed"
		resp.Error = err.Error()

		writeJSON(w, http.StatusInternalServerError, resp)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
