package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/queue"
)

// JobResponse is the gateway view of a job
type JobResponse struct {
	*queue.Job
	State string `json:"state"`
}

// JobsHandler serves the asynchronous query API backed by q:
// POST /jobs enqueues a coordinate, GET /jobs/{id} polls it.
func JobsHandler(q queue.Queue) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
		p, ok := decodePoint(w, r)
		if !ok {
			return
		}
		job := queue.NewJob(p.Lat, p.Lon)
		if err := q.Push(r.Context(), job); err != nil {
			logger.L().Error("job_push_failed", "error", err.Error())
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusAccepted, JobResponse{Job: job, State: job.Status.String()})
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := q.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, queue.ErrJobNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, JobResponse{Job: job, State: job.Status.String()})
	})

	return r
}
