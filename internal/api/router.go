// Package api wires the HTTP handlers into a router.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/recurring-tracker/internal/api/handlers"
	"github.com/dvloznov/recurring-tracker/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by NewRouter.
type Handlers struct {
	Recurring   *handlers.RecurringHandler
	Obligations *handlers.ObligationsHandler
	Jobs        *handlers.JobsHandler
}

// NewRouter registers every endpoint and wraps the mux in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/recurring/detect", middleware.AllowMethods(h.Recurring.Detect, http.MethodPost))
	mux.HandleFunc("/api/recurring/scan", middleware.AllowMethods(h.Recurring.Scan, http.MethodPost))

	mux.HandleFunc("/api/obligations", middleware.AllowMethods(h.Obligations.ListObligations, http.MethodGet))
	mux.HandleFunc("/api/obligations/upcoming", middleware.AllowMethods(h.Obligations.Upcoming, http.MethodGet))

	mux.HandleFunc("/api/jobs", middleware.AllowMethods(h.Jobs.ListJobs, http.MethodGet))
	mux.HandleFunc("/api/jobs/", middleware.AllowMethods(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		h.Jobs.GetJob(w, r, jobID)
	}, http.MethodGet))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}
