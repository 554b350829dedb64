package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/recurring-tracker/internal/api/middleware"
	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/jobs"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
)

// maxBodyBytes caps request bodies; a few years of transactions fit easily.
const maxBodyBytes = 8 << 20

// ObligationService is the read side of the obligations service.
type ObligationService interface {
	List(ctx context.Context, userID string) ([]obligations.Obligation, error)
	Upcoming(ctx context.Context, userID string, horizonDays int) ([]obligations.Upcoming, error)
}

// RecurringHandler handles detection endpoints.
type RecurringHandler struct {
	publisher jobs.Publisher
	options   recurring.Options
	log       zerolog.Logger
}

// NewRecurringHandler creates a new recurring handler.
func NewRecurringHandler(publisher jobs.Publisher, options recurring.Options, log zerolog.Logger) *RecurringHandler {
	return &RecurringHandler{
		publisher: publisher,
		options:   options,
		log:       log,
	}
}

type transactionInput struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
}

type rejectedInput struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Detect handles POST /api/recurring/detect. It runs detection on the
// posted transactions without storing anything.
func (h *RecurringHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []transactionInput `json:"transactions"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	records := make([]domain.TransactionRecord, 0, len(req.Transactions))
	rejected := []rejectedInput{}
	for i, in := range req.Transactions {
		rec, err := domain.RecordFromTags(in.ID, in.Date, in.Description, in.Amount, in.Type)
		if err != nil {
			rejected = append(rejected, rejectedInput{Index: i, Error: err.Error()})
			continue
		}
		rec.Category = in.Category
		records = append(records, rec)
	}

	patterns := recurring.Detect(records, h.options)
	log := logger.FromContext(r.Context())
	log.Debug().
		Int("transactions", len(records)).
		Int("rejected", len(rejected)).
		Int("patterns", len(patterns)).
		Msg("Detected recurring patterns")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
		"rejected": rejected,
	})
}

// Scan handles POST /api/recurring/scan. It enqueues a scan job for the
// user and answers 202 with the job id.
func (h *RecurringHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		StatementURI string `json:"statement_uri"`
		HorizonDays  int    `json:"horizon_days"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	job := &jobs.DetectRecurringJob{
		UserID:       req.UserID,
		StatementURI: req.StatementURI,
		Start:        start,
		End:          end,
		HorizonDays:  req.HorizonDays,
	}
	if err := h.publisher.PublishDetectRecurring(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user", logger.MaskUserID(req.UserID)).Msg("Failed to enqueue scan job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue scan job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user", logger.MaskUserID(req.UserID)).Msg("Scan job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// ObligationsHandler handles stored obligation endpoints.
type ObligationsHandler struct {
	service ObligationService
	log     zerolog.Logger
}

// NewObligationsHandler creates a new obligations handler.
func NewObligationsHandler(service ObligationService, log zerolog.Logger) *ObligationsHandler {
	return &ObligationsHandler{
		service: service,
		log:     log,
	}
}

// ListObligations handles GET /api/obligations?user_id=
func (h *ObligationsHandler) ListObligations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user", logger.MaskUserID(userID)).Msg("Failed to list obligations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list obligations")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"obligations": list,
		"count":       len(list),
	})
}

// Upcoming handles GET /api/obligations/upcoming?user_id=&horizon_days=
func (h *ObligationsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	horizon := obligations.DefaultHorizonDays
	if s := query.Get("horizon_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 366 {
			middleware.WriteError(w, http.StatusBadRequest, "horizon_days must be between 1 and 366")
			return
		}
		horizon = n
	}

	upcoming, err := h.service.Upcoming(r.Context(), userID, horizon)
	if err != nil {
		h.log.Error().Err(err).Str("user", logger.MaskUserID(userID)).Msg("Failed to list upcoming obligations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list upcoming obligations")
		return
	}
	if upcoming == nil {
		upcoming = []obligations.Upcoming{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"upcoming":     upcoming,
		"reminders":    reminder.BuildAll(upcoming),
		"horizon_days": horizon,
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
