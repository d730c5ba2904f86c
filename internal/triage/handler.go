package triage

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler wires HTTP requests to the triage service.
type Handler struct {
	service   *Service
	publisher *Publisher
	jobs      JobRecorder
	logger    *logging.Logger
}

// NewHandler creates a triage handler. Publisher and job store are optional;
// without them the async endpoints return 503.
func NewHandler(service *Service, publisher *Publisher, jobs JobRecorder, logger *logging.Logger) *Handler {
	if service == nil {
		panic("triage: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:   service,
		publisher: publisher,
		jobs:      jobs,
		logger:    logger,
	}
}

// Routes mounts the triage endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/session", h.Start)
	r.Post("/message", h.Message)
	r.Post("/analyze", h.MessageAsync)
	r.Get("/jobs/{jobID}", h.JobStatus)
	r.Get("/session/{sessionID}", h.Session)
	r.Put("/session/{sessionID}/patient", h.PatientInfo)
	r.Delete("/session/{sessionID}", h.EndSession)
	return r
}

// Start handles POST /triage/session.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.StartSession(r.Context())
	if err != nil {
		h.logger.Error("failed to start triage session", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /triage/message, the synchronous exchange path.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode triage message", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to analyze message", "error", err)
		http.Error(w, "Failed to analyze message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// MessageAsync handles POST /triage/message/async. The exchange is queued and
// the caller polls the returned job ID.
func (h *Handler) MessageAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || h.jobs == nil {
		http.Error(w, "Async processing unavailable", http.StatusServiceUnavailable)
		return
	}

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode triage message", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	job := &JobRecord{
		JobID:          jobID,
		RequestType:    jobTypeAnalyze,
		SessionID:      req.SessionID,
		AnalyzeRequest: &req,
	}
	if err := h.jobs.PutPending(r.Context(), job); err != nil {
		h.logger.Error("failed to record triage job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to queue message", http.StatusInternalServerError)
		return
	}
	if err := h.publisher.EnqueueAnalyze(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue triage job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to queue message", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": string(JobStatusPending),
	})
}

// JobStatus handles GET /triage/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Async processing unavailable", http.StatusServiceUnavailable)
		return
	}

	jobID := chi.URLParam(r, "jobID")
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch triage job", "error", err, "job_id", jobID)
		http.Error(w, "Failed to fetch job", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// Session handles GET /triage/sessions/{sessionID}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// PatientInfo handles PUT /triage/sessions/{sessionID}/patient.
func (h *Handler) PatientInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var info PatientInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		h.logger.Error("failed to decode patient info", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.MergePatientInfo(r.Context(), sessionID, info); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to merge patient info", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to update patient info", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndSession handles DELETE /triage/sessions/{sessionID}.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	h.service.EndSession(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
