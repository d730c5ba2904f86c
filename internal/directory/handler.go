package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes doctor availability over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a directory handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("directory: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type statusRequest struct {
	Online bool   `json:"online"`
	Status Status `json:"status"`
}

// SetStatus handles POST /doctors/{doctorID}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Status {
	case StatusAway, StatusBusy, StatusInConsultation:
		// Direct transitions keep the online flag as-is.
		err = h.service.UpdateStatus(r.Context(), doctorID, req.Status)
	default:
		err = h.service.SetOnlineStatus(r.Context(), doctorID, req.Online, req.Status)
	}
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			http.Error(w, "Doctor availability not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update doctor status", "error", err, "doctor_id", doctorID)
		http.Error(w, "Failed to update status", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat handles POST /doctors/{doctorID}/heartbeat.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if err := h.service.Heartbeat(r.Context(), doctorID); err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			http.Error(w, "Doctor availability not found", http.StatusNotFound)
			return
		}
		h.logger.Error("heartbeat failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "Heartbeat failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Availability handles GET /doctors/{doctorID}/availability.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	record, err := h.service.Availability(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			http.Error(w, "Doctor availability not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch availability", "error", err, "doctor_id", doctorID)
		http.Error(w, "Failed to fetch availability", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// AvailableDoctors handles GET /doctors/available.
func (h *Handler) AvailableDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.service.AvailableDoctors(r.Context())
	if err != nil {
		h.logger.Error("failed to list available doctors", "error", err)
		http.Error(w, "Failed to list available doctors", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, doctors)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
