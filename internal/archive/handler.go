package archive

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes the consultation archive over HTTP.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates an archive handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// GetConsultation handles GET /consultations/{appointmentID}: the archived
// consultation with its transcript.
func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")

	consultation, err := h.store.GetConsultation(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrConsultationNotFound) {
			http.Error(w, "Consultation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch consultation", "error", err, "appointment_id", id)
		http.Error(w, "Failed to fetch consultation", http.StatusInternalServerError)
		return
	}

	messages, err := h.store.Messages(r.Context(), id, 0)
	if err != nil {
		h.logger.Error("failed to fetch transcript", "error", err, "appointment_id", id)
		http.Error(w, "Failed to fetch consultation", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"consultation": consultation,
		"messages":     messages,
	})
}

// ListByPatient handles GET /patients/{patientID}/consultations.
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")

	consultations, err := h.store.ListByPatient(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list consultations", "error", err, "patient_id", id)
		http.Error(w, "Failed to list consultations", http.StatusInternalServerError)
		return
	}
	if consultations == nil {
		consultations = []Consultation{}
	}
	h.writeJSON(w, http.StatusOK, consultations)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
