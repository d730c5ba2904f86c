package profiles

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes profile registration and lookup over HTTP.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a profiles handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("profiles: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreatePatient handles POST /patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	patient, err := h.repo.CreatePatient(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrMissingContact) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create patient", "error", err)
		http.Error(w, "Failed to create patient", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, patient)
}

// GetPatient handles GET /patients/{patientID}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	patient, err := h.repo.GetPatient(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			http.Error(w, "Patient not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch patient", "error", err, "patient_id", id)
		http.Error(w, "Failed to fetch patient", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, patient)
}

// CreateDoctor handles POST /doctors.
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doctor, err := h.repo.CreateDoctor(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrMissingSpecialization) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create doctor", "error", err)
		http.Error(w, "Failed to create doctor", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, doctor)
}

// GetDoctor handles GET /doctors/{doctorID}.
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doctorID")
	doctor, err := h.repo.GetDoctor(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			http.Error(w, "Doctor not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch doctor", "error", err, "doctor_id", id)
		http.Error(w, "Failed to fetch doctor", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, doctor)
}

// ListDoctors handles GET /doctors.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.repo.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		http.Error(w, "Failed to list doctors", http.StatusInternalServerError)
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
