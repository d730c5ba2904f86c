package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes appointment booking and lifecycle over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a booking handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("booking: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Book handles POST /appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.BookConsultation(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingField):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrDoctorUnavailable):
			http.Error(w, "Doctor not available for booking", http.StatusConflict)
		case errors.Is(err, profiles.ErrPatientNotFound), errors.Is(err, profiles.ErrDoctorNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error("failed to book consultation", "error", err)
			http.Error(w, "Failed to book consultation", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")
	appt, err := h.service.Appointment(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			http.Error(w, "Appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch appointment", "error", err, "appointment_id", id)
		http.Error(w, "Failed to fetch appointment", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// UpdateStatus handles PATCH /appointments/{appointmentID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")

	var req struct {
		Status AppointmentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.service.UpdateAppointmentStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			http.Error(w, "Appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("failed to update appointment status", "error", err, "appointment_id", id)
			http.Error(w, "Failed to update appointment", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")

	var req struct {
		CancelledBy string `json:"cancelled_by"`
	}
	// Body is optional; an empty cancelled_by still cancels.
	_ = json.NewDecoder(r.Body).Decode(&req)

	appt, err := h.service.CancelAppointment(r.Context(), id, req.CancelledBy)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			http.Error(w, "Appointment not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("failed to cancel appointment", "error", err, "appointment_id", id)
			http.Error(w, "Failed to cancel appointment", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// AttachPrescription handles POST /appointments/{appointmentID}/prescription.
func (h *Handler) AttachPrescription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "appointmentID")

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "Prescription text is required", http.StatusBadRequest)
		return
	}

	rx, err := h.service.AttachPrescription(r.Context(), id, req.Text)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			http.Error(w, "Appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to attach prescription", "error", err, "appointment_id", id)
		http.Error(w, "Failed to attach prescription", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, rx)
}

// ListByPatient handles GET /patients/{patientID}/appointments.
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientID")
	appointments, err := h.service.PatientAppointments(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list patient appointments", "error", err, "patient_id", id)
		http.Error(w, "Failed to list appointments", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, appointments)
}

// ListByDoctor handles GET /doctors/{doctorID}/appointments.
func (h *Handler) ListByDoctor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doctorID")
	appointments, err := h.service.DoctorAppointments(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list doctor appointments", "error", err, "doctor_id", id)
		http.Error(w, "Failed to list appointments", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, appointments)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
