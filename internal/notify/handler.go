package notify

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes the notification feed over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a notification handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("notify: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /notifications/{userID}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	notifications, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err, "user_id", userID)
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	unread, err := h.service.CountUnread(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", "error", err, "user_id", userID)
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unread":        unread,
	})
}

// MarkRead handles POST /notifications/{notificationID}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")

	if err := h.service.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to mark notification read", "error", err, "notification_id", id)
		http.Error(w, "Failed to mark notification read", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
