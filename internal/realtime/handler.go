package realtime

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Handler exposes the hub's websocket endpoints.
type Handler struct {
	hub    *Hub
	logger *logging.Logger
}

// NewHandler creates a websocket handler over the hub.
func NewHandler(hub *Hub, logger *logging.Logger) *Handler {
	if hub == nil {
		panic("realtime: hub cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{hub: hub, logger: logger}
}

type inboundEvent struct {
	Type string `json:"type"` // "ping"
}

// HandleDoctors serves GET /ws/doctors: a live available-doctors snapshot feed.
func (h *Handler) HandleDoctors(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, TopicDoctors)
	}).ServeHTTP(w, r)
}

// HandleAppointments serves GET /ws/appointments?user={userID}: a live
// appointment snapshot feed for one user.
func (h *Handler) HandleAppointments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	websocket.Handler(func(conn *websocket.Conn) {
		if userID == "" {
			_ = websocket.JSON.Send(conn, OutboundEvent{Type: "error", Topic: "", Data: nil})
			return
		}
		h.serve(conn, TopicAppointments(userID))
	}).ServeHTTP(w, r)
}

func (h *Handler) serve(conn *websocket.Conn, topic string) {
	c := &wsConn{conn: conn}
	h.hub.subscribe(topic, c)
	defer h.hub.unsubscribe(topic, c)

	h.logger.Info("websocket subscriber connected", "topic", topic)

	for {
		var msg inboundEvent
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("websocket subscriber disconnected", "topic", topic, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundEvent{Type: "pong"})
		}
	}
}
