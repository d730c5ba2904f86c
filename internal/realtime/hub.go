package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// TopicDoctors is the subscription topic for the available-doctors list.
const TopicDoctors = "available-doctors"

// TopicAppointments returns the subscription topic for a user's appointments.
func TopicAppointments(userID string) string {
	return "appointments:" + userID
}

// OutboundEvent is pushed to websocket subscribers. Data is the full snapshot
// for the topic.
type OutboundEvent struct {
	Type      string          `json:"type"` // "snapshot", "subscribed", "pong", "error"
	Topic     string          `json:"topic,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
}

// Hub fans snapshot payloads out to websocket subscribers by topic. Every
// update re-pushes the whole snapshot, so a client never has to reconcile
// diffs and a late subscriber can be caught up from the cached last payload.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	topics  map[string]map[*wsConn]struct{}
	lastMsg map[string]string // topic -> last snapshot payload
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:  logger,
		topics:  make(map[string]map[*wsConn]struct{}),
		lastMsg: make(map[string]string),
	}
}

// Broadcast pushes a snapshot payload to every subscriber of the topic and
// caches it for future subscribers.
func (h *Hub) Broadcast(topic, payload string) {
	event := OutboundEvent{
		Type:      "snapshot",
		Topic:     topic,
		Data:      json.RawMessage(payload),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.Lock()
	h.lastMsg[topic] = payload
	subscribers := make([]*wsConn, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		subscribers = append(subscribers, c)
	}
	h.mu.Unlock()

	for _, c := range subscribers {
		if err := websocket.JSON.Send(c.conn, event); err != nil {
			h.logger.Debug("dropping unreachable subscriber", "topic", topic, "error", err)
			h.unsubscribe(topic, c)
		}
	}
}

// SubscriberCount reports active subscriptions for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) subscribe(topic string, c *wsConn) {
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*wsConn]struct{})
	}
	h.topics[topic][c] = struct{}{}
	last, hasLast := h.lastMsg[topic]
	h.mu.Unlock()

	_ = websocket.JSON.Send(c.conn, OutboundEvent{Type: "subscribed", Topic: topic})
	if hasLast {
		_ = websocket.JSON.Send(c.conn, OutboundEvent{
			Type:      "snapshot",
			Topic:     topic,
			Data:      json.RawMessage(last),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *Hub) unsubscribe(topic string, c *wsConn) {
	h.mu.Lock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()
}
