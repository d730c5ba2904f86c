package triage

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSessionTimeout is how long a session stays current without activity.
	DefaultSessionTimeout = 30 * time.Minute
	// DefaultMaxMessages bounds session memory. When exceeded, the greeting is
	// retained and only the most recent messages are kept.
	DefaultMaxMessages = 50

	greetingText = "Hello! I'm your TeleSeva health assistant. Tell me about your symptoms and I'll help you figure out what to do next. For emergencies, please call your local emergency number immediately."
)

// SessionManager maintains one active symptom-checker session. It is an
// explicitly constructed object, not package state, so independent managers
// (one per connected client) can coexist and be tested in isolation.
type SessionManager struct {
	mu          sync.Mutex
	current     *Session
	timeout     time.Duration
	maxMessages int
	now         func() time.Time
}

// SessionOption customizes a SessionManager.
type SessionOption func(*SessionManager)

// WithTimeout overrides the inactivity window after which a session expires.
func WithTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithMaxMessages overrides the message cap.
func WithMaxMessages(n int) SessionOption {
	return func(m *SessionManager) {
		if n > 1 {
			m.maxMessages = n
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager creates a session manager with the given options.
func NewSessionManager(opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		timeout:     DefaultSessionTimeout,
		maxMessages: DefaultMaxMessages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSession begins a fresh session seeded with the greeting message and
// returns a snapshot of it. Any previous session is discarded.
func (m *SessionManager) StartSession() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked()
	return m.current.clone()
}

func (m *SessionManager) startLocked() {
	now := m.now()
	m.current = &Session{
		ID:           uuid.NewString(),
		StartTime:    now,
		LastActivity: now,
		Active:       true,
		Summary:      Summary{Symptoms: []string{}, HighestUrgency: UrgencyLow},
	}
	m.current.Messages = []Message{{
		ID:           uuid.NewString(),
		Role:         RoleBot,
		Content:      greetingText,
		Timestamp:    now,
		UrgencyLevel: UrgencyLow,
	}}
}

// AddUserMessage appends a user turn. A session is created transparently if
// none is current. Returns the appended message.
func (m *SessionManager) AddUserMessage(content string) Message {
	return m.append(RoleUser, content, BotMeta{})
}

// AddBotMessage appends a bot turn with its structured metadata.
func (m *SessionManager) AddBotMessage(content string, meta BotMeta) Message {
	return m.append(RoleBot, content, meta)
}

func (m *SessionManager) append(role, content string, meta BotMeta) Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionLocked() == nil {
		m.startLocked()
	}

	now := m.now()
	msg := Message{
		ID:                 uuid.NewString(),
		Role:               role,
		Content:            content,
		Timestamp:          now,
		UrgencyLevel:       meta.UrgencyLevel,
		Symptoms:           meta.Symptoms,
		Medicines:          meta.Medicines,
		PossibleConditions: meta.PossibleConditions,
	}

	m.current.Messages = append(m.current.Messages, msg)
	m.current.LastActivity = now
	m.trimLocked()
	m.summarizeLocked()
	return msg
}

// trimLocked enforces the message cap: the greeting (first message) survives,
// the oldest non-greeting messages are dropped.
func (m *SessionManager) trimLocked() {
	msgs := m.current.Messages
	if len(msgs) <= m.maxMessages {
		return
	}
	keep := m.maxMessages - 1
	trimmed := make([]Message, 0, m.maxMessages)
	trimmed = append(trimmed, msgs[0])
	trimmed = append(trimmed, msgs[len(msgs)-keep:]...)
	m.current.Messages = trimmed
}

func (m *SessionManager) summarizeLocked() {
	seen := make(map[string]struct{})
	symptoms := []string{}
	highest := UrgencyLow
	for _, msg := range m.current.Messages {
		for _, s := range msg.Symptoms {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			symptoms = append(symptoms, strings.TrimSpace(s))
		}
		if msg.UrgencyLevel != "" {
			highest = MaxUrgency(highest, msg.UrgencyLevel)
		}
	}
	m.current.Summary = Summary{Symptoms: symptoms, HighestUrgency: highest}
}

// MergePatientInfo overwrites any fields set on info; zero-valued fields are
// left untouched. Collected info is never removed.
func (m *SessionManager) MergePatientInfo(info PatientInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionLocked() == nil {
		m.startLocked()
	}

	p := &m.current.PatientInfo
	if info.Age > 0 {
		p.Age = info.Age
	}
	if info.Gender != "" {
		p.Gender = info.Gender
	}
	if len(info.MedicalHistory) > 0 {
		p.MedicalHistory = info.MedicalHistory
	}
	if len(info.CurrentMedications) > 0 {
		p.CurrentMedications = info.CurrentMedications
	}
	if len(info.Allergies) > 0 {
		p.Allergies = info.Allergies
	}
	if len(info.ChronicConditions) > 0 {
		p.ChronicConditions = info.ChronicConditions
	}
	m.current.LastActivity = m.now()
}

// CurrentSession returns a snapshot of the active session, or nil if no
// session exists, the session was ended, or it idled past the timeout.
func (m *SessionManager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked()
	if s == nil {
		return nil
	}
	snap := s.clone()
	return &snap
}

// sessionLocked applies the expiry check and returns the live session or nil.
func (m *SessionManager) sessionLocked() *Session {
	if m.current == nil || !m.current.Active {
		return nil
	}
	if m.now().Sub(m.current.LastActivity) >= m.timeout {
		m.current.Active = false
		return nil
	}
	return m.current
}

// History returns up to limit of the most recent messages mapped to LLM roles
// ("user"/"model"), oldest first. limit <= 0 returns everything.
func (m *SessionManager) History(limit int) []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked()
	if s == nil {
		return nil
	}

	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	history := make([]HistoryEntry, 0, len(msgs))
	for _, msg := range msgs {
		role := "model"
		if msg.Role == RoleUser {
			role = "user"
		}
		history = append(history, HistoryEntry{Role: role, Content: msg.Content})
	}
	return history
}

// Symptoms returns the distinct symptoms tagged across all messages.
func (m *SessionManager) Symptoms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked()
	if s == nil {
		return nil
	}
	return append([]string(nil), s.Summary.Symptoms...)
}

// HighestUrgency returns the maximum urgency seen, defaulting to low.
func (m *SessionManager) HighestUrgency() Urgency {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked()
	if s == nil {
		return UrgencyLow
	}
	return s.Summary.HighestUrgency
}

// EndSession marks the session ended. Ended sessions never become active
// again; the next append starts a new one.
func (m *SessionManager) EndSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Active = false
	}
}

// Export returns a copy of the session suitable for persistence, or nil if
// no session is current.
func (m *SessionManager) Export() *Session {
	return m.CurrentSession()
}

// Import replaces the current session with the provided one. LastActivity is
// reset to now: an imported session is being actively resumed, so it starts a
// fresh inactivity window regardless of how old the exported data is.
func (m *SessionManager) Import(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := s.clone()
	snap.Active = true
	snap.LastActivity = m.now()
	m.current = &snap
	m.summarizeLocked()
}

// clone deep-copies the slices so callers cannot mutate manager state.
func (s *Session) clone() Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Summary.Symptoms = append([]string(nil), s.Summary.Symptoms...)
	out.PatientInfo.MedicalHistory = append([]string(nil), s.PatientInfo.MedicalHistory...)
	out.PatientInfo.CurrentMedications = append([]string(nil), s.PatientInfo.CurrentMedications...)
	out.PatientInfo.Allergies = append([]string(nil), s.PatientInfo.Allergies...)
	out.PatientInfo.ChronicConditions = append([]string(nil), s.PatientInfo.ChronicConditions...)
	return out
}
