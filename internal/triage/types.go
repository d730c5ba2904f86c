package triage

import "time"

// Urgency is the coarse triage classification of a symptom-checker exchange.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

var urgencyRank = map[Urgency]int{
	UrgencyLow:       0,
	UrgencyMedium:    1,
	UrgencyHigh:      2,
	UrgencyEmergency: 3,
}

// Rank returns the position of the urgency in the total order
// low < medium < high < emergency. Unknown values rank as low.
func (u Urgency) Rank() int {
	return urgencyRank[u]
}

// MaxUrgency returns the higher of two urgency levels.
func MaxUrgency(a, b Urgency) Urgency {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Message roles within a session.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is a single chat turn. Immutable once appended to a session.
type Message struct {
	ID                 string    `json:"id"`
	Role               string    `json:"role"`
	Content            string    `json:"content"`
	Timestamp          time.Time `json:"timestamp"`
	HasAudio           bool      `json:"hasAudio,omitempty"`
	UrgencyLevel       Urgency   `json:"urgencyLevel,omitempty"`
	Symptoms           []string  `json:"symptoms,omitempty"`
	Medicines          []string  `json:"medicines,omitempty"`
	PossibleConditions []string  `json:"possibleConditions,omitempty"`
}

// BotMeta carries the structured metadata attached to a bot message.
type BotMeta struct {
	UrgencyLevel       Urgency
	Symptoms           []string
	Medicines          []string
	PossibleConditions []string
}

// PatientInfo holds incrementally collected patient context. Fields are merged
// per-field and never cleared, only overwritten.
type PatientInfo struct {
	Age                int      `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	MedicalHistory     []string `json:"medicalHistory,omitempty"`
	CurrentMedications []string `json:"currentMedications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	ChronicConditions  []string `json:"chronicConditions,omitempty"`
}

// Summary aggregates the session so far: all distinct symptoms mentioned and
// the highest urgency level seen.
type Summary struct {
	Symptoms       []string `json:"symptoms"`
	HighestUrgency Urgency  `json:"highestUrgency"`
}

// Session is one symptom-checker conversation and its accumulated context.
type Session struct {
	ID           string      `json:"id"`
	Messages     []Message   `json:"messages"`
	PatientInfo  PatientInfo `json:"patientInfo"`
	StartTime    time.Time   `json:"startTime"`
	LastActivity time.Time   `json:"lastActivity"`
	Active       bool        `json:"active"`
	Summary      Summary     `json:"summary"`
}

// HistoryEntry is a message mapped for an LLM prompt: role is "user" or "model".
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisRequest is a symptom-checker exchange submitted over HTTP or the queue.
type AnalysisRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// Analysis is the structured result extracted from an LLM reply.
type Analysis struct {
	Acknowledgment     string   `json:"acknowledgment,omitempty"`
	Questions          []string `json:"questions,omitempty"`
	PossibleConditions []string `json:"possibleConditions,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	Medicines          []string `json:"medicines,omitempty"`
	Symptoms           []string `json:"symptoms,omitempty"`
	Urgency            Urgency  `json:"urgency"`
}

// Response is what the service returns for one exchange.
type Response struct {
	SessionID string   `json:"sessionId"`
	Reply     string   `json:"reply"`
	Analysis  Analysis `json:"analysis"`
	Fallback  bool     `json:"fallback,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}
