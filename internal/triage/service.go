package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teleseva/teleseva-platform/internal/observability/metrics"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

var triageTracer = otel.Tracer("teleseva.internal.triage")

const historyWindow = 20

// Processor is the surface the HTTP handler and the queue worker consume.
type Processor interface {
	StartSession(ctx context.Context) (*Response, error)
	Analyze(ctx context.Context, req AnalysisRequest) (*Response, error)
}

// Service orchestrates sessions, the LLM and the response formatter. Each
// session has its own SessionManager; the registry lets concurrent patients
// hold independent conversations.
type Service struct {
	llm       LLMClient
	formatter *Formatter
	store     *SessionStore
	metrics   *metrics.TriageMetrics
	logger    *logging.Logger

	model       string
	maxTokens   int32
	temperature float32

	mu       sync.Mutex
	sessions map[string]*SessionManager

	managerOpts []SessionOption
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithModelParams sets the model ID and sampling parameters used on every call.
func WithModelParams(model string, maxTokens int32, temperature float32) ServiceOption {
	return func(s *Service) {
		s.model = model
		s.maxTokens = maxTokens
		s.temperature = temperature
	}
}

// WithSessionStore wires Redis persistence for exported sessions.
func WithSessionStore(store *SessionStore) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.TriageMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSessionOptions forwards options to every SessionManager the service creates.
func WithSessionOptions(opts ...SessionOption) ServiceOption {
	return func(s *Service) {
		s.managerOpts = opts
	}
}

// NewService constructs the triage service.
func NewService(llm LLMClient, logger *logging.Logger, opts ...ServiceOption) *Service {
	if llm == nil {
		panic("triage: LLM client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		llm:         llm,
		formatter:   NewFormatter(),
		logger:      logger,
		temperature: 0.4,
		maxTokens:   1024,
		sessions:    make(map[string]*SessionManager),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession begins a fresh conversation and returns the greeting.
func (s *Service) StartSession(ctx context.Context) (*Response, error) {
	ctx, span := triageTracer.Start(ctx, "triage.start_session")
	defer span.End()

	manager := NewSessionManager(s.managerOpts...)
	session := manager.StartSession()

	s.mu.Lock()
	s.sessions[session.ID] = manager
	s.mu.Unlock()

	s.persist(ctx, manager)

	span.SetAttributes(attribute.String("teleseva.session_id", session.ID))
	s.logger.Info("triage session started", "session_id", session.ID)

	return &Response{
		SessionID: session.ID,
		Reply:     session.Messages[0].Content,
		Analysis:  Analysis{Urgency: UrgencyLow},
	}, nil
}

// Analyze runs one symptom-checker exchange. On LLM failure the patient gets
// a classified, medically conservative fallback reply instead of an error.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*Response, error) {
	ctx, span := triageTracer.Start(ctx, "triage.analyze")
	defer span.End()

	manager, sessionID := s.resolve(ctx, req.SessionID)
	span.SetAttributes(attribute.String("teleseva.session_id", sessionID))

	manager.AddUserMessage(req.Message)

	session := manager.CurrentSession()
	if session == nil {
		// The append above guarantees an active session; this is unreachable
		// unless the manager is misconfigured with a zero timeout.
		return nil, errors.New("triage: no active session")
	}
	sessionID = session.ID

	llmReq := LLMRequest{
		Model:       s.model,
		System:      buildSystemPrompts(session.PatientInfo),
		Messages:    toChatMessages(manager.History(historyWindow)),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	start := time.Now()
	llmResp, err := s.llm.Complete(ctx, llmReq)
	s.metrics.ObserveLLMLatency("primary", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return s.fallbackResponse(sessionID, manager, err), nil
	}

	analysis := s.formatter.Parse(llmResp.Text)
	manager.AddBotMessage(llmResp.Text, BotMeta{
		UrgencyLevel:       analysis.Urgency,
		Symptoms:           analysis.Symptoms,
		Medicines:          analysis.Medicines,
		PossibleConditions: analysis.PossibleConditions,
	})
	s.persist(ctx, manager)

	s.metrics.ObserveExchange("ok")
	s.metrics.ObserveUrgency(string(analysis.Urgency))
	s.logger.Info("triage exchange completed",
		"session_id", sessionID,
		"urgency", analysis.Urgency,
		"symptoms", len(analysis.Symptoms),
	)

	return &Response{
		SessionID: sessionID,
		Reply:     llmResp.Text,
		Analysis:  analysis,
	}, nil
}

// MergePatientInfo folds known patient details into the session so follow-up
// prompts carry them.
func (s *Service) MergePatientInfo(ctx context.Context, sessionID string, info PatientInfo) error {
	s.mu.Lock()
	manager, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	manager.MergePatientInfo(info)
	s.persist(ctx, manager)
	return nil
}

// Session returns the current snapshot for a session ID, consulting the Redis
// store when the in-memory manager is gone.
func (s *Service) Session(ctx context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	manager, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if ok {
		if snap := manager.CurrentSession(); snap != nil {
			return snap, nil
		}
	}
	if s.store == nil {
		return nil, ErrSessionNotFound
	}
	return s.store.Load(ctx, sessionID)
}

// EndSession terminates a session and drops it from the registry.
func (s *Service) EndSession(ctx context.Context, sessionID string) {
	s.mu.Lock()
	manager, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		manager.EndSession()
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("failed to delete stored session", "error", err, "session_id", sessionID)
		}
	}
}

// resolve finds the manager for a session ID, resurrecting it from the store
// if needed, or creates a fresh one.
func (s *Service) resolve(ctx context.Context, sessionID string) (*SessionManager, string) {
	if sessionID != "" {
		s.mu.Lock()
		manager, ok := s.sessions[sessionID]
		s.mu.Unlock()
		if ok && manager.CurrentSession() != nil {
			return manager, sessionID
		}

		if s.store != nil {
			stored, err := s.store.Load(ctx, sessionID)
			if err == nil {
				manager := NewSessionManager(s.managerOpts...)
				manager.Import(*stored)
				s.mu.Lock()
				s.sessions[sessionID] = manager
				s.mu.Unlock()
				return manager, sessionID
			}
			if !errors.Is(err, ErrSessionNotFound) {
				s.logger.Warn("failed to load stored session", "error", err, "session_id", sessionID)
			}
		}
	}

	manager := NewSessionManager(s.managerOpts...)
	session := manager.StartSession()
	s.mu.Lock()
	s.sessions[session.ID] = manager
	s.mu.Unlock()
	return manager, session.ID
}

func (s *Service) fallbackResponse(sessionID string, manager *SessionManager, cause error) *Response {
	failure := ClassifyFailure(cause)
	manager.AddBotMessage(failure.Message, BotMeta{UrgencyLevel: failure.Urgency})

	s.metrics.ObserveExchange("fallback")
	s.metrics.ObserveUrgency(string(failure.Urgency))
	s.logger.Error("triage LLM failed, returning fallback",
		"error", cause,
		"kind", failure.Kind,
		"retryable", failure.Retryable,
		"session_id", sessionID,
	)

	return &Response{
		SessionID: sessionID,
		Reply:     failure.Message,
		Analysis:  Analysis{Urgency: failure.Urgency},
		Fallback:  true,
		Retryable: failure.Retryable,
	}
}

func (s *Service) persist(ctx context.Context, manager *SessionManager) {
	if s.store == nil {
		return
	}
	exported := manager.Export()
	if exported == nil {
		return
	}
	if err := s.store.Save(ctx, exported); err != nil {
		s.logger.Warn("failed to persist session", "error", err, "session_id", exported.ID)
	}
}

func toChatMessages(history []HistoryEntry) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history))
	for _, h := range history {
		role := ChatRoleAssistant
		if h.Role == "user" {
			role = ChatRoleUser
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: h.Content})
	}
	return msgs
}

var _ Processor = (*Service)(nil)
