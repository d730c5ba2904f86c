package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ LLMClient = (*scriptedLLM)(nil)

type scriptedLLM struct {
	responses []LLMResponse
	errs      []error
	calls     int
	lastReq   LLMRequest
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return LLMResponse{}, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return LLMResponse{Text: "I understand. Can you tell me more?"}, nil
}

const analysisReply = `I understand you are feeling unwell.

**Questions:**
- How long have you had the fever?

**Possible Conditions:**
- Viral fever

**Recommendations:**
- Rest
- Consult a doctor if symptoms persist

**Medicines:**
- Paracetamol

**Symptoms:**
- fever
- headache`

func TestStartSessionReturnsGreeting(t *testing.T) {
	llm := &scriptedLLM{}
	svc := NewService(llm, nil)

	resp, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.Reply, "symptoms")
	assert.Equal(t, UrgencyLow, resp.Analysis.Urgency)
	assert.False(t, resp.Fallback)
	assert.Zero(t, llm.calls)
}

func TestAnalyzeParsesStructuredReply(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: analysisReply}}}
	svc := NewService(llm, nil)

	start, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	resp, err := svc.Analyze(context.Background(), AnalysisRequest{
		SessionID: start.SessionID,
		Message:   "I have a fever and headache",
	})
	require.NoError(t, err)

	assert.Equal(t, start.SessionID, resp.SessionID)
	assert.False(t, resp.Fallback)
	assert.Equal(t, []string{"fever", "headache"}, resp.Analysis.Symptoms)
	assert.Equal(t, []string{"Viral fever"}, resp.Analysis.PossibleConditions)
	assert.Equal(t, []string{"Paracetamol"}, resp.Analysis.Medicines)
	assert.Equal(t, UrgencyMedium, resp.Analysis.Urgency)
}

func TestAnalyzeWithoutSessionCreatesOne(t *testing.T) {
	llm := &scriptedLLM{}
	svc := NewService(llm, nil)

	resp, err := svc.Analyze(context.Background(), AnalysisRequest{Message: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)

	snap, err := svc.Session(context.Background(), resp.SessionID)
	require.NoError(t, err)
	// Greeting, user turn, bot turn.
	assert.Len(t, snap.Messages, 3)
}

func TestAnalyzeSendsHistoryAndSystemPrompt(t *testing.T) {
	llm := &scriptedLLM{}
	svc := NewService(llm, nil, WithModelParams("test-model", 512, 0.2))

	start, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.MergePatientInfo(context.Background(), start.SessionID, PatientInfo{Age: 34}))

	_, err = svc.Analyze(context.Background(), AnalysisRequest{
		SessionID: start.SessionID,
		Message:   "my stomach hurts",
	})
	require.NoError(t, err)

	req := llm.lastReq
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, int32(512), req.MaxTokens)
	require.NotEmpty(t, req.System)
	assert.Contains(t, req.System[len(req.System)-1], "34")

	require.NotEmpty(t, req.Messages)
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, ChatRoleUser, last.Role)
	assert.Equal(t, "my stomach hurts", last.Content)
}

func TestAnalyzeFallbackOnLLMFailure(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("quota exceeded for project")}}
	svc := NewService(llm, nil)

	start, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	resp, err := svc.Analyze(context.Background(), AnalysisRequest{
		SessionID: start.SessionID,
		Message:   "I feel dizzy",
	})
	require.NoError(t, err)

	assert.True(t, resp.Fallback)
	assert.False(t, resp.Retryable)
	assert.Equal(t, UrgencyMedium, resp.Analysis.Urgency)
	assert.Contains(t, resp.Reply, "consult a doctor")

	// The fallback is recorded in the conversation.
	snap, err := svc.Session(context.Background(), start.SessionID)
	require.NoError(t, err)
	lastMsg := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, RoleBot, lastMsg.Role)
	assert.Contains(t, lastMsg.Content, "consult a doctor")
}

func TestAnalyzeRetryableFailure(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("connection refused")}}
	svc := NewService(llm, nil)

	resp, err := svc.Analyze(context.Background(), AnalysisRequest{Message: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Fallback)
	assert.True(t, resp.Retryable)
}

func TestSessionResumesFromStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 0)

	llm := &scriptedLLM{}
	svc := NewService(llm, nil, WithSessionStore(store))

	start, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	_, err = svc.Analyze(context.Background(), AnalysisRequest{SessionID: start.SessionID, Message: "fever"})
	require.NoError(t, err)

	// A second service instance sharing the store picks the session up.
	other := NewService(&scriptedLLM{}, nil, WithSessionStore(store))
	resp, err := other.Analyze(context.Background(), AnalysisRequest{SessionID: start.SessionID, Message: "still feverish"})
	require.NoError(t, err)
	assert.Equal(t, start.SessionID, resp.SessionID)

	snap, err := other.Session(context.Background(), start.SessionID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(snap.Messages), 5)
}

func TestEndSessionRemovesState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 0)

	svc := NewService(&scriptedLLM{}, nil, WithSessionStore(store))
	start, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	svc.EndSession(context.Background(), start.SessionID)

	_, err = svc.Session(context.Background(), start.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMergePatientInfoUnknownSession(t *testing.T) {
	svc := NewService(&scriptedLLM{}, nil)
	err := svc.MergePatientInfo(context.Background(), "missing", PatientInfo{Age: 50})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
