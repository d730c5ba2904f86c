package triage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests march time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(opts ...SessionOption) (*SessionManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	opts = append(opts, WithClock(clock.Now))
	return NewSessionManager(opts...), clock
}

func TestStartSessionSeedsGreeting(t *testing.T) {
	m, _ := newTestManager()

	s := m.StartSession()

	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleBot, s.Messages[0].Role)
	assert.Equal(t, UrgencyLow, s.Messages[0].UrgencyLevel)
	assert.NotEmpty(t, s.Messages[0].Content)
	assert.True(t, s.Active)
	assert.NotEmpty(t, s.ID)
}

func TestAddMessageCreatesSessionTransparently(t *testing.T) {
	m, _ := newTestManager()

	m.AddUserMessage("I have a headache")

	s := m.CurrentSession()
	require.NotNil(t, s)
	// greeting + the user message
	require.Len(t, s.Messages, 2)
	assert.Equal(t, RoleUser, s.Messages[1].Role)
}

func TestMessagesAreOrderedAndNonDecreasing(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()

	prev := 1
	for i := 0; i < 10; i++ {
		m.AddUserMessage(fmt.Sprintf("turn %d", i))
		s := m.CurrentSession()
		require.NotNil(t, s)
		assert.GreaterOrEqual(t, len(s.Messages), prev)
		prev = len(s.Messages)
	}

	s := m.CurrentSession()
	for i, msg := range s.Messages[1:] {
		assert.Equal(t, fmt.Sprintf("turn %d", i), msg.Content)
	}
}

func TestMessageCapRetainsGreeting(t *testing.T) {
	m, _ := newTestManager(WithMaxMessages(5))
	m.StartSession()

	for i := 0; i < 20; i++ {
		m.AddUserMessage(fmt.Sprintf("turn %d", i))
	}

	s := m.CurrentSession()
	require.NotNil(t, s)
	require.Len(t, s.Messages, 5)
	// First message is still the greeting, the rest are the most recent turns.
	assert.Equal(t, RoleBot, s.Messages[0].Role)
	assert.Equal(t, "turn 19", s.Messages[4].Content)
	assert.Equal(t, "turn 16", s.Messages[1].Content)
}

func TestSessionExpiresAfterTimeout(t *testing.T) {
	m, clock := newTestManager()
	m.StartSession()
	require.NotNil(t, m.CurrentSession())

	clock.Advance(29 * time.Minute)
	require.NotNil(t, m.CurrentSession())

	clock.Advance(2 * time.Minute)
	assert.Nil(t, m.CurrentSession())
}

func TestExpiredSessionIsReplacedOnNextUse(t *testing.T) {
	m, clock := newTestManager()
	first := m.StartSession()

	clock.Advance(31 * time.Minute)
	require.Nil(t, m.CurrentSession())

	m.AddUserMessage("still there?")
	s := m.CurrentSession()
	require.NotNil(t, s)
	assert.NotEqual(t, first.ID, s.ID)
}

func TestEndSessionIsTerminal(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()
	m.EndSession()

	assert.Nil(t, m.CurrentSession())
	assert.Nil(t, m.History(10))
}

func TestHighestUrgency(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()

	m.AddBotMessage("a", BotMeta{UrgencyLevel: UrgencyLow})
	m.AddBotMessage("b", BotMeta{UrgencyLevel: UrgencyHigh})
	m.AddBotMessage("c", BotMeta{UrgencyLevel: UrgencyMedium})

	assert.Equal(t, UrgencyHigh, m.HighestUrgency())
}

func TestHighestUrgencyDefaultsLow(t *testing.T) {
	m, _ := newTestManager()
	m.AddUserMessage("hello")
	assert.Equal(t, UrgencyLow, m.HighestUrgency())
}

func TestSymptomsDeduplicated(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()

	m.AddBotMessage("a", BotMeta{Symptoms: []string{"fever", "cough"}})
	m.AddBotMessage("b", BotMeta{Symptoms: []string{"Fever", "nausea"}})

	symptoms := m.Symptoms()
	assert.ElementsMatch(t, []string{"fever", "cough", "nausea"}, symptoms)
}

func TestHistoryMapsRolesAndLimits(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()
	m.AddUserMessage("one")
	m.AddBotMessage("two", BotMeta{})
	m.AddUserMessage("three")

	history := m.History(2)
	require.Len(t, history, 2)
	assert.Equal(t, "model", history[0].Role)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "user", history[1].Role)
	assert.Equal(t, "three", history[1].Content)

	all := m.History(0)
	assert.Len(t, all, 4)
	assert.Equal(t, "model", all[0].Role) // greeting
}

func TestMergePatientInfoOverwritesPerField(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()

	m.MergePatientInfo(PatientInfo{Age: 42, Gender: "female"})
	m.MergePatientInfo(PatientInfo{Allergies: []string{"penicillin"}})
	m.MergePatientInfo(PatientInfo{Age: 43})

	s := m.CurrentSession()
	require.NotNil(t, s)
	assert.Equal(t, 43, s.PatientInfo.Age)
	assert.Equal(t, "female", s.PatientInfo.Gender)
	assert.Equal(t, []string{"penicillin"}, s.PatientInfo.Allergies)
}

func TestExportImportRoundTrip(t *testing.T) {
	m, clock := newTestManager()
	m.StartSession()
	m.AddUserMessage("I feel dizzy")
	m.AddBotMessage("noted", BotMeta{Symptoms: []string{"dizziness"}, UrgencyLevel: UrgencyMedium})
	m.MergePatientInfo(PatientInfo{Age: 30})

	exported := m.Export()
	require.NotNil(t, exported)

	// Import into a fresh manager after a long gap: messages and patient info
	// survive and the session is treated as freshly active.
	other, _ := newTestManager()
	clock.Advance(48 * time.Hour)
	other.Import(*exported)

	s := other.CurrentSession()
	require.NotNil(t, s)
	assert.Equal(t, exported.ID, s.ID)
	assert.Equal(t, len(exported.Messages), len(s.Messages))
	assert.Equal(t, 30, s.PatientInfo.Age)
	assert.Equal(t, UrgencyMedium, s.Summary.HighestUrgency)
	assert.ElementsMatch(t, []string{"dizziness"}, s.Summary.Symptoms)
}

func TestClonePreventsExternalMutation(t *testing.T) {
	m, _ := newTestManager()
	m.StartSession()
	m.AddBotMessage("x", BotMeta{Symptoms: []string{"fever"}})

	snap := m.CurrentSession()
	snap.Messages[0].Content = "tampered"
	snap.Summary.Symptoms[0] = "tampered"

	again := m.CurrentSession()
	assert.NotEqual(t, "tampered", again.Messages[0].Content)
	assert.Equal(t, "fever", again.Summary.Symptoms[0])
}
