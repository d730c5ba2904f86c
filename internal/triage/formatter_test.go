package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterParseSections(t *testing.T) {
	f := NewFormatter()

	text := `**Acknowledgment**: I'm sorry to hear you're feeling unwell.

**Symptoms**: headache, mild fever

**Possible Conditions**:
- Common cold
- Seasonal flu

**Recommendations**: Rest, Hydrate

**Medicines**:
1. Paracetamol
2. Ibuprofen

**Questions**:
- How long have you had the fever?
- Any body aches?`

	a := f.Parse(text)

	assert.Equal(t, "I'm sorry to hear you're feeling unwell.", a.Acknowledgment)
	assert.Equal(t, []string{"headache", "mild fever"}, a.Symptoms)
	assert.Equal(t, []string{"Common cold", "Seasonal flu"}, a.PossibleConditions)
	assert.Equal(t, []string{"Rest", "Hydrate"}, a.Recommendations)
	assert.Equal(t, []string{"Paracetamol", "Ibuprofen"}, a.Medicines)
	require.Len(t, a.Questions, 2)
	assert.Equal(t, "How long have you had the fever?", a.Questions[0])
}

func TestFormatterMissingSectionsAreAbsent(t *testing.T) {
	f := NewFormatter()

	a := f.Parse("Just drink some water and you should feel better soon.")

	assert.Empty(t, a.Recommendations)
	assert.Empty(t, a.PossibleConditions)
	assert.Empty(t, a.Medicines)
	assert.Empty(t, a.Questions)
	assert.Empty(t, a.Acknowledgment)
}

func TestFormatterEmptyInput(t *testing.T) {
	f := NewFormatter()

	a := f.Parse("")

	assert.Equal(t, UrgencyLow, a.Urgency)
	assert.Empty(t, a.Symptoms)
}

func TestClassifyUrgency(t *testing.T) {
	f := NewFormatter()

	tests := []struct {
		name string
		text string
		want Urgency
	}{
		{
			name: "emergency keyword wins",
			text: "This could be serious. Please call 911 right away.",
			want: UrgencyEmergency,
		},
		{
			name: "emergency outranks lower keywords in same text",
			text: "Rest and stay hydrated, but if you feel severe chest pain call 911.",
			want: UrgencyEmergency,
		},
		{
			name: "high urgency",
			text: "You should see a doctor today about this severe pain.",
			want: UrgencyHigh,
		},
		{
			name: "medium urgency",
			text: "Please consult a doctor if symptoms persist over the week.",
			want: UrgencyMedium,
		},
		{
			name: "low urgency",
			text: "This sounds mild. Rest and use over-the-counter remedies.",
			want: UrgencyLow,
		},
		{
			name: "no keywords defaults to low",
			text: "Thanks for the update.",
			want: UrgencyLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ClassifyUrgency(tt.text))
		})
	}
}

func TestFormatterHeaderVariants(t *testing.T) {
	f := NewFormatter()

	tests := []struct {
		name string
		text string
	}{
		{"bold colon outside", "**Recommendations**: Rest, Hydrate"},
		{"bold colon inside", "**Recommendations:** Rest, Hydrate"},
		{"plain header", "Recommendations: Rest, Hydrate"},
		{"lowercase header", "recommendations: Rest, Hydrate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := f.Parse(tt.text)
			assert.Equal(t, []string{"Rest", "Hydrate"}, a.Recommendations)
		})
	}
}

func TestMaxUrgencyOrdering(t *testing.T) {
	assert.Equal(t, UrgencyEmergency, MaxUrgency(UrgencyHigh, UrgencyEmergency))
	assert.Equal(t, UrgencyHigh, MaxUrgency(UrgencyHigh, UrgencyMedium))
	assert.Equal(t, UrgencyMedium, MaxUrgency(UrgencyLow, UrgencyMedium))
	assert.Equal(t, UrgencyLow, MaxUrgency(UrgencyLow, UrgencyLow))
}
