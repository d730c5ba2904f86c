package triage

import (
	"regexp"
	"strings"
)

// Formatter turns free-text LLM prose into a structured Analysis by matching
// markdown-style section headers and scanning for urgency keywords. It is
// best-effort: sections the model did not emit are simply absent, and no
// input ever produces an error.
type Formatter struct {
	sections map[string]*regexp.Regexp
	urgency  []urgencyPattern
}

type urgencyPattern struct {
	level Urgency
	regex *regexp.Regexp
}

// Section headers we expect the model to produce, e.g. "**Recommendations**: ...".
// Each captures the text following the header up to the next header or blank line.
var sectionNames = map[string][]string{
	"acknowledgment":  {"acknowledgment", "acknowledgement"},
	"questions":       {"questions", "follow-up questions", "followup questions"},
	"conditions":      {"possible conditions", "conditions", "possible causes"},
	"recommendations": {"recommendations", "advice", "what to do"},
	"medicines":       {"medicines", "medications", "suggested medicines", "otc medicines"},
	"symptoms":        {"symptoms", "identified symptoms", "reported symptoms"},
}

// NewFormatter builds the parser with its fixed pattern sets.
func NewFormatter() *Formatter {
	f := &Formatter{sections: make(map[string]*regexp.Regexp)}

	for key, aliases := range sectionNames {
		alternation := strings.Join(aliases, "|")
		// Matches "**Header**:", "**Header:**", "Header:" at line start.
		f.sections[key] = regexp.MustCompile(
			`(?im)^\s*\*{0,2}(?:` + alternation + `)\*{0,2}\s*:\*{0,2}\s*(.*(?:\n(?:[-*•]\s*.+|\d+[.)]\s*.+))*)`)
	}

	// Urgency keyword sets scanned over the whole response, highest first.
	// The first priority level with any match wins.
	f.urgency = []urgencyPattern{
		{UrgencyEmergency, regexp.MustCompile(`(?i)\b(call 911|call 108|emergency room|go to the er\b|life.?threatening|severe chest pain|difficulty breathing|unconscious|stroke|anaphyla|immediately seek emergency)`)},
		{UrgencyHigh, regexp.MustCompile(`(?i)\b(urgent|see a doctor (today|immediately|as soon as possible)|seek (immediate|prompt) (medical|care)|worsening rapidly|high fever|severe pain)`)},
		{UrgencyMedium, regexp.MustCompile(`(?i)\b(consult a doctor|schedule an appointment|within a few days|monitor closely|if symptoms persist|moderate)`)},
		{UrgencyLow, regexp.MustCompile(`(?i)\b(rest|stay hydrated|mild|self.?care|over.?the.?counter|home remed)`)},
	}

	return f
}

// Parse extracts an Analysis from raw model output.
func (f *Formatter) Parse(text string) Analysis {
	a := Analysis{Urgency: f.ClassifyUrgency(text)}
	if strings.TrimSpace(text) == "" {
		return a
	}

	a.Acknowledgment = firstLine(f.section(text, "acknowledgment"))
	a.Questions = splitItems(f.section(text, "questions"))
	a.PossibleConditions = splitItems(f.section(text, "conditions"))
	a.Recommendations = splitItems(f.section(text, "recommendations"))
	a.Medicines = splitItems(f.section(text, "medicines"))
	a.Symptoms = splitItems(f.section(text, "symptoms"))
	return a
}

// ClassifyUrgency scans the whole response for the fixed keyword sets in
// priority order emergency > high > medium > low; first match wins. Text with
// no match at all classifies as low.
func (f *Formatter) ClassifyUrgency(text string) Urgency {
	for _, p := range f.urgency {
		if p.regex.MatchString(text) {
			return p.level
		}
	}
	return UrgencyLow
}

func (f *Formatter) section(text, key string) string {
	re, ok := f.sections[key]
	if !ok {
		return ""
	}
	match := re.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// splitItems breaks a section body into entries: bullet/numbered lines if
// present, otherwise comma-separated values on a single line.
func splitItems(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	var raw []string
	if strings.Contains(body, "\n") {
		raw = strings.Split(body, "\n")
	} else {
		raw = strings.Split(body, ",")
	}

	items := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		item = strings.TrimLeft(item, "-*•")
		item = trimOrdinal(item)
		item = strings.TrimSpace(item)
		item = strings.Trim(item, "*")
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

var ordinalPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

func trimOrdinal(s string) string {
	return ordinalPrefix.ReplaceAllString(s, "")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
