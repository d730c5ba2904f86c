package triage

import (
	"fmt"
	"strings"
)

// systemPrompt instructs the model to answer in the sectioned markdown layout
// the Formatter knows how to parse.
const systemPrompt = `You are TeleSeva's medical triage assistant. You help patients understand
their symptoms and decide what to do next. You are not a doctor and you never
diagnose; you suggest possibilities and next steps.

Always structure your reply with these markdown sections, in this order,
omitting a section only when you have nothing to put in it:

**Acknowledgment**: one empathetic sentence.
**Symptoms**: comma-separated list of the symptoms reported so far.
**Questions**: bulleted follow-up questions, at most three.
**Possible Conditions**: bulleted list of plausible, common explanations.
**Recommendations**: bulleted self-care and next-step advice.
**Medicines**: bulleted over-the-counter options only, with a reminder to
check the label.

Safety rules:
- If anything suggests an emergency (chest pain, trouble breathing, signs of
  stroke, severe allergic reaction), tell the patient to call their local
  emergency number immediately and keep the rest of the reply short.
- Recommend seeing a doctor whenever symptoms are severe, persistent, or
  worsening. Never discourage professional care.
- Never prescribe prescription-only medication.`

// buildSystemPrompts assembles the system instruction plus patient context.
func buildSystemPrompts(info PatientInfo) []string {
	prompts := []string{systemPrompt}
	if ctx := patientContext(info); ctx != "" {
		prompts = append(prompts, ctx)
	}
	return prompts
}

func patientContext(info PatientInfo) string {
	var parts []string
	if info.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", info.Age))
	}
	if info.Gender != "" {
		parts = append(parts, "Gender: "+info.Gender)
	}
	if len(info.MedicalHistory) > 0 {
		parts = append(parts, "Medical history: "+strings.Join(info.MedicalHistory, ", "))
	}
	if len(info.CurrentMedications) > 0 {
		parts = append(parts, "Current medications: "+strings.Join(info.CurrentMedications, ", "))
	}
	if len(info.Allergies) > 0 {
		parts = append(parts, "Allergies: "+strings.Join(info.Allergies, ", "))
	}
	if len(info.ChronicConditions) > 0 {
		parts = append(parts, "Chronic conditions: "+strings.Join(info.ChronicConditions, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Known patient context:\n" + strings.Join(parts, "\n")
}
