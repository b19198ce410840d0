package flows

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/ports/outbound"
)

var promptFuncs = template.FuncMap{
	"list": func(items []string) string {
		return strings.Join(items, ", ")
	},
	"listOr": func(fallback string, items []string) string {
		if len(items) == 0 {
			return fallback
		}
		return strings.Join(items, ", ")
	},
}

type promptSpec struct {
	system string
	schema string
	tmpl   *template.Template
}

func newPrompt(name, system, schema, body string) promptSpec {
	return promptSpec{
		system: system,
		schema: schema,
		tmpl:   template.Must(template.New(name).Funcs(promptFuncs).Parse(body)),
	}
}

// request renders the prompt into a model request carrying the flow's
// declared output shape
func (p promptSpec) request(data any) (outbound.ModelRequest, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return outbound.ModelRequest{}, fmt.Errorf("render %s prompt: %w", p.tmpl.Name(), err)
	}
	return outbound.ModelRequest{System: p.system, Prompt: b.String(), Schema: p.schema}, nil
}

type categoryData struct {
	Category profile.Category
	Item     string
}

type profileData struct {
	Profile  profile.Snapshot
	ItemName string
	Photos   int
}

var validatePrompt = newPrompt("validate",
	"You are a medical information AI that validates user input.",
	`{"isValid": boolean}`,
	`The user is adding an item to their health profile.
Category: "{{.Category}}"
Item Name: "{{.Item}}"

Task: Determine if "{{.Item}}" is a plausible, real-world medical term for the specified category.
- For "allergies", it should be a known allergen (e.g., "Peanuts", "Pollen", "Sulfa drugs").
- For "medications", it should be a known drug name (brand or generic) or supplement (e.g., "Lisinopril", "Tylenol", "Vitamin D").
- For "conditions", it should be a known medical condition or disease (e.g., "Hypertension", "Asthma").

If it is a plausible term, set "isValid" to true.
If it is gibberish (e.g., "asdfgh"), a non-medical item (e.g., "a car"), or clearly not relevant to the category, set "isValid" to false. Be strict.
`)

var suggestionsPrompt = newPrompt("suggestions",
	"You are a medical information AI that provides autocomplete suggestions.",
	`{"suggestions": [string, ...]}`,
	`Given the category "{{.Category}}" and the user's query "{{.Item}}", provide a list of up to 5 relevant and common medical terms.
Only return suggestions that start with the query text.
Do not provide any explanation, just the list of suggestions.
If the query is empty or too short, return an empty list.
`)

var compatibilityPrompt = newPrompt("compatibility",
	"You are a cautious medical information AI performing a strict safety analysis.",
	`{"isValidItem": boolean, "riskLevel": "None" | "Low" | "Moderate" | "High", "analysis": string}
Omit "riskLevel" and "analysis" when "isValidItem" is false.`,
	`**Strict Safety Analysis Request**

**Item to Evaluate:**
- Name: {{if .ItemName}}{{.ItemName}}{{else}}(not provided){{end}}
{{- if .Photos}}
- Photos: {{.Photos}} attached
{{- end}}

**User Health Profile:**
- Allergies: {{list .Profile.Allergies}}
- Current Medications: {{list .Profile.Medications}}
- Pre-existing Medical Conditions: {{list .Profile.Conditions}}

**Task:**
1. First, validate the item. Determine if the name and/or the attached photos represent a plausible drug, supplement, or food item. If it is nonsensical (e.g., "asdfgh"), irrelevant (e.g., "a car"), or clearly not a consumable item, set "isValidItem" to false and stop. Do not generate an analysis or risk level.
2. If the item is valid, set "isValidItem" to true and proceed.
3. Analyze potential interactions, contraindications, and risks for the user based on their specific health profile and the validated item.
4. If photos are provided, use them as the primary source for identifying the item. If the name seems to contradict the photos, prioritize the visual information from the photos.
5. Set "riskLevel" to exactly one of "None", "Low", "Moderate", or "High": "None" if it appears safe, "Low" for minor considerations, "Moderate" for notable interactions, "High" for significant contraindications.
6. Provide a clear, easy-to-understand explanation in "analysis". Start with a direct safety conclusion (e.g., "High Risk Identified", "Appears Safe", "Use with Caution") and then explain the reasoning in detail.
7. Do not provide medical advice, but explain the known biological and chemical interactions.
`)

var alternativesPrompt = newPrompt("alternatives",
	"You are a helpful medical information AI.",
	`{"alternatives": [{"name": string, "reason": string}, ...]}`,
	`**Alternative Suggestion Request**

An analysis has identified a potential risk for a user with the following health profile who wants to take "{{.ItemName}}".

**User Health Profile:**
- Allergies: {{list .Profile.Allergies}}
- Current Medications: {{list .Profile.Medications}}
- Pre-existing Medical Conditions: {{list .Profile.Conditions}}

**Task:**
1. Based on the user's profile and the problematic item "{{.ItemName}}", suggest 2-3 safer alternatives.
2. For each alternative, provide the name and a brief, clear reason why it is a safer choice for this specific user, considering their profile.
3. Focus on common, accessible alternatives. If "{{.ItemName}}" is a medication, suggest alternative medications or classes of medications. If it is a food, suggest alternative foods.
4. Each reason must remind the user to consult a healthcare professional before making any changes.
`)

var advicePrompt = newPrompt("advice",
	"You are a highly cautious AI providing general safety information, not medical advice.",
	`{"advice": string}`,
	`**URGENT: Post-Ingestion Information Request**

A user has already taken an item named "{{.ItemName}}" which was identified as potentially risky given their health profile.

**User Health Profile:**
- Allergies: {{list .Profile.Allergies}}
- Current Medications: {{list .Profile.Medications}}
- Pre-existing Medical Conditions: {{list .Profile.Conditions}}

**Task:**
1. Provide a general list of symptoms the user should monitor for, based on potential interactions between "{{.ItemName}}" and their profile. Be generic (e.g., "difficulty breathing, rash, unusual swelling, dizziness") rather than diagnosing specific reactions.
2. Emphasize that the absence of immediate symptoms does not mean a risk is not present.
3. Conclude with a very clear, direct instruction to contact a healthcare professional or emergency services immediately for personalized medical advice.
4. Your entire response must be framed as safety information, not a diagnosis or treatment plan.
`)

var tipsPrompt = newPrompt("tips",
	"You are an expert AI health and wellness advisor. Your goal is to provide helpful, safe, and general lifestyle tips to users based on their health profile.",
	`{"tips": [{"category": string, "tip": string}, ...]}`,
	`**User Health Profile:**
- Allergies: {{listOr "None specified." .Profile.Allergies}}
- Pre-existing Medical Conditions: {{listOr "None specified." .Profile.Conditions}}
{{- if .Profile.Medications}}
- Current Medications: {{list .Profile.Medications}}
{{- end}}

**Task:**
1. Analyze the user's allergies and medical conditions.
2. Generate 3-5 practical and general lifestyle tips.
3. Organize the tips into logical categories such as "Dietary Advice", "Exercise Recommendations", "Home Environment", "Stress Management", or other relevant areas.
4. The tips must be general suggestions, not specific medical advice, prescriptions, or treatment plans.
5. If the user profile is empty, provide general wellness tips.
6. Phrase your tips in a supportive and encouraging tone.
7. You MUST NOT provide any information that could be construed as a medical diagnosis or treatment.
`)

// compatibilitySafety is sent with compatibility checks to providers that
// accept per-request safety thresholds.
var compatibilitySafety = []outbound.SafetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_LOW_AND_ABOVE"},
}
