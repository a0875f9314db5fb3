package llm

import (
	"encoding/json"
	"strings"

	"hatespeech-annotation/internal/schema"
)

// SystemInstruction is sent to every provider as the system message. The
// JSON template at its end is rendered from the schema catalogs.
var SystemInstruction = buildSystemInstruction()

const instructionHeader = `You are an expert hate speech analyst. Your task is to analyze the provided text and return ONLY a valid JSON object that strictly adheres to the schema below. Do not include explanations, markdown, or any other text outside of the JSON object.

=========================
IMPORTANT INSTRUCTIONS
=========================
Return ONLY a valid JSON object.
Use curly braces {} and double quotes " for all keys and string values.
Do NOT use YAML-like syntax, colons without quotes, triple dashes, or markdown.

1. The output must be valid JSON, with no markdown or extra commentary.
2. Use the exact field names and types described below.
3. Each value must follow its correct type:
   - Floats: only for "score"
   - Integers: only for all values in "facets" (whole numbers, not floats)
   - Booleans: only for all values in "targets" (true or false, lowercase)

=========================
OVERALL SCORE
=========================
Produce a single signed float named "score" inside "overall":
- NEGATIVE float for supportive content, e.g. -1.35
- POSITIVE float for hateful content, e.g. 1.47
- NEAR ZERO float for neutral content, e.g. 0.12 or -0.08
It must be a standard JSON number, not a string.

=========================
FACETS (0-4 SCALE)
=========================
Each facet must be an integer from 0 to 4:
- 0 = Absent
- 1 = Mild
- 2 = Clear
- 3 = Severe
- 4 = Extreme

Example: "insult": 2
Do NOT output "insult": 2.0 or "insult": "2"

=========================
TARGETS (BOOLEAN FLAGS)
=========================
Set a target to true ONLY when:
1. The text explicitly mentions or refers to that specific group
2. The text expresses hate, bias, or negative sentiment toward that group
3. The group is the target of the hate speech, not just mentioned neutrally

=========================
JSON SCHEMA (MUST MATCH EXACTLY)
=========================
`

type templateOverall struct {
	Score float64 `json:"score"`
}

// orderedFlags keeps catalog order when rendering the template, which a
// plain map would lose.
type orderedFlags[V any] struct {
	keys  []string
	value V
}

func (o orderedFlags[V]) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	v, err := json.Marshal(o.value)
	if err != nil {
		return nil, err
	}
	for i, k := range o.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func buildSystemInstruction() string {
	template := struct {
		Overall templateOverall    `json:"overall"`
		Facets  orderedFlags[int]  `json:"facets"`
		Targets orderedFlags[bool] `json:"targets"`
	}{
		Facets:  orderedFlags[int]{keys: schema.Facets, value: schema.FacetMin},
		Targets: orderedFlags[bool]{keys: schema.Targets, value: false},
	}

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		panic("llm: cannot render schema template: " + err.Error())
	}
	return instructionHeader + string(data)
}

// BuildPrompt wraps one comment into the user message.
func BuildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("=========================\nTEXT TO ANALYZE\n=========================\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY the JSON object. Do not say anything else.")
	return b.String()
}
