// Package note builds the summarization prompt and parses the model's
// output into a structured clinical note.
package note

import (
	"encoding/json"
	"strings"
)

// Note is the structured clinical summary produced once per encounter.
type Note struct {
	Subjective []string `json:"subjective"`
	Objective  []string `json:"objective"`
	Assessment []string `json:"assessment"`
	Plan       []string `json:"plan"`
	RedFlags   []string `json:"redFlags"`
}

// ParseFailure is the fallback payload returned when the model output is
// not a valid Note. It carries the raw text so the caller can inspect or
// retry; producing it is not an error condition.
type ParseFailure struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

const parseFailureMessage = "Invalid JSON in model response"

const promptTemplate = `You are a clinical documentation assistant. Read the following transcript of a clinical encounter and produce a structured note.

Respond with ONLY a JSON object of this exact shape, no prose and no code fences:
{"subjective": [], "objective": [], "assessment": [], "plan": [], "redFlags": []}

Each field is an array of short text findings. Use empty arrays where the transcript contains nothing relevant.

Transcript:
`

// BuildPrompt embeds the transcript into the fixed instructional prompt.
func BuildPrompt(transcript string) string {
	return promptTemplate + transcript
}

// Parse attempts a strict decode of the model output into a Note. The
// output is treated as untrusted text: surrounding whitespace and markdown
// code fences are tolerated, anything else fails the parse.
func Parse(raw string) (*Note, error) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var n Note
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, err
	}

	if n.Subjective == nil {
		n.Subjective = []string{}
	}
	if n.Objective == nil {
		n.Objective = []string{}
	}
	if n.Assessment == nil {
		n.Assessment = []string{}
	}
	if n.Plan == nil {
		n.Plan = []string{}
	}
	if n.RedFlags == nil {
		n.RedFlags = []string{}
	}
	return &n, nil
}

// ParseOrFallback returns the parsed Note, or the ParseFailure payload when
// the model output is malformed. The second return reports whether the
// parse succeeded.
func ParseOrFallback(raw string) (any, bool) {
	n, err := Parse(raw)
	if err != nil {
		return &ParseFailure{Error: parseFailureMessage, Raw: raw}, false
	}
	return n, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
