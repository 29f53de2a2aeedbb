package research

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"deckforge/pkg/errors"
)

const fence = "```"

// Normalize turns orchestrator output into a validated Analysis.
//
// Text is trimmed, unwrapped from a single surrounding code fence and parsed
// as a JSON object with numbers kept as json.Number. Structured input is
// brought to the same canonical form, so Normalize(Structured(a)) returns a
// value equal to a for any a that Normalize produced.
func Normalize(raw RawOutput) (Analysis, error) {
	switch raw.Kind() {
	case KindText:
		text, _ := raw.TextValue()
		m, err := parseObject(StripFences(text))
		if err != nil {
			return nil, &NormalizationError{
				Reason:     ReasonInvalidStructuredOutput,
				Detail:     err.Error(),
				RawExcerpt: errors.Excerpt(strings.TrimSpace(text), rawExcerptLimit),
			}
		}
		return validate(m)

	case KindStructured:
		m, _ := raw.StructuredValue()
		if m == nil {
			return nil, &NormalizationError{
				Reason: ReasonInvalidStructuredOutput,
				Detail: "structured output is nil",
			}
		}
		canonical, err := canonicalize(m)
		if err != nil {
			return nil, &NormalizationError{
				Reason: ReasonInvalidStructuredOutput,
				Detail: err.Error(),
			}
		}
		return validate(canonical)

	default:
		return nil, &NormalizationError{
			Reason: ReasonUnsupportedOutputType,
			Detail: fmt.Sprintf("output kind %s", raw.Kind()),
		}
	}
}

// StripFences trims s and removes one leading fence line (with an optional
// language tag) and one trailing fence line, only when both are present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	first := strings.TrimSpace(lines[0])
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(first, fence) || strings.Contains(first[len(fence):], fence) || last != fence {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func parseObject(text string) (map[string]any, error) {
	if text == "" {
		return nil, fmt.Errorf("empty output")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after json object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", v)
	}
	return m, nil
}

// canonicalize round-trips m through JSON so Go-typed values (ints, string
// slices, nested structs) take the same shapes a parsed text would have.
func canonicalize(m map[string]any) (map[string]any, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode structured output: %w", err)
	}
	return parseObject(strings.TrimSpace(buf.String()))
}

func validate(m map[string]any) (Analysis, error) {
	var missing []string
	for _, key := range requiredKeys {
		if !hasShape(key, m[key]) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &NormalizationError{
			Reason: ReasonMissingRequiredFields,
			Detail: "required keys are absent or have the wrong type",
			Fields: missing,
		}
	}

	data := m[KeyDataCollected].(map[string]any)
	var unsourced []string
	for _, topic := range Analysis(m).Topics() {
		if len(ExtractURLs(data[topic])) == 0 {
			unsourced = append(unsourced, topic)
		}
	}
	if len(unsourced) > 0 {
		return nil, &NormalizationError{
			Reason: ReasonMissingSource,
			Detail: "data_collected entries without a source URL",
			Fields: unsourced,
		}
	}
	return Analysis(m), nil
}

func hasShape(key string, v any) bool {
	switch key {
	case KeyObjectives, KeyRecommendations:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, it := range items {
			if _, ok := it.(string); !ok {
				return false
			}
		}
		return true
	case KeyDataCollected:
		data, ok := v.(map[string]any)
		return ok && len(data) > 0
	case KeyAnalysis:
		_, ok := v.(string)
		return ok
	}
	return false
}
