package research

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
)

// Required keys of an Analysis.
const (
	KeyObjectives      = "research_objectives"
	KeyDataCollected   = "data_collected"
	KeyAnalysis        = "analysis"
	KeyRecommendations = "recommendations"
)

var requiredKeys = []string{KeyObjectives, KeyDataCollected, KeyAnalysis, KeyRecommendations}

// Request is one research invocation.
type Request struct {
	Prompt string `json:"prompt"`
}

// Analysis is the validated research result. It stays a generic mapping so
// that keys beyond the required four survive verbatim, numbers included.
// Only Normalize produces values of this type.
type Analysis map[string]any

// Finding is one data_collected entry.
type Finding struct {
	Topic string
	Text  string
	// Details holds the entry's remaining fields when Text came from a
	// primary key such as "finding". Source keys are never included.
	Details []Detail
	Sources []string
}

// Detail is one secondary field of a data_collected entry.
type Detail struct {
	Key   string
	Value string
}

// Objectives returns research_objectives.
func (a Analysis) Objectives() []string {
	return stringList(a[KeyObjectives])
}

// Recommendations returns recommendations.
func (a Analysis) Recommendations() []string {
	return stringList(a[KeyRecommendations])
}

// Summary returns the free-text analysis section.
func (a Analysis) Summary() string {
	s, _ := a[KeyAnalysis].(string)
	return s
}

// Topics returns the data_collected topics in sorted order.
func (a Analysis) Topics() []string {
	data, _ := a[KeyDataCollected].(map[string]any)
	topics := make([]string, 0, len(data))
	for k := range data {
		topics = append(topics, k)
	}
	sort.Strings(topics)
	return topics
}

// Findings returns data_collected entries sorted by topic.
func (a Analysis) Findings() []Finding {
	data, _ := a[KeyDataCollected].(map[string]any)
	out := make([]Finding, 0, len(data))
	for _, topic := range a.Topics() {
		entry := data[topic]
		text, details := findingParts(entry)
		out = append(out, Finding{
			Topic:   topic,
			Text:    text,
			Details: details,
			Sources: ExtractURLs(entry),
		})
	}
	return out
}

// Extras returns the keys beyond the required four.
func (a Analysis) Extras() map[string]any {
	out := make(map[string]any)
	for k, v := range a {
		if !isRequired(k) {
			out[k] = v
		}
	}
	return out
}

// URLs returns every distinct URL cited anywhere in the analysis, in order
// of first appearance within a sorted traversal.
func (a Analysis) URLs() []string {
	return ExtractURLs(map[string]any(a))
}

// Clone returns a deep copy.
func (a Analysis) Clone() Analysis {
	if a == nil {
		return nil
	}
	return deepCopy(map[string]any(a)).(map[string]any)
}

// JSON renders the analysis as indented JSON.
func (a Analysis) JSON() string {
	raw, err := json.MarshalIndent(map[string]any(a), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// KeyTitle turns a JSON key such as "market_size" into "Market size".
func KeyTitle(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || unicode.IsSpace(r) })
	if len(words) == 0 {
		return key
	}
	r := []rune(strings.Join(words, " "))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func isRequired(key string) bool {
	for _, k := range requiredKeys {
		if k == key {
			return true
		}
	}
	return false
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var primaryKeys = []string{"finding", "summary", "text", "value", "data", "details", "description"}

// findingParts splits a data_collected entry into its lead text and the
// fields that follow it. Every non-source field ends up in one of the two.
func findingParts(entry any) (string, []Detail) {
	v, ok := entry.(map[string]any)
	if !ok {
		return findingText(entry), nil
	}

	primary := ""
	for _, key := range primaryKeys {
		if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
			primary = key
			break
		}
	}
	if primary == "" {
		return findingText(entry), nil
	}

	var details []Detail
	for _, k := range sortedKeys(v) {
		if k == primary || isSourceKey(k) {
			continue
		}
		if s := scalarText(v[k]); s != "" {
			details = append(details, Detail{Key: k, Value: s})
		}
	}
	return v[primary].(string), details
}

// findingText flattens an entry into one line.
func findingText(entry any) string {
	switch v := entry.(type) {
	case string:
		return v
	case map[string]any:
		var parts []string
		for _, k := range sortedKeys(v) {
			if isSourceKey(k) {
				continue
			}
			if s := scalarText(v[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	case []any:
		var parts []string
		for _, it := range v {
			if s := findingText(it); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return scalarText(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isSourceKey(k string) bool {
	k = strings.ToLower(k)
	return strings.HasPrefix(k, "source") || k == "url" || k == "urls" || k == "references" || k == "citations"
}

func scalarText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return x
	}
}
