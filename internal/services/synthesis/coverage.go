package synthesis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"deckforge/internal/domain/research"
)

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// Coverage lists what markdown lost or invented relative to a: missing
// objectives, topics, recommendations, figures or source URLs, dropped
// summary words, entry fields or extra sections, and URLs that are not in
// the analysis. Objectives and recommendations are matched as folded
// phrases; the summary, entry fields and extra sections only need their
// content words somewhere in the document.
func Coverage(markdown string, a research.Analysis) []string {
	var issues []string
	if strings.TrimSpace(markdown) == "" {
		return []string{"document is empty"}
	}
	text := " " + fold(markdown) + " "

	has := func(s string) bool {
		f := fold(s)
		return f == "" || strings.Contains(text, " "+f+" ")
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		words[w] = true
	}
	lost := func(s string) []string {
		var out []string
		for _, w := range contentWords(s) {
			if !words[w] {
				out = append(out, w)
			}
		}
		return out
	}
	figures := func(s, of string) {
		for _, n := range numberPattern.FindAllString(s, -1) {
			if !strings.Contains(markdown, n) {
				issues = append(issues, fmt.Sprintf("figure %s of %s missing", n, of))
			}
		}
	}

	for _, o := range a.Objectives() {
		if !has(o) {
			issues = append(issues, "objective missing: "+o)
		}
	}
	for _, r := range a.Recommendations() {
		if !has(r) {
			issues = append(issues, "recommendation missing: "+r)
		}
	}

	for _, f := range a.Findings() {
		if !has(f.Topic) {
			issues = append(issues, "topic missing: "+f.Topic)
		}
		figures(f.Text, f.Topic)
		for _, d := range f.Details {
			of := f.Topic + "." + d.Key
			figures(d.Value, of)
			if missing := lost(d.Value); len(missing) > 0 {
				issues = append(issues, "field missing: "+of)
			}
		}
	}

	if summary := a.Summary(); summary != "" {
		figures(summary, research.KeyAnalysis)
		if missing := lost(summary); len(missing) > 0 {
			issues = append(issues, "analysis missing words: "+strings.Join(missing, ", "))
		}
	}

	extras := a.Extras()
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		body := strings.Join(leafStrings(extras[k]), " ")
		figures(body, k)
		if !has(research.KeyTitle(k)) && len(lost(body)) > 0 {
			issues = append(issues, "section missing: "+k)
		}
	}

	cited := make(map[string]bool)
	for _, u := range research.ExtractURLs(markdown) {
		cited[research.CanonicalURL(u)] = true
	}
	known := make(map[string]bool)
	for _, u := range a.URLs() {
		key := research.CanonicalURL(u)
		known[key] = true
		if !cited[key] {
			issues = append(issues, "source missing: "+u)
		}
	}
	for _, u := range research.ExtractURLs(markdown) {
		if !known[research.CanonicalURL(u)] {
			issues = append(issues, "unknown URL: "+u)
		}
	}

	return issues
}

// fold lowercases s and reduces it to words separated by single spaces.
func fold(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// contentWords returns the distinct folded words of s worth matching:
// anything with a digit or at least four letters.
func contentWords(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(fold(s)) {
		if seen[w] {
			continue
		}
		if utf8.RuneCountInString(w) < 4 && !strings.ContainsFunc(w, unicode.IsDigit) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// leafStrings collects the scalar values under v in key order.
func leafStrings(v any) []string {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, leafStrings(x[k])...)
		}
		return out
	case []any:
		var out []string
		for _, it := range x {
			out = append(out, leafStrings(it)...)
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(x)}
	}
}
