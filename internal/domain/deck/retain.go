package deck

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DroppedSlides returns the slides of before that after no longer carries.
// A slide is carried when after has a slide with the same heading, or a
// slide that keeps at least half of its words. Slides without text are
// ignored.
func DroppedSlides(before, after Inspection) []Slide {
	headings := make(map[string]bool, len(after.Slides))
	kept := make([]map[string]bool, 0, len(after.Slides))
	for _, s := range after.Slides {
		if h := foldWords(s.Heading); h != "" {
			headings[h] = true
		}
		set := make(map[string]bool)
		for _, w := range slideWords(s) {
			set[w] = true
		}
		kept = append(kept, set)
	}

	var dropped []Slide
	for _, s := range before.Slides {
		if h := foldWords(s.Heading); h != "" && headings[h] {
			continue
		}
		words := slideWords(s)
		if len(words) == 0 {
			continue
		}
		if !retained(words, kept) {
			dropped = append(dropped, s)
		}
	}
	return dropped
}

func retained(words []string, slides []map[string]bool) bool {
	for _, set := range slides {
		hits := 0
		for _, w := range words {
			if set[w] {
				hits++
			}
		}
		if 2*hits >= len(words) {
			return true
		}
	}
	return false
}

// slideWords returns the distinct folded words of a slide, skipping words
// shorter than three letters that carry no digit.
func slideWords(s Slide) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(foldWords(s.Heading + " " + s.Text)) {
		if seen[w] || (utf8.RuneCountInString(w) < 3 && !strings.ContainsFunc(w, unicode.IsDigit)) {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func foldWords(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
