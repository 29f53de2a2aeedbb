package deck

import (
	"fmt"
	"regexp"
	"strings"
)

// EditReason classifies a rejected edit.
type EditReason string

const (
	ReasonMalformedResponse EditReason = "malformed_response"
	ReasonInvalidDeck       EditReason = "invalid_deck"
	ReasonContentDropped    EditReason = "content_dropped"
)

// EditError is returned when a model revision cannot be accepted.
type EditError struct {
	Reason EditReason
	Detail string
}

func (e *EditError) Error() string {
	if e.Detail == "" {
		return "edit failed: " + string(e.Reason)
	}
	return fmt.Sprintf("edit failed: %s: %s", e.Reason, e.Detail)
}

// Is matches another EditError with the same reason, or any EditError when
// the target has no reason.
func (e *EditError) Is(target error) bool {
	t, ok := target.(*EditError)
	return ok && (t.Reason == "" || t.Reason == e.Reason)
}

const delimiter = "```"

var languageTag = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+.-]*$`)

// ParseEditResponse splits a model answer into the explanation before the
// code block and the document inside it. The answer must contain the
// delimiter exactly twice.
func ParseEditResponse(resp string) (explanation, html string, err error) {
	if n := strings.Count(resp, delimiter); n != 2 {
		return "", "", &EditError{
			Reason: ReasonMalformedResponse,
			Detail: fmt.Sprintf("expected one fenced block, found %d delimiters", n),
		}
	}

	parts := strings.SplitN(resp, delimiter, 3)
	explanation = strings.TrimSpace(parts[0])
	body := parts[1]

	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag == "" || languageTag.MatchString(tag) {
			body = body[nl+1:]
		}
	}
	html = strings.TrimSpace(body)
	if html == "" {
		return "", "", &EditError{Reason: ReasonMalformedResponse, Detail: "fenced block is empty"}
	}
	return explanation, html, nil
}

var removalWords = wordSet(
	"remove", "removes", "removed", "removing", "removal",
	"delete", "deletes", "deleted", "deleting", "deletion",
	"drop", "drops", "dropped", "dropping",
	"merge", "merges", "merged", "merging",
	"combine", "combines", "combined", "combining",
	"consolidate", "consolidates", "consolidated", "consolidating",
	"condense", "condenses", "condensed", "condensing",
	"shorten", "shortens", "shortened", "shortening",
	"cut", "cuts", "cutting",
	"trim", "trims", "trimmed", "trimming",
	"fewer",
)

func wordSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

// RequestsRemoval reports whether an instruction asks for slides or content
// to go away. Only whole words count, so "dropdown" is not a request to drop.
func RequestsRemoval(instruction string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(instruction), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if removalWords[w] {
			return true
		}
	}
	return false
}
