package templates

import (
	"strings"
	"text/template"
)

// FuncMap is available to every template in the registry.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"join":   strings.Join,
		"inc":    func(i int) int { return i + 1 },
		"trim":   strings.TrimSpace,
		"indent": Indent,
		"bullet": EscapeMarkdownListItem,
	}
}

// Indent prefixes every non-empty line of s with n spaces.
func Indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// EscapeMarkdownListItem flattens a value so it renders as a single Markdown list item.
// Line breaks are folded into spaces and a leading list/heading marker is escaped.
func EscapeMarkdownListItem(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}
	switch text[0] {
	case '#', '-', '*', '+', '>':
		return `\` + text
	}
	return text
}
