// Package search provides the web lookup capabilities used by the research
// agents: search providers, a page fetcher, caching and rate limiting.
package search

import (
	"context"
	"strings"
)

// Result is a single web search hit.
type Result struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet,omitempty"`
	Published string `json:"published,omitempty"`
}

// Provider runs a web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Page is the readable text of a fetched web page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Fetcher retrieves a web page as text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func clip(results []Result, max int) []Result {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}
