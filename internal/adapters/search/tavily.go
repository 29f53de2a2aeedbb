package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"deckforge/pkg/errors"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	depth    string
	client   *http.Client
	endpoint string
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title     string  `json:"title"`
		URL       string  `json:"url"`
		Content   string  `json:"content"`
		Score     float64 `json:"score"`
		Published string  `json:"published_date,omitempty"`
	} `json:"results"`
}

// NewTavily constructs a Tavily provider. depth is basic or advanced.
func NewTavily(apiKey, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Tavily{apiKey: apiKey, depth: depth, client: client, endpoint: tavilyEndpoint}
}

// WithEndpoint points the provider at another server. Used by tests.
func (t *Tavily) WithEndpoint(endpoint string) *Tavily {
	t.endpoint = endpoint
	return t
}

func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.Wrap(errors.ErrUnavailable, "tavily: API key is missing")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "query is empty")
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: t.depth,
		MaxResults:  maxResults,
		Topic:       "general",
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode tavily request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build tavily request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSearchFailure, "tavily: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, "tavily returned 429")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrapf(errors.ErrSearchFailure, "tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(errors.ErrSearchFailure, "decode tavily response: %v", err)
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Content,
			Published: r.Published,
		})
	}

	return clip(results, maxResults), nil
}

var _ Provider = (*Tavily)(nil)
