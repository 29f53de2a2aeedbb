package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"deckforge/pkg/errors"
)

const (
	duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"
	browserUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DuckDuckGo scrapes the DuckDuckGo lite HTML interface. It needs no API key.
type DuckDuckGo struct {
	client     *http.Client
	endpoint   string
	maxRetries int
	backoff    time.Duration
}

// NewDuckDuckGo creates a DuckDuckGo provider. A nil client gets a 15s timeout.
func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DuckDuckGo{
		client:     client,
		endpoint:   duckDuckGoEndpoint,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// WithEndpoint points the provider at another server. Used by tests.
func (d *DuckDuckGo) WithEndpoint(endpoint string, backoff time.Duration) *DuckDuckGo {
	d.endpoint = endpoint
	d.backoff = backoff
	return d
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search posts the query to the lite page and parses the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "query is empty")
	}

	form := url.Values{}
	form.Set("q", query)

	var (
		resp  *http.Response
		err   error
		delay = d.backoff
	)
	for attempt := 0; ; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
		if reqErr != nil {
			return nil, errors.Wrap(reqErr, "build duckduckgo request")
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrSearchFailure, "duckduckgo: %v", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= d.maxRetries {
			break
		}
		resp.Body.Close()

		// back off on 429, doubling up to 30s
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, "duckduckgo keeps returning 429")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrSearchFailure, "duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSearchFailure, "parse duckduckgo page: %v", err)
	}

	return clip(parseLiteResults(doc), maxResults), nil
}

// parseLiteResults pairs every result link with the snippet row that follows it.
func parseLiteResults(doc *goquery.Document) []Result {
	var results []Result

	snippets := doc.Find("td.result-snippet")
	doc.Find("a.result-link").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target := unwrapRedirect(href)
		title := strings.TrimSpace(a.Text())
		if target == "" || title == "" {
			return
		}

		r := Result{Title: title, URL: target}
		if i < snippets.Length() {
			r.Snippet = strings.Join(strings.Fields(snippets.Eq(i).Text()), " ")
		}
		results = append(results, r)
	})

	return results
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links to the target URL.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

var _ Provider = (*DuckDuckGo)(nil)
