package search

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"deckforge/pkg/errors"
)

const maxFetchBytes = 2 << 20

// PageFetcher downloads a page and reduces it to readable text.
type PageFetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewPageFetcher creates a fetcher returning at most maxChars runes of text.
func NewPageFetcher(client *http.Client, userAgent string, maxChars int) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = browserUserAgent
	}
	if maxChars <= 0 {
		maxChars = 6000
	}
	return &PageFetcher{client: client, userAgent: userAgent, maxChars: maxChars}
}

// Fetch retrieves an http(s) page. Non-HTML text bodies are returned as is.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, errors.Wrapf(errors.ErrInvalidInput, "not an http(s) url: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, errors.Wrap(err, "build fetch request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, errors.Wrapf(errors.ErrSearchFailure, "fetch %s: %v", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, errors.Wrapf(errors.ErrSearchFailure, "fetch %s: http %d", u.Host, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	page := Page{URL: resp.Request.URL.String()}
	switch {
	case mediaType == "" || strings.Contains(mediaType, "html"):
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return Page{}, errors.Wrapf(errors.ErrSearchFailure, "parse %s: %v", u.Host, err)
		}
		page.Title, page.Text = htmlToText(doc)
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		raw, err := io.ReadAll(body)
		if err != nil {
			return Page{}, errors.Wrapf(errors.ErrSearchFailure, "read %s: %v", u.Host, err)
		}
		page.Text = strings.TrimSpace(string(raw))
	default:
		return Page{}, errors.Wrapf(errors.ErrSearchFailure, "unsupported content type %s", mediaType)
	}

	if runes := []rune(page.Text); len(runes) > f.maxChars {
		page.Text = string(runes[:f.maxChars])
		page.Truncated = true
	}

	return page, nil
}

// htmlToText keeps headings, paragraphs, list items and table cells.
func htmlToText(doc *goquery.Document) (string, string) {
	doc.Find("script, style, noscript, nav, footer, header, aside, iframe, form, svg").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var b strings.Builder
	seen := make(map[string]bool)
	doc.Find("h1, h2, h3, h4, p, li, td, th, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are emitted by their innermost match
		if s.Find("p, li, td").Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || seen[text] {
			return
		}
		seen[text] = true

		switch goquery.NodeName(s) {
		case "h1", "h2", "h3", "h4":
			b.WriteString("\n## ")
		case "li":
			b.WriteString("- ")
		}
		b.WriteString(text)
		b.WriteString("\n")
	})

	text := strings.TrimSpace(b.String())
	if text == "" {
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	return title, text
}

var _ Fetcher = (*PageFetcher)(nil)
