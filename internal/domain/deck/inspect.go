package deck

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"deckforge/internal/domain/research"
	"deckforge/pkg/errors"
)

// Slide is one leaf <section> of a deck.
type Slide struct {
	Heading string
	Text    string
	Bullets int
}

// Inspection is what a deck contains, as far as validation cares.
type Inspection struct {
	Slides      []Slide
	Scripts     []string
	Stylesheets []string
	// Links holds http(s) targets of anchors and images.
	Links       []string
	TextURLs    []string
	Initialized bool
}

// Inspect parses html and collects slides, asset locators and cited URLs.
// Vertical stacks count each nested section as one slide.
func Inspect(html string) (Inspection, error) {
	if strings.TrimSpace(html) == "" {
		return Inspection{}, errors.Wrap(errors.ErrInvalidInput, "empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Inspection{}, errors.Wrap(errors.ErrInvalidInput, "parse deck html")
	}

	var ins Inspection
	doc.Find(".reveal .slides section").Each(func(_ int, s *goquery.Selection) {
		if s.Find("section").Length() > 0 {
			return
		}
		ins.Slides = append(ins.Slides, Slide{
			Heading: collapse(s.Find("h1, h2, h3").First().Text()),
			Text:    collapse(s.Text()),
			Bullets: s.Find("li").Length(),
		})
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			ins.Scripts = append(ins.Scripts, strings.TrimSpace(src))
			return
		}
		if strings.Contains(s.Text(), "Reveal.initialize") {
			ins.Initialized = true
		}
	})
	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		href, ok := s.Attr("href")
		if ok && strings.Contains(strings.ToLower(rel), "stylesheet") {
			ins.Stylesheets = append(ins.Stylesheets, strings.TrimSpace(href))
		}
	})
	doc.Find("a[href], img[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		target, _ := s.Attr("href")
		if target == "" {
			target, _ = s.Attr("src")
		}
		if isHTTP(target) {
			ins.Links = append(ins.Links, strings.TrimSpace(target))
		}
	})

	doc.Find("script, style").Remove()
	ins.TextURLs = research.ExtractURLs(doc.Find("body").Text())

	return ins, nil
}

// SlideCount returns the number of leaf slides in html, or zero when it does
// not parse.
func SlideCount(html string) int {
	ins, err := Inspect(html)
	if err != nil {
		return 0
	}
	return len(ins.Slides)
}

// CitedURLs returns the distinct URLs a reader can see or follow.
func (i Inspection) CitedURLs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range append(append([]string(nil), i.Links...), i.TextURLs...) {
		key := research.CanonicalURL(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

func isHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
