package presentation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"
	"sort"
	"strings"

	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/pkg/errors"
)

//go:embed deck.html.tmpl
var deckTemplateSource string

var deckTemplate = template.Must(template.New("deck").Parse(deckTemplateSource))

var themes = map[string]bool{
	"black": true, "white": true, "league": true, "beige": true, "sky": true, "night": true,
	"serif": true, "simple": true, "solarized": true, "blood": true, "moon": true, "dracula": true,
}

const defaultTitle = "Market Research Report"

type slide struct {
	Cover     bool
	Heading   string
	Paragraph string
	Bullets   []string
	Sources   []string
}

type page struct {
	Title  string
	CSS    string
	Theme  string
	JS     string
	Slides []slide
}

// Layout builds the template deck for a. Lists longer than maxBullets
// continue on further slides; zero keeps each list on one slide.
func Layout(title string, a research.Analysis, maxBullets int, theme string) (deck.Artifact, error) {
	if title = strings.TrimSpace(title); title == "" {
		title = defaultTitle
	}
	if !themes[theme] {
		theme = "white"
	}

	p := page{
		Title: title,
		CSS:   deck.RevealCSS,
		Theme: deck.RevealBase + "theme/" + theme + ".css",
		JS:    deck.RevealJS,
	}

	p.Slides = append(p.Slides, slide{Cover: true, Heading: title, Paragraph: "Market research briefing"})
	p.Slides = append(p.Slides, paginate("Research objectives", a.Objectives(), maxBullets)...)
	for _, f := range a.Findings() {
		details := make([]string, 0, len(f.Details))
		for _, d := range f.Details {
			details = append(details, research.KeyTitle(d.Key)+": "+d.Value)
		}
		pages := paginate(research.KeyTitle(f.Topic), details, maxBullets)
		if len(pages) == 0 {
			pages = []slide{{Heading: research.KeyTitle(f.Topic)}}
		}
		pages[0].Paragraph = f.Text
		pages[len(pages)-1].Sources = f.Sources
		p.Slides = append(p.Slides, pages...)
	}
	if s := strings.TrimSpace(a.Summary()); s != "" {
		p.Slides = append(p.Slides, slide{Heading: "Analysis", Paragraph: s})
	}
	p.Slides = append(p.Slides, paginate("Recommendations", a.Recommendations(), maxBullets)...)

	extras := a.Extras()
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Slides = append(p.Slides, extraSlides(research.KeyTitle(k), extras[k], maxBullets)...)
	}

	var buf bytes.Buffer
	if err := deckTemplate.Execute(&buf, p); err != nil {
		return deck.Artifact{}, errors.Wrap(err, "render template deck")
	}
	return deck.Artifact{HTML: buf.String()}, nil
}

func paginate(heading string, items []string, max int) []slide {
	if len(items) == 0 {
		return nil
	}
	if max <= 0 {
		max = len(items)
	}
	var out []slide
	for start := 0; start < len(items); start += max {
		end := min(start+max, len(items))
		h := heading
		if start > 0 {
			h += " (continued)"
		}
		out = append(out, slide{Heading: h, Bullets: items[start:end]})
	}
	return out
}

func extraSlides(heading string, v any, max int) []slide {
	switch x := v.(type) {
	case string:
		return []slide{{Heading: heading, Paragraph: x}}
	case []any:
		items := make([]string, 0, len(x))
		for _, it := range x {
			items = append(items, compact(it))
		}
		return paginate(heading, items, max)
	default:
		return []slide{{Heading: heading, Paragraph: compact(x)}}
	}
}

func compact(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// markdownTitle returns the first level-one heading of md.
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if t, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}
