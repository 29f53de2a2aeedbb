// Package synthesis turns a validated analysis into a Markdown report.
package synthesis

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/domain/research"
	"deckforge/internal/metrics"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
	"deckforge/pkg/templates"
)

// TemplateRenderer defines interface for rendering templates
type TemplateRenderer interface {
	Render(templatePath string, data any) (string, error)
}

// Origin tells where a document came from.
type Origin string

const (
	OriginModel    Origin = "model"
	OriginTemplate Origin = "template"
)

const reportTitle = "Market Research Report"

// Document is a synthesized report.
type Document struct {
	Markdown string
	Origin   Origin
	// Issues lists the fidelity problems that made the model draft unusable.
	Issues []string
}

// Synthesizer renders reports. The model writes the prose; a template
// rendering takes over whenever the draft loses or invents content.
type Synthesizer struct {
	completer   adk.Completer
	templates   TemplateRenderer
	maxTokens   int
	temperature float32
	log         *logger.Logger
}

// NewSynthesizer creates a synthesizer. A nil completer always uses the
// template rendering.
func NewSynthesizer(completer adk.Completer, tmpl TemplateRenderer, maxTokens int) *Synthesizer {
	if tmpl == nil {
		tmpl = templates.Get()
	}
	return &Synthesizer{
		completer:   completer,
		templates:   tmpl,
		maxTokens:   maxTokens,
		temperature: 0.2,
		log:         logger.Get().With("component", "synthesizer"),
	}
}

// Synthesize renders a. Only cancellation and model transport failures are
// returned as errors.
func (s *Synthesizer) Synthesize(ctx context.Context, a research.Analysis) (Document, error) {
	if a == nil {
		return Document{}, errors.Wrap(errors.ErrInvalidInput, "analysis is nil")
	}
	log := s.log.WithContext(ctx)

	if s.completer == nil {
		return s.fallback(a, "no_model", nil)
	}

	prompt, err := s.templates.Render("prompts/synthesis", map[string]string{"AnalysisJSON": a.JSON()})
	if err != nil {
		return Document{}, errors.Wrap(err, "render synthesis prompt")
	}

	temperature := s.temperature
	out, err := s.completer.Complete(ctx, adk.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: &temperature,
	})
	switch {
	case errors.Is(err, errors.ErrEmptyCompletion):
		return s.fallback(a, "empty_completion", nil)
	case err != nil:
		return Document{}, errors.Wrap(err, "synthesis completion")
	}

	draft := strings.TrimSpace(research.StripFences(out.Text))
	issues := Coverage(draft, a)
	if out.Truncated {
		issues = append(issues, "completion truncated")
	}
	if len(issues) > 0 {
		log.Warnw("Synthesis draft rejected", "issues", len(issues), "first", issues[0])
		return s.fallback(a, "fidelity", issues)
	}

	return Document{Markdown: draft, Origin: OriginModel}, nil
}

func (s *Synthesizer) fallback(a research.Analysis, reason string, issues []string) (Document, error) {
	metrics.RecordFallback("synthesizer", reason)
	md, err := Render(s.templates, a)
	if err != nil {
		return Document{}, err
	}
	return Document{Markdown: md, Origin: OriginTemplate, Issues: issues}, nil
}

type reportView struct {
	Title           string
	Objectives      []string
	Findings        []research.Finding
	Summary         string
	Recommendations []string
	Extras          []extraView
}

type extraView struct {
	Heading string
	Body    string
}

// Render produces the template report for a. It carries every field of the
// analysis and nothing else.
func Render(tmpl TemplateRenderer, a research.Analysis) (string, error) {
	view := reportView{
		Title:           reportTitle,
		Objectives:      a.Objectives(),
		Summary:         strings.TrimSpace(a.Summary()),
		Recommendations: a.Recommendations(),
	}
	for _, f := range a.Findings() {
		f.Topic = research.KeyTitle(f.Topic)
		for i := range f.Details {
			f.Details[i].Key = research.KeyTitle(f.Details[i].Key)
		}
		view.Findings = append(view.Findings, f)
	}

	extras := a.Extras()
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		view.Extras = append(view.Extras, extraView{Heading: research.KeyTitle(k), Body: extraBody(extras[k])})
	}

	md, err := tmpl.Render("render/report", view)
	if err != nil {
		return "", errors.Wrap(err, "render report template")
	}
	return strings.TrimSpace(md) + "\n", nil
}

func extraBody(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []any:
		lines := make([]string, 0, len(x))
		for _, it := range x {
			if s, ok := it.(string); ok {
				lines = append(lines, "- "+templates.EscapeMarkdownListItem(s))
				continue
			}
			raw, _ := json.Marshal(it)
			lines = append(lines, "- "+string(raw))
		}
		return strings.Join(lines, "\n")
	default:
		raw, err := json.MarshalIndent(x, "", "  ")
		if err != nil {
			return ""
		}
		return "```json\n" + string(raw) + "\n```"
	}
}
