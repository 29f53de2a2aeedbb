// Package presentation builds and edits reveal.js decks.
package presentation

import (
	"context"
	"strings"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/domain/deck"
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

// Config bounds generated and edited decks.
type Config struct {
	MaxBulletsPerSlide int
	MaxTokens          int
	Theme              string
	// MaxDeckBytes bounds decks accepted for editing. Zero means no bound.
	MaxDeckBytes int
}

// Origin tells where a deck came from.
type Origin string

const (
	OriginModel    Origin = "model"
	OriginTemplate Origin = "template"
)

// Result is a generated deck.
type Result struct {
	Deck   deck.Artifact
	Slides int
	Origin Origin
	// Violations are the checks the model's deck failed, if it was replaced.
	Violations []deck.Violation
}

// Generator renders an analysis as a deck. The model designs the slides;
// the template layout replaces any deck that fails the checks.
type Generator struct {
	completer adk.Completer
	templates TemplateRenderer
	cfg       Config
	log       *logger.Logger
}

// NewGenerator creates a generator. A nil completer always uses the
// template layout.
func NewGenerator(completer adk.Completer, tmpl TemplateRenderer, cfg Config) *Generator {
	if tmpl == nil {
		tmpl = templates.Get()
	}
	return &Generator{
		completer: completer,
		templates: tmpl,
		cfg:       cfg,
		log:       logger.Get().With("component", "deck_generator"),
	}
}

// Generate builds the deck for a. markdown is the synthesized report and
// may be empty.
func (g *Generator) Generate(ctx context.Context, markdown string, a research.Analysis) (Result, error) {
	if a == nil {
		return Result{}, errors.Wrap(errors.ErrInvalidInput, "analysis is nil")
	}
	if g.completer == nil {
		return g.fallback(markdown, a, "no_model", nil)
	}

	prompt, err := g.templates.Render("prompts/deck", map[string]any{
		"RevealBase":   deck.RevealBase,
		"MaxBullets":   g.cfg.MaxBulletsPerSlide,
		"AnalysisJSON": a.JSON(),
		"Markdown":     strings.TrimSpace(markdown),
	})
	if err != nil {
		return Result{}, errors.Wrap(err, "render deck prompt")
	}

	temperature := float32(0.3)
	out, err := g.completer.Complete(ctx, adk.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: &temperature,
	})
	switch {
	case errors.Is(err, errors.ErrEmptyCompletion):
		return g.fallback(markdown, a, "empty_completion", nil)
	case err != nil:
		return Result{}, errors.Wrap(err, "deck completion")
	case out.Truncated:
		return g.fallback(markdown, a, "truncated", nil)
	}

	html := strings.TrimSpace(research.StripFences(out.Text))
	ins, err := deck.Inspect(html)
	if err != nil {
		return g.fallback(markdown, a, "unparseable", nil)
	}

	violations := deck.Check(ins, g.policy(a))
	if len(violations) > 0 {
		g.log.WithContext(ctx).Warnw("Model deck rejected", "violations", len(violations), "first", violations[0].String())
		return g.fallback(markdown, a, "invalid_deck", violations)
	}

	return Result{Deck: deck.Artifact{HTML: html}, Slides: len(ins.Slides), Origin: OriginModel}, nil
}

func (g *Generator) policy(a research.Analysis) deck.Policy {
	return deck.Policy{
		AllowedURLs: append([]string{}, a.URLs()...),
		MaxBullets:  g.cfg.MaxBulletsPerSlide,
	}
}

func (g *Generator) fallback(markdown string, a research.Analysis, reason string, violations []deck.Violation) (Result, error) {
	metrics.RecordFallback("deck_generator", reason)

	artifact, err := Layout(markdownTitle(markdown), a, g.cfg.MaxBulletsPerSlide, g.cfg.Theme)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Deck:       artifact,
		Slides:     deck.SlideCount(artifact.HTML),
		Origin:     OriginTemplate,
		Violations: violations,
	}, nil
}
