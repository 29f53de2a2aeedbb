package presentation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/domain/deck"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
	"deckforge/pkg/templates"
)

// EditSummary describes how a revision differs from the deck it replaced.
type EditSummary struct {
	SlidesBefore int `json:"slides_before"`
	SlidesAfter  int `json:"slides_after"`
	Inserted     int `json:"inserted_chars"`
	Deleted      int `json:"deleted_chars"`
}

// EditResult is an accepted revision.
type EditResult struct {
	Explanation string        `json:"explanation"`
	Deck        deck.Artifact `json:"deck"`
	Summary     EditSummary   `json:"summary"`
}

// Editor applies natural-language instructions to an existing deck.
type Editor struct {
	completer adk.Completer
	templates TemplateRenderer
	cfg       Config
	log       *logger.Logger
}

// NewEditor creates an editor.
func NewEditor(completer adk.Completer, tmpl TemplateRenderer, cfg Config) *Editor {
	if tmpl == nil {
		tmpl = templates.Get()
	}
	return &Editor{
		completer: completer,
		templates: tmpl,
		cfg:       cfg,
		log:       logger.Get().With("component", "deck_editor"),
	}
}

// Edit asks the model to revise current. A revision that is not a deck, or
// that loses slides or slide content the instruction did not ask to remove,
// is rejected with a *deck.EditError.
func (e *Editor) Edit(ctx context.Context, current deck.Artifact, instruction string) (*EditResult, error) {
	instruction = strings.TrimSpace(instruction)
	if strings.TrimSpace(current.HTML) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "deck html is empty")
	}
	if instruction == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "edit instruction is empty")
	}
	if e.cfg.MaxDeckBytes > 0 && len(current.HTML) > e.cfg.MaxDeckBytes {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "deck is %d bytes, limit is %d", len(current.HTML), e.cfg.MaxDeckBytes)
	}
	if e.completer == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "no model configured for editing")
	}

	original, err := deck.Inspect(current.HTML)
	if err != nil {
		return nil, err
	}
	before := len(original.Slides)

	prompt, err := e.templates.Render("prompts/edit", map[string]string{
		"RevealBase":  deck.RevealBase,
		"HTML":        current.HTML,
		"Instruction": instruction,
	})
	if err != nil {
		return nil, errors.Wrap(err, "render edit prompt")
	}

	out, err := e.completer.Complete(ctx, adk.CompletionRequest{Prompt: prompt, MaxTokens: e.cfg.MaxTokens})
	switch {
	case errors.Is(err, errors.ErrEmptyCompletion):
		return nil, &deck.EditError{Reason: deck.ReasonMalformedResponse, Detail: "empty response"}
	case err != nil:
		return nil, errors.Wrap(err, "edit completion")
	}

	explanation, html, err := deck.ParseEditResponse(out.Text)
	if err != nil {
		if out.Truncated {
			return nil, &deck.EditError{Reason: deck.ReasonMalformedResponse, Detail: "response truncated at the token limit"}
		}
		return nil, err
	}

	revised, err := deck.Inspect(html)
	after := len(revised.Slides)
	if err != nil || after == 0 {
		return nil, &deck.EditError{Reason: deck.ReasonInvalidDeck, Detail: "revision has no slides"}
	}
	if !deck.RequestsRemoval(instruction) {
		if after < before {
			return nil, &deck.EditError{
				Reason: deck.ReasonContentDropped,
				Detail: "revision dropped slides the instruction did not ask to remove",
			}
		}
		if lost := deck.DroppedSlides(original, revised); len(lost) > 0 {
			return nil, &deck.EditError{
				Reason: deck.ReasonContentDropped,
				Detail: fmt.Sprintf("revision lost the content of %d original slides, first %q", len(lost), slideLabel(lost[0])),
			}
		}
	}

	summary := diffSummary(current.HTML, html)
	summary.SlidesBefore, summary.SlidesAfter = before, after

	e.log.WithContext(ctx).Infow("Deck edited",
		"slides_before", before,
		"slides_after", after,
		"inserted", summary.Inserted,
		"deleted", summary.Deleted,
	)

	return &EditResult{Explanation: explanation, Deck: deck.Artifact{HTML: html}, Summary: summary}, nil
}

func slideLabel(s deck.Slide) string {
	if s.Heading != "" {
		return s.Heading
	}
	return errors.Excerpt(s.Text, 40)
}

// diffSummary counts inserted and deleted characters on a line diff.
func diffSummary(before, after string) EditSummary {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var s EditSummary
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Deleted += utf8.RuneCountInString(d.Text)
		}
	}
	return s
}
