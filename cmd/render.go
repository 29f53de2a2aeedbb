package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"deckforge/internal/events"
	"deckforge/internal/services/pipeline"
	"deckforge/pkg/errors"
)

var (
	ok    = color.New(color.FgGreen, color.Bold).SprintFunc()
	warn  = color.New(color.FgYellow, color.Bold).SprintFunc()
	fail  = color.New(color.FgRed, color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

const wordWrap = 100

func renderMarkdown(md string, plain bool) (string, error) {
	style := "dark"
	if plain || color.NoColor {
		style = "notty"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render(md)
}

func summaryLine(r *pipeline.Report) string {
	parts := []string{
		fmt.Sprintf("%d sources", len(r.Sources)),
		fmt.Sprintf("%d slides", r.Slides),
		fmt.Sprintf("%d model calls", r.Usage.Calls),
		fmt.Sprintf("%s tokens", humanize.Comma(int64(r.Usage.InputTokens+r.Usage.OutputTokens))),
		"$" + r.Usage.CostUSD.StringFixed(4),
		r.Duration.Round(time.Millisecond).String(),
	}
	if len(r.Pruned) > 0 {
		parts = append(parts, "pruned "+strings.Join(r.Pruned, ", "))
	}
	if len(r.Fallbacks) > 0 {
		parts = append(parts, "template "+strings.Join(r.Fallbacks, ", "))
	}
	return faint(strings.Join(parts, " · "))
}

func printFailure(w io.Writer, err error) {
	var failure *pipeline.PipelineFailure
	if errors.As(err, &failure) {
		fmt.Fprintf(w, "%s %s (%s)\n%s\n", fail("failed at"), failure.Stage, failure.Reason, faint(failure.Detail()))
		return
	}
	fmt.Fprintf(w, "%s %v\n", fail("failed:"), err)
}

func formatEvent(ev *events.PipelineEvent) string {
	label := ok
	if ev.Failed() {
		label = fail
	} else if strings.HasSuffix(ev.Type, ".refused") {
		label = warn
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s run=%s %s",
		faint(ev.Timestamp.Format(time.RFC3339)), label(ev.Type), ev.RunID,
		(time.Duration(ev.DurationMS) * time.Millisecond).String())
	if ev.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", ev.Stage)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", ev.Reason)
	}
	if ev.Sources > 0 || ev.Slides > 0 {
		fmt.Fprintf(&b, " sources=%d slides=%d", ev.Sources, ev.Slides)
	}
	if ev.LLMCalls > 0 {
		fmt.Fprintf(&b, " calls=%d tokens=%s", ev.LLMCalls, humanize.Comma(int64(ev.InputTokens+ev.OutputTokens)))
	}
	if ev.CostUSD != "" {
		fmt.Fprintf(&b, " cost=$%s", ev.CostUSD)
	}
	return b.String()
}
