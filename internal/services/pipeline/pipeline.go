// Package pipeline runs research requests end to end: agents, normalizer,
// source check, synthesizer and deck generator, plus the deck edit flow.
package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"deckforge/internal/adapters/ai"
	"deckforge/internal/adapters/config"
	"deckforge/internal/adapters/kafka"
	"deckforge/internal/agents"
	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/internal/events"
	"deckforge/internal/metrics"
	"deckforge/internal/observability"
	"deckforge/internal/services/presentation"
	"deckforge/internal/services/synthesis"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

// Researcher runs the agent graph for one request.
type Researcher interface {
	Run(ctx context.Context, runID string, req research.Request) (research.RawOutput, *agents.RunReport, error)
}

// Synthesizer writes the Markdown report.
type Synthesizer interface {
	Synthesize(ctx context.Context, a research.Analysis) (synthesis.Document, error)
}

// DeckGenerator builds the deck.
type DeckGenerator interface {
	Generate(ctx context.Context, markdown string, a research.Analysis) (presentation.Result, error)
}

// DeckEditor revises an existing deck.
type DeckEditor interface {
	Edit(ctx context.Context, current deck.Artifact, instruction string) (*presentation.EditResult, error)
}

// Deps wires a Pipeline.
type Deps struct {
	Researcher   Researcher
	Synthesizer  Synthesizer
	Generator    DeckGenerator
	Editor       DeckEditor
	Publisher    events.Publisher
	Config       config.PipelineConfig
	SourcePolicy research.SourcePolicy
	// NewRunID defaults to uuid.NewString.
	NewRunID func() string
}

// Status is the outcome of a research request that did not fail.
type Status string

const (
	StatusSuccess Status = "success"
	StatusRefused Status = "refused"
)

// Report is the result of Research. A refused report carries only the
// reason; nothing was researched.
type Report struct {
	RunID     string            `json:"run_id"`
	Status    Status            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Markdown  string            `json:"markdown,omitempty"`
	RevealJS  string            `json:"reveal_js,omitempty"`
	Analysis  research.Analysis `json:"analysis,omitempty"`
	Sources   []string          `json:"sources,omitempty"`
	Pruned    []string          `json:"pruned_topics,omitempty"`
	Slides    int               `json:"slides,omitempty"`
	Fallbacks []string          `json:"fallbacks,omitempty"`
	Usage     ai.UsageSummary   `json:"usage"`
	Duration  time.Duration     `json:"-"`
}

// Pipeline coordinates the stages of a request. Stages run in order; all
// per-request state lives in the call, so one Pipeline serves concurrent
// requests.
type Pipeline struct {
	researcher  Researcher
	synthesizer Synthesizer
	generator   DeckGenerator
	editor      DeckEditor
	publisher   events.Publisher
	cfg         config.PipelineConfig
	policy      research.SourcePolicy
	newRunID    func() string
	log         *logger.Logger
}

// New creates a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Researcher == nil || deps.Synthesizer == nil || deps.Generator == nil || deps.Editor == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "pipeline needs researcher, synthesizer, generator and editor")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.SourcePolicy == "" {
		deps.SourcePolicy = research.PolicyStrict
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &Pipeline{
		researcher:  deps.Researcher,
		synthesizer: deps.Synthesizer,
		generator:   deps.Generator,
		editor:      deps.Editor,
		publisher:   deps.Publisher,
		cfg:         deps.Config,
		policy:      deps.SourcePolicy,
		newRunID:    deps.NewRunID,
		log:         logger.Get().With("component", "pipeline"),
	}, nil
}

// run is the bookkeeping shared by Research and Edit.
type run struct {
	id        string
	operation string
	start     time.Time
	usage     *ai.RequestUsage
	log       *logger.Logger
}

func (p *Pipeline) begin(ctx context.Context, operation string) (context.Context, context.CancelFunc, *run) {
	r := &run{id: p.newRunID(), operation: operation, start: time.Now()}
	ctx = logger.ContextWithRunID(ctx, r.id)
	ctx, r.usage = ai.ContextWithUsage(ctx)
	r.log = p.log.WithContext(ctx).With("operation", operation)

	cancel := context.CancelFunc(func() {})
	if p.cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
	}
	return ctx, cancel, r
}

// stage runs fn inside a span and records its duration.
func (p *Pipeline) stage(ctx context.Context, r *run, s Stage, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "pipeline."+string(s),
		attribute.String(observability.AttrRunID, r.id),
		attribute.String(observability.AttrStage, string(s)),
	)
	started := time.Now()
	err := fn(ctx)
	metrics.RecordStage(string(s), time.Since(started), err)
	observability.EndSpan(span, err)
	return err
}

// Research turns prompt into an analysis, a report and a deck.
func (p *Pipeline) Research(ctx context.Context, prompt string) (*Report, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt is required")
	}
	if max := p.cfg.MaxPromptLength; max > 0 && utf8.RuneCountInString(prompt) > max {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "prompt is longer than %d characters", max)
	}

	ctx, cancel, r := p.begin(ctx, "research")
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.String(observability.AttrRunID, r.id),
		attribute.String(observability.AttrOperation, r.operation),
	)
	report, err := p.research(ctx, r, prompt)
	if report != nil {
		span.SetAttributes(
			attribute.Int(observability.AttrSources, len(report.Sources)),
			attribute.Int(observability.AttrSlides, report.Slides),
		)
	}
	observability.EndSpan(span, err)
	return report, err
}

func (p *Pipeline) research(ctx context.Context, r *run, prompt string) (*Report, error) {
	r.log.Infow("Research requested", "prompt", errors.Excerpt(prompt, 120))

	var (
		raw    research.RawOutput
		runRep *agents.RunReport
	)
	err := p.stage(ctx, r, StageResearch, func(ctx context.Context) error {
		var err error
		raw, runRep, err = p.researcher.Run(ctx, r.id, research.Request{Prompt: prompt})
		return err
	})
	if err != nil {
		var rf *research.ResearchFailure
		if errors.As(err, &rf) && rf.Refused() {
			return p.refused(ctx, r, rf.Detail), nil
		}
		return nil, p.fail(ctx, r, StageResearch, err)
	}
	if runRep == nil || runRep.Ledger == nil {
		runRep = &agents.RunReport{RunID: r.id, Ledger: research.NewSourceLedger()}
	}

	var analysis research.Analysis
	if err := p.stage(ctx, r, StageNormalize, func(context.Context) error {
		var err error
		analysis, err = research.Normalize(raw)
		return err
	}); err != nil {
		return nil, p.fail(ctx, r, StageNormalize, err)
	}

	var pruned []string
	if err := p.stage(ctx, r, StageVerify, func(context.Context) error {
		var err error
		analysis, pruned, err = research.VerifySources(analysis, runRep.Ledger, p.policy)
		return err
	}); err != nil {
		return nil, p.fail(ctx, r, StageVerify, err)
	}
	if len(pruned) > 0 {
		r.log.Warnw("Dropped findings without a traceable source", "topics", pruned)
	}

	var doc synthesis.Document
	if err := p.stage(ctx, r, StageSynthesize, func(ctx context.Context) error {
		var err error
		doc, err = p.synthesizer.Synthesize(ctx, analysis)
		return err
	}); err != nil {
		return nil, p.fail(ctx, r, StageSynthesize, err)
	}

	var generated presentation.Result
	if err := p.stage(ctx, r, StageGenerate, func(ctx context.Context) error {
		var err error
		generated, err = p.generator.Generate(ctx, doc.Markdown, analysis)
		return err
	}); err != nil {
		return nil, p.fail(ctx, r, StageGenerate, err)
	}

	report := &Report{
		RunID:    r.id,
		Status:   StatusSuccess,
		Markdown: doc.Markdown,
		RevealJS: generated.Deck.HTML,
		Analysis: analysis,
		Sources:  analysis.URLs(),
		Pruned:   pruned,
		Slides:   generated.Slides,
		Usage:    r.usage.Summary(),
		Duration: time.Since(r.start),
	}
	if doc.Origin == synthesis.OriginTemplate {
		report.Fallbacks = append(report.Fallbacks, "synthesizer")
	}
	if generated.Origin == presentation.OriginTemplate {
		report.Fallbacks = append(report.Fallbacks, "deck_generator")
	}

	metrics.RecordPipelineRun(r.operation, string(StatusSuccess))
	r.log.Infow("Research completed",
		"duration", report.Duration,
		"sources", len(report.Sources),
		"slides", report.Slides,
		"fallbacks", report.Fallbacks,
		"orchestrator_steps", runRep.OrchestratorSteps,
		"researcher_steps", runRep.ResearcherSteps,
		"cost_usd", report.Usage.CostUSD.StringFixed(4),
	)

	ev := p.event(r, kafka.EventResearchCompleted)
	ev.Sources = len(report.Sources)
	ev.Slides = report.Slides
	ev.Fallbacks = report.Fallbacks
	p.publish(ctx, ev)

	return report, nil
}

func (p *Pipeline) refused(ctx context.Context, r *run, reason string) *Report {
	metrics.RecordPipelineRun(r.operation, string(StatusRefused))
	r.log.Infow("Research refused", "reason", reason)

	ev := p.event(r, kafka.EventResearchRefused)
	ev.Reason = string(research.ReasonRefused)
	ev.Detail = reason
	p.publish(ctx, ev)

	return &Report{
		RunID:    r.id,
		Status:   StatusRefused,
		Reason:   reason,
		Usage:    r.usage.Summary(),
		Duration: time.Since(r.start),
	}
}

// Edit applies instruction to the deck in html.
func (p *Pipeline) Edit(ctx context.Context, html, instruction string) (*presentation.EditResult, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "html_input is required")
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "prompt is required")
	}
	if max := p.cfg.MaxDeckBytes; max > 0 && len(html) > max {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "html_input is larger than %d bytes", max)
	}

	ctx, cancel, r := p.begin(ctx, "edit")
	defer cancel()

	var result *presentation.EditResult
	err := p.stage(ctx, r, StageEdit, func(ctx context.Context) error {
		var err error
		result, err = p.editor.Edit(ctx, deck.Artifact{HTML: html}, instruction)
		return err
	})
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			return nil, err
		}
		return nil, p.fail(ctx, r, StageEdit, err)
	}

	metrics.RecordPipelineRun(r.operation, string(StatusSuccess))
	r.log.Infow("Edit completed",
		"duration", time.Since(r.start),
		"slides_before", result.Summary.SlidesBefore,
		"slides_after", result.Summary.SlidesAfter,
	)

	ev := p.event(r, kafka.EventEditCompleted)
	ev.Slides = result.Summary.SlidesAfter
	p.publish(ctx, ev)

	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, r *run, s Stage, err error) error {
	failure := newFailure(s, err)

	metrics.RecordPipelineRun(r.operation, "failed")
	metrics.RecordPipelineFailure(string(s), failure.Reason)

	switch failure.Reason {
	case ReasonInternal, ReasonProviderFailure:
		r.log.ErrorWithContext(ctx, failure, errors.FailureTags(r.operation, string(s), failure.Reason))
	default:
		r.log.Warnw("Request failed", "stage", s, "reason", failure.Reason, "error", err)
	}

	eventType := kafka.EventResearchFailed
	if r.operation == "edit" {
		eventType = kafka.EventEditFailed
	}
	ev := p.event(r, eventType)
	ev.Stage = string(s)
	ev.Reason = failure.Reason
	ev.Detail = errors.Excerpt(failure.Detail(), 500)
	p.publish(ctx, ev)

	return failure
}

func (p *Pipeline) event(r *run, eventType string) *events.PipelineEvent {
	ev := events.NewPipelineEvent(eventType, r.id, time.Since(r.start))
	usage := r.usage.Summary()
	ev.LLMCalls = usage.Calls
	ev.InputTokens = usage.InputTokens
	ev.OutputTokens = usage.OutputTokens
	ev.CostUSD = usage.CostUSD.StringFixed(6)
	return ev
}

// publish sends ev even when the request context has expired.
func (p *Pipeline) publish(ctx context.Context, ev *events.PipelineEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.publisher.Publish(ctx, ev); err != nil {
		p.log.Debugw("event not published", "type", ev.Type, "error", err)
	}
}
