package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/adapters/config"
	"deckforge/internal/adapters/kafka"
	"deckforge/internal/agents"
	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/internal/events"
	"deckforge/internal/services/presentation"
	"deckforge/internal/services/synthesis"
	"deckforge/internal/testsupport"
	"deckforge/pkg/errors"
)

const scooterJSON = "```json\n" + `{
  "research_objectives": ["Estimate the 2024 market size"],
  "data_collected": {
    "market_size": {"finding": "Sales reached 1.2 million units in 2024", "source": "https://www.vir.com.vn/scooters-2024"},
    "leading_brands": "VinFast holds 60 percent share (https://vinfast.vn/report)"
  },
  "analysis": "Demand is led by urban commuters.",
  "recommendations": ["Partner with local distributors"]
}` + "\n```"

// fakeResearcher answers every run with the same output and records the
// given URLs in the run's ledger.
type fakeResearcher struct {
	raw    research.RawOutput
	seen   []string
	err    error
	block  bool
	mu     sync.Mutex
	prompt []string
}

func (f *fakeResearcher) Run(ctx context.Context, runID string, req research.Request) (research.RawOutput, *agents.RunReport, error) {
	f.mu.Lock()
	f.prompt = append(f.prompt, req.Prompt)
	f.mu.Unlock()

	report := &agents.RunReport{RunID: runID, Ledger: research.NewSourceLedger()}
	report.Ledger.Record(f.seen...)

	if f.block {
		<-ctx.Done()
		return research.RawOutput{}, report, errors.Wrap(ctx.Err(), "agent execution interrupted")
	}
	return f.raw, report, f.err
}

func newPipeline(t *testing.T, r Researcher, editor DeckEditor, opts ...func(*Deps)) (*Pipeline, *events.MemoryPublisher) {
	t.Helper()
	pub := &events.MemoryPublisher{}
	if editor == nil {
		editor = presentation.NewEditor(nil, nil, presentation.Config{})
	}
	deps := Deps{
		Researcher:  r,
		Synthesizer: synthesis.NewSynthesizer(nil, nil, 0),
		Generator:   presentation.NewGenerator(nil, nil, presentation.Config{MaxBulletsPerSlide: 6}),
		Editor:      editor,
		Publisher:   pub,
		Config:      config.PipelineConfig{RequestTimeout: time.Minute, MaxPromptLength: 200, MaxDeckBytes: 1 << 20},
		NewRunID:    func() string { return "run-1" },
	}
	for _, o := range opts {
		o(&deps)
	}
	p, err := New(deps)
	require.NoError(t, err)
	return p, pub
}

var allSources = []string{"https://vir.com.vn/scooters-2024", "https://vinfast.vn/report"}

func TestResearch_Success(t *testing.T) {
	r := &fakeResearcher{raw: research.Text(scooterJSON), seen: allSources}
	p, pub := newPipeline(t, r, nil)

	report, err := p.Research(context.Background(), "  market size for electric scooters in Vietnam ")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"market size for electric scooters in Vietnam"}, r.prompt)
	assert.Equal(t, []string{"leading_brands", "market_size"}, report.Analysis.Topics())
	assert.ElementsMatch(t, []string{"https://www.vir.com.vn/scooters-2024", "https://vinfast.vn/report"}, report.Sources)
	assert.Contains(t, report.Markdown, "Partner with local distributors")
	assert.Contains(t, report.RevealJS, deck.RevealJS)
	assert.Positive(t, report.Slides)
	assert.Equal(t, []string{"synthesizer", "deck_generator"}, report.Fallbacks)

	evs := pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, kafka.EventResearchCompleted, evs[0].Type)
	assert.Equal(t, "run-1", evs[0].RunID)
	assert.Equal(t, 2, evs[0].Sources)
	assert.False(t, evs[0].Failed())
}

func TestResearch_Refused(t *testing.T) {
	r := &fakeResearcher{err: &research.ResearchFailure{Reason: research.ReasonRefused, Detail: "no industry named"}}
	p, pub := newPipeline(t, r, nil)

	report, err := p.Research(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, StatusRefused, report.Status)
	assert.Equal(t, "no industry named", report.Reason)
	assert.Nil(t, report.Analysis)
	assert.Empty(t, report.RevealJS)

	evs := pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, kafka.EventResearchRefused, evs[0].Type)
}

func TestResearch_StageFailures(t *testing.T) {
	tests := []struct {
		name       string
		researcher *fakeResearcher
		policy     research.SourcePolicy
		stage      Stage
		reason     string
	}{
		{
			name:       "step limit",
			researcher: &fakeResearcher{err: &research.ResearchFailure{Reason: research.ReasonStepLimitExceeded}},
			stage:      StageResearch,
			reason:     string(research.ReasonStepLimitExceeded),
		},
		{
			name: "tool outage",
			researcher: &fakeResearcher{err: &research.ResearchFailure{
				Reason: research.ReasonToolUnavailable,
				Err:    errors.Wrap(errors.ErrSearchFailure, "http 503"),
			}},
			stage:  StageResearch,
			reason: string(research.ReasonToolUnavailable),
		},
		{
			name:       "model outage",
			researcher: &fakeResearcher{err: errors.Wrap(errors.ErrProviderFailure, "openai 502")},
			stage:      StageResearch,
			reason:     ReasonProviderFailure,
		},
		{
			name:       "unparseable output",
			researcher: &fakeResearcher{raw: research.Text("Here is what I found: scooters are popular.")},
			stage:      StageNormalize,
			reason:     string(research.ReasonInvalidStructuredOutput),
		},
		{
			name:       "missing fields",
			researcher: &fakeResearcher{raw: research.Structured(map[string]any{"analysis": "x"})},
			stage:      StageNormalize,
			reason:     string(research.ReasonMissingRequiredFields),
		},
		{
			name:       "untraceable source",
			researcher: &fakeResearcher{raw: research.Text(scooterJSON), seen: allSources[:1]},
			stage:      StageVerify,
			reason:     string(research.ReasonUntraceableSource),
		},
		{
			name:       "nothing traceable under prune",
			researcher: &fakeResearcher{raw: research.Text(scooterJSON)},
			policy:     research.PolicyPrune,
			stage:      StageVerify,
			reason:     string(research.ReasonUntraceableSource),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, pub := newPipeline(t, tt.researcher, nil, func(d *Deps) { d.SourcePolicy = tt.policy })

			report, err := p.Research(context.Background(), "electric scooters in Vietnam")
			require.Error(t, err)
			assert.Nil(t, report)

			var failure *PipelineFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.stage, failure.Stage)
			assert.Equal(t, tt.reason, failure.Reason)
			assert.False(t, failure.Timeout())

			evs := pub.Events()
			require.Len(t, evs, 1)
			assert.True(t, evs[0].Failed())
			assert.Equal(t, string(tt.stage), evs[0].Stage)
			assert.Equal(t, tt.reason, evs[0].Reason)
		})
	}
}

func TestResearch_FailureDetailCarriesExcerpt(t *testing.T) {
	r := &fakeResearcher{raw: research.Text("I could not format this as JSON, sorry")}
	p, _ := newPipeline(t, r, nil)

	_, err := p.Research(context.Background(), "electric scooters in Vietnam")

	var failure *PipelineFailure
	require.True(t, errors.As(err, &failure))
	assert.Contains(t, failure.Detail(), "I could not format this as JSON")
	assert.ErrorIs(t, err, &research.NormalizationError{Reason: research.ReasonInvalidStructuredOutput})
}

func TestResearch_PrunePolicyKeepsTraceableFindings(t *testing.T) {
	r := &fakeResearcher{raw: research.Text(scooterJSON), seen: allSources[:1]}
	p, _ := newPipeline(t, r, nil, func(d *Deps) { d.SourcePolicy = research.PolicyPrune })

	report, err := p.Research(context.Background(), "electric scooters in Vietnam")
	require.NoError(t, err)
	assert.Equal(t, []string{"leading_brands"}, report.Pruned)
	assert.Equal(t, []string{"market_size"}, report.Analysis.Topics())
	assert.NotContains(t, report.RevealJS, "vinfast.vn")
}

func TestResearch_Deadline(t *testing.T) {
	r := &fakeResearcher{block: true}
	p, pub := newPipeline(t, r, nil, func(d *Deps) { d.Config.RequestTimeout = 20 * time.Millisecond })

	_, err := p.Research(context.Background(), "electric scooters in Vietnam")

	var failure *PipelineFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.Timeout())
	assert.Equal(t, ReasonTimeout, failure.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, pub.Events(), 1)
}

func TestResearch_InvalidPrompt(t *testing.T) {
	p, pub := newPipeline(t, &fakeResearcher{}, nil)

	for _, prompt := range []string{"", "   ", strings.Repeat("x", 201)} {
		_, err := p.Research(context.Background(), prompt)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	}
	assert.Empty(t, pub.Events())
}

func page(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "<section><h2>Slide %d</h2></section>\n", i)
	}
	return `<html><head><link rel="stylesheet" href="` + deck.RevealCSS + `"></head><body>
<div class="reveal"><div class="slides">
` + b.String() + `</div></div>
<script src="` + deck.RevealJS + `"></script><script>Reveal.initialize();</script>
</body></html>`
}

func editorAnswering(text string) DeckEditor {
	llm := testsupport.NewScriptedLLM("fake", testsupport.Sequence(testsupport.Text(text)))
	return presentation.NewEditor(adk.NewCompleter(llm), nil, presentation.Config{})
}

func TestEdit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		revised := page(3)
		p, pub := newPipeline(t, &fakeResearcher{}, editorAnswering("Added a thank-you slide.\n```html\n"+revised+"\n```"))

		res, err := p.Edit(context.Background(), page(2), "add a closing slide thanking the audience")
		require.NoError(t, err)
		assert.Equal(t, "Added a thank-you slide.", res.Explanation)
		assert.Equal(t, 3, res.Summary.SlidesAfter)

		evs := pub.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, kafka.EventEditCompleted, evs[0].Type)
	})

	t.Run("malformed response", func(t *testing.T) {
		p, pub := newPipeline(t, &fakeResearcher{}, editorAnswering("Sure, I changed the colours."))

		_, err := p.Edit(context.Background(), page(2), "make it blue")

		var failure *PipelineFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, StageEdit, failure.Stage)
		assert.Equal(t, string(deck.ReasonMalformedResponse), failure.Reason)
		assert.ErrorIs(t, err, &deck.EditError{Reason: deck.ReasonMalformedResponse})

		evs := pub.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, kafka.EventEditFailed, evs[0].Type)
	})

	t.Run("invalid input", func(t *testing.T) {
		p, _ := newPipeline(t, &fakeResearcher{}, nil)

		_, err := p.Edit(context.Background(), "", "make it blue")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		_, err = p.Edit(context.Background(), page(1), "")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestNew_RequiresStages(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, ReasonRateLimited, reasonOf(errors.Wrap(errors.ErrRateLimitExceeded, "x")))
	assert.Equal(t, ReasonCanceled, reasonOf(errors.Wrap(context.Canceled, "x")))
	assert.Equal(t, ReasonInternal, reasonOf(errors.New("boom")))
	assert.Equal(t, string(deck.ReasonContentDropped), reasonOf(&deck.EditError{Reason: deck.ReasonContentDropped}))
}
