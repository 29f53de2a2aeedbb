package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"

	"deckforge/internal/adapters/search"
	"deckforge/internal/domain/research"
	"deckforge/internal/testsupport"
	"deckforge/pkg/errors"
)

type fakeSearch struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []search.Result{{
		Title:   "Report on " + query,
		URL:     sourceFor(query),
		Snippet: "Figures for " + query,
	}}, nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) (search.Page, error) {
	return search.Page{URL: url, Title: "page", Text: "page text"}, nil
}

func sourceFor(query string) string {
	return "https://example.com/" + strings.ReplaceAll(strings.ToLower(query), " ", "-")
}

const researcherMarker = "web research specialist"

func isResearcher(req *model.LLMRequest) bool {
	return strings.Contains(testsupport.SystemText(req), researcherMarker)
}

func analysisCiting(url string) string {
	return fmt.Sprintf("```json\n"+`{
  "research_objectives": ["Size the market"],
  "data_collected": {"market_size": {"finding": "1.2B USD in 2024", "source": %q}},
  "analysis": "Growing quickly.",
  "recommendations": ["Enter through distributors"]
}`+"\n```", url)
}

func newTestOrchestrator(t *testing.T, llm model.LLM, provider search.Provider, limits Limits) *Orchestrator {
	t.Helper()
	factory, err := NewFactory(FactoryDeps{
		LLM:     llm,
		Search:  provider,
		Fetcher: fakeFetcher{},
		Limits:  limits,
		Now:     func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return NewOrchestrator(factory)
}

func TestOrchestrator_ResearchesNamedIndustry(t *testing.T) {
	const query = "electric scooter market size Vietnam 2024"

	llm := testsupport.NewScriptedLLM("fake", func(_ int, req *model.LLMRequest) (*model.LLMResponse, error) {
		done := testsupport.FunctionResponses(req)
		if isResearcher(req) {
			if _, ok := done[ToolWebSearch]; !ok {
				return testsupport.Call("r1", ToolWebSearch, map[string]any{"query": query}), nil
			}
			return testsupport.Text("- 1.2B USD in 2024 (source: " + sourceFor(query) + ")"), nil
		}
		if _, ok := done[ResearcherName]; !ok {
			return testsupport.Call("o1", ResearcherName, map[string]any{
				"request": "Find the 2024 market size of electric scooters in Vietnam with source URLs",
			}), nil
		}
		return testsupport.Text(analysisCiting(sourceFor(query))), nil
	})
	provider := &fakeSearch{}

	orch := newTestOrchestrator(t, llm, provider, Limits{})
	raw, report, err := orch.Run(context.Background(), "run-1",
		research.Request{Prompt: "market size for electric scooters in Vietnam"})
	require.NoError(t, err)

	analysis, err := research.Normalize(raw)
	require.NoError(t, err)
	require.NotEmpty(t, analysis.Findings())
	for _, f := range analysis.Findings() {
		assert.NotEmpty(t, f.Sources, "finding %s has no source", f.Topic)
	}

	verified, pruned, err := research.VerifySources(analysis, report.Ledger, research.PolicyStrict)
	require.NoError(t, err)
	assert.Empty(t, pruned)
	assert.Equal(t, analysis.Topics(), verified.Topics())

	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, 1, report.Lookups)
	assert.Equal(t, 2, report.OrchestratorSteps)
	assert.Equal(t, 2, report.ResearcherSteps)
	assert.True(t, report.Ledger.Contains(sourceFor(query)))

	for _, req := range llm.Requests() {
		if isResearcher(req) {
			assert.True(t, testsupport.HasTool(req, ToolFetchPage))
			assert.False(t, testsupport.HasTool(req, ToolDecline))
		} else {
			assert.True(t, testsupport.HasTool(req, ResearcherName))
			assert.True(t, testsupport.HasTool(req, ToolDecline))
		}
	}
}

func TestOrchestrator_RefusesWithoutIndustry(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(_ int, req *model.LLMRequest) (*model.LLMResponse, error) {
		if isResearcher(req) {
			return nil, errors.New("researcher must not run")
		}
		return testsupport.Call("o1", ToolDecline, map[string]any{"reason": "no industry named"}), nil
	})
	provider := &fakeSearch{}

	orch := newTestOrchestrator(t, llm, provider, Limits{})
	raw, _, err := orch.Run(context.Background(), "run-2", research.Request{Prompt: "hello"})

	require.Error(t, err)
	var failure *research.ResearchFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.Refused())
	assert.Equal(t, "no industry named", failure.Detail)
	assert.Equal(t, research.RawOutput{}, raw)
	assert.Zero(t, provider.calls.Load())
	assert.Equal(t, 1, llm.Calls())
}

func TestOrchestrator_RefusesInProse(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(_ int, req *model.LLMRequest) (*model.LLMResponse, error) {
		if isResearcher(req) {
			return nil, errors.New("researcher must not run")
		}
		return testsupport.Text("You did not name an industry. Please specify which market to research."), nil
	})
	provider := &fakeSearch{}

	orch := newTestOrchestrator(t, llm, provider, Limits{})
	raw, report, err := orch.Run(context.Background(), "run-2b", research.Request{Prompt: "hello"})

	require.Error(t, err)
	var failure *research.ResearchFailure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.Refused())
	assert.Contains(t, failure.Detail, "did not name an industry")
	assert.Equal(t, research.RawOutput{}, raw)
	assert.Zero(t, report.ToolCalls)
	assert.Zero(t, provider.calls.Load())
}

func TestOrchestrator_UntooledAnalysisIsNotRefusal(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", testsupport.Sequence(
		testsupport.Text(analysisCiting("https://example.com/report")),
	))

	orch := newTestOrchestrator(t, llm, &fakeSearch{}, Limits{})
	raw, _, err := orch.Run(context.Background(), "run-2c", research.Request{Prompt: "scooters in Vietnam"})

	require.NoError(t, err)
	text, ok := raw.TextValue()
	require.True(t, ok)
	assert.Contains(t, text, "market_size")
}

func TestOrchestrator_StepLimit(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(call int, req *model.LLMRequest) (*model.LLMResponse, error) {
		return testsupport.Call(fmt.Sprintf("o%d", call), ToolWebSearch, map[string]any{
			"query": fmt.Sprintf("scooters %d", call),
		}), nil
	})

	orch := newTestOrchestrator(t, llm, &fakeSearch{}, Limits{OrchestratorMaxSteps: 3})
	_, report, err := orch.Run(context.Background(), "run-3", research.Request{Prompt: "scooters in Vietnam"})

	require.Error(t, err)
	assert.ErrorIs(t, err, &research.ResearchFailure{Reason: research.ReasonStepLimitExceeded})
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, 3, report.OrchestratorSteps)
}

func TestOrchestrator_ToolUnavailable(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(_ int, req *model.LLMRequest) (*model.LLMResponse, error) {
		if _, ok := testsupport.FunctionResponses(req)[ToolWebSearch]; !ok {
			return testsupport.Call("o1", ToolWebSearch, map[string]any{
				"queries": []any{"scooter market Vietnam", "scooter sales Vietnam"},
			}), nil
		}
		return testsupport.Text(analysisCiting("https://invented.example/report")), nil
	})
	provider := &fakeSearch{err: errors.Wrap(errors.ErrSearchFailure, "duckduckgo: http 503")}

	orch := newTestOrchestrator(t, llm, provider, Limits{})
	_, report, err := orch.Run(context.Background(), "run-4", research.Request{Prompt: "scooters in Vietnam"})

	require.Error(t, err)
	assert.ErrorIs(t, err, &research.ResearchFailure{Reason: research.ReasonToolUnavailable})
	assert.ErrorIs(t, err, errors.ErrSearchFailure)
	assert.Equal(t, 2, report.Lookups)
	assert.Equal(t, 2, report.LookupFailures)
	assert.Zero(t, report.Ledger.Len())
}

func TestOrchestrator_ModelFailure(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(int, *model.LLMRequest) (*model.LLMResponse, error) {
		return nil, errors.Wrap(errors.ErrProviderFailure, "openai: 502")
	})

	orch := newTestOrchestrator(t, llm, &fakeSearch{}, Limits{})
	_, _, err := orch.Run(context.Background(), "run-5", research.Request{Prompt: "scooters in Vietnam"})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProviderFailure)
	assert.NotErrorIs(t, err, &research.ResearchFailure{})
}

func TestOrchestrator_RejectsEmptyPrompt(t *testing.T) {
	orch := newTestOrchestrator(t, testsupport.NewScriptedLLM("fake", testsupport.Sequence(testsupport.Text("{}"))), &fakeSearch{}, Limits{})
	_, _, err := orch.Run(context.Background(), "run-6", research.Request{Prompt: "  "})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestOrchestrator_ConcurrentRunsAreIsolated(t *testing.T) {
	llm := testsupport.NewScriptedLLM("fake", func(_ int, req *model.LLMRequest) (*model.LLMResponse, error) {
		prompt := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(testsupport.UserText(req), "Research request: "), "\n", 2)[0])
		if _, ok := testsupport.FunctionResponses(req)[ToolWebSearch]; !ok {
			return testsupport.Call("o1", ToolWebSearch, map[string]any{"query": prompt}), nil
		}
		return testsupport.Text(analysisCiting(sourceFor(prompt))), nil
	})
	orch := newTestOrchestrator(t, llm, &fakeSearch{}, Limits{})

	prompts := []string{"coffee in Brazil", "solar panels in Kenya", "ebikes in Germany", "fintech in Nigeria"}
	reports := make([]*RunReport, len(prompts))
	errs := make([]error, len(prompts))

	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, reports[i], errs[i] = orch.Run(context.Background(), fmt.Sprintf("run-%d", i), research.Request{Prompt: p})
		}()
	}
	wg.Wait()

	for i, p := range prompts {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{sourceFor(p)}, reports[i].Ledger.URLs(), "run %d saw another run's sources", i)
	}
}

func TestWebSearchArgs_List(t *testing.T) {
	args := webSearchArgs{Query: "a", Queries: []string{"A", " b ", "", "c", "d"}}
	assert.Equal(t, []string{"a", "b", "c"}, args.list(3))
	assert.Empty(t, webSearchArgs{}.list(5))
}

func TestLimits_WithDefaults(t *testing.T) {
	l := Limits{OrchestratorMaxSteps: 4}.withDefaults()
	assert.Equal(t, 4, l.OrchestratorMaxSteps)
	assert.Equal(t, DefaultLimits.ResearcherMaxSteps, l.ResearcherMaxSteps)
	assert.Equal(t, DefaultLimits.SearchParallel, l.SearchParallel)
}

func TestNewFactory_RequiresDependencies(t *testing.T) {
	_, err := NewFactory(FactoryDeps{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
