package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deckforge/internal/domain/research"
	"deckforge/internal/metrics"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
	"deckforge/pkg/templates"
)

// RunReport describes how a research run went, successful or not.
type RunReport struct {
	RunID string
	// Ledger holds every URL the tools returned during the run.
	Ledger *research.SourceLedger

	OrchestratorSteps int
	ResearcherSteps   int
	ToolCalls         int
	Lookups           int
	LookupFailures    int
	InputTokens       int
	OutputTokens      int
	Duration          time.Duration
}

// Orchestrator runs the research agent graph. Every Run builds its own graph
// and session, so concurrent runs are independent.
type Orchestrator struct {
	factory   *Factory
	runner    *AgentRunner
	templates *templates.Registry
	log       *logger.Logger
}

// NewOrchestrator creates a new research orchestrator
func NewOrchestrator(factory *Factory) *Orchestrator {
	return &Orchestrator{
		factory:   factory,
		runner:    NewAgentRunner(),
		templates: factory.templates,
		log:       logger.Get().With("component", "orchestrator"),
	}
}

// Run researches req and returns the orchestrator's raw answer. Refusals,
// exhausted budgets and tool outages come back as *research.ResearchFailure;
// model and transport errors are returned wrapped. An answer that used no
// tools and is not an analysis counts as a refusal.
func (o *Orchestrator) Run(ctx context.Context, runID string, req research.Request) (research.RawOutput, *RunReport, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return research.RawOutput{}, nil, errors.Wrap(errors.ErrInvalidInput, "research prompt is empty")
	}

	rs := newRunState(runID)
	report := &RunReport{RunID: runID, Ledger: rs.ledger}

	g, err := o.factory.build(rs)
	if err != nil {
		return research.RawOutput{}, report, errors.Wrap(err, "build research agents")
	}

	task, err := o.templates.Render("prompts/research_task", map[string]string{"Prompt": prompt})
	if err != nil {
		return research.RawOutput{}, report, errors.Wrap(err, "render research task")
	}

	log := o.log.With("run_id", runID)
	log.Infof("Starting research: %q", excerpt(prompt))

	out, execErr := o.runner.Execute(ctx, g.root, "run-"+runID, task)

	report.OrchestratorSteps = g.orchestratorSteps.Steps()
	report.ResearcherSteps = g.researcherSteps.Steps()
	report.Lookups, report.LookupFailures = rs.counts()
	if out != nil {
		report.ToolCalls = out.ToolCallCount
		report.InputTokens = out.InputTokens
		report.OutputTokens = out.OutputTokens
		report.Duration = out.Duration
	}
	metrics.RecordAgentSteps(OrchestratorName, report.OrchestratorSteps)
	metrics.RecordAgentSteps(ResearcherName, report.ResearcherSteps)

	if execErr != nil {
		return research.RawOutput{}, report, execErr
	}

	if refused, reason := rs.refusal(); refused {
		log.Infof("Research declined: %s", reason)
		return research.RawOutput{}, report, &research.ResearchFailure{
			Reason: research.ReasonRefused,
			Detail: reason,
		}
	}

	if failed, last := rs.allLookupsFailed(); failed {
		log.Warnf("All %d lookups failed, last error: %s", report.Lookups, last)
		return research.RawOutput{}, report, &research.ResearchFailure{
			Reason: research.ReasonToolUnavailable,
			Detail: fmt.Sprintf("all %d web lookups failed", report.Lookups),
			Err:    errors.Wrap(errors.ErrSearchFailure, last),
		}
	}

	if g.orchestratorSteps.Exhausted() {
		log.Warnf("Orchestrator exhausted its %d steps", g.orchestratorSteps.Max())
		return research.RawOutput{}, report, &research.ResearchFailure{
			Reason: research.ReasonStepLimitExceeded,
			Detail: fmt.Sprintf("no answer within %d model calls", g.orchestratorSteps.Max()),
		}
	}

	if report.Lookups == 0 && report.ToolCalls == 0 {
		if _, err := research.Normalize(research.Text(out.FinalText)); err != nil {
			log.Infof("Research declined in prose: %q", excerpt(out.FinalText))
			return research.RawOutput{}, report, &research.ResearchFailure{
				Reason: research.ReasonRefused,
				Detail: excerpt(out.FinalText),
			}
		}
	}

	log.Infof("Research finished: steps=%d researcher_steps=%d sources=%d",
		report.OrchestratorSteps, report.ResearcherSteps, rs.ledger.Len())

	return research.Text(out.FinalText), report, nil
}

func excerpt(s string) string {
	return errors.Excerpt(strings.Join(strings.Fields(s), " "), 120)
}
