package agents

import (
	"fmt"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/agenttool"
	"google.golang.org/genai"

	"deckforge/internal/adapters/search"
	"deckforge/internal/agents/callbacks"
	"deckforge/pkg/errors"
	"deckforge/pkg/templates"
)

// FactoryDeps gathers external dependencies needed to instantiate agents.
type FactoryDeps struct {
	LLM       model.LLM
	Search    search.Provider
	Fetcher   search.Fetcher
	Templates *templates.Registry
	Limits    Limits
	// Now is used for the "today" hint in instructions.
	Now func() time.Time
}

// Factory builds a fresh research agent graph for every run. The model and
// search handles it holds are stateless and shared.
type Factory struct {
	llm       model.LLM
	search    search.Provider
	fetcher   search.Fetcher
	templates *templates.Registry
	limits    Limits
	now       func() time.Time
}

// NewFactory builds an agent factory with required dependencies.
func NewFactory(deps FactoryDeps) (*Factory, error) {
	if deps.LLM == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model is required")
	}
	if deps.Search == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "search provider is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "page fetcher is required")
	}
	if deps.Templates == nil {
		deps.Templates = templates.Get()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Factory{
		llm:       deps.LLM,
		search:    deps.Search,
		fetcher:   deps.Fetcher,
		templates: deps.Templates,
		limits:    deps.Limits.withDefaults(),
		now:       deps.Now,
	}, nil
}

// graph is one run's agent tree plus the budgets that bound it.
type graph struct {
	root              agent.Agent
	orchestratorSteps *callbacks.StepBudget
	researcherSteps   *callbacks.StepBudget
}

func (f *Factory) build(rs *runState) (*graph, error) {
	researcherCfg := researcherConfig(f.limits)
	orchestratorCfg := orchestratorConfig(f.limits)

	g := &graph{
		orchestratorSteps: callbacks.NewStepBudget(orchestratorCfg.Name, orchestratorCfg.MaxSteps),
		researcherSteps:   callbacks.NewStepBudget(researcherCfg.Name, researcherCfg.MaxSteps),
	}

	searchTool, err := newWebSearchTool(rs, f.search, f.limits)
	if err != nil {
		return nil, errors.Wrap(err, "create web_search tool")
	}
	fetchTool, err := newFetchPageTool(rs, f.fetcher)
	if err != nil {
		return nil, errors.Wrap(err, "create fetch_page tool")
	}
	declineTool, err := newDeclineTool(rs)
	if err != nil {
		return nil, errors.Wrap(err, "create decline_request tool")
	}

	researcher, err := f.createAgent(researcherCfg, rs, []tool.Tool{searchTool, fetchTool},
		callbacks.StepLimitBeforeModel(g.researcherSteps, researcherCfg.BudgetFallback),
	)
	if err != nil {
		return nil, err
	}

	g.root, err = f.createAgent(orchestratorCfg, rs,
		[]tool.Tool{agenttool.New(researcher, nil), searchTool, declineTool},
		callbacks.StopWhenBeforeModel(rs.isRefused, "Request declined."),
		callbacks.StepLimitBeforeModel(g.orchestratorSteps, orchestratorCfg.BudgetFallback),
	)
	if err != nil {
		return nil, err
	}

	return g, nil
}

// createAgent constructs a single ADK agent from a config.
func (f *Factory) createAgent(cfg AgentConfig, rs *runState, tools []tool.Tool, beforeModel ...llmagent.BeforeModelCallback) (agent.Agent, error) {
	instruction, err := f.templates.Render(cfg.InstructionTemplate, map[string]any{
		"ResearcherName":  ResearcherName,
		"SearchToolName":  ToolWebSearch,
		"FetchToolName":   ToolFetchPage,
		"DeclineToolName": ToolDecline,
		"RecencyYears":    f.limits.RecencyYears,
		"MaxSteps":        cfg.MaxSteps,
		"Today":           f.now().Format("2 January 2006"),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt for %s: %w", cfg.Name, err)
	}

	temperature := float32(0.2)
	return llmagent.New(llmagent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Model:       f.llm,
		Instruction: instruction,
		Tools:       tools,
		GenerateContentConfig: &genai.GenerateContentConfig{
			Temperature: &temperature,
		},
		BeforeAgentCallbacks: []agent.BeforeAgentCallback{callbacks.StartBeforeAgentCallback(rs.runID)},
		AfterAgentCallbacks:  []agent.AfterAgentCallback{callbacks.LogAfterAgentCallback()},
		BeforeModelCallbacks: beforeModel,
		BeforeToolCallbacks:  []llmagent.BeforeToolCallback{callbacks.RecordToolStartTimeBeforeToolCallback()},
		AfterToolCallbacks: []llmagent.AfterToolCallback{
			callbacks.AuditLogAfterToolCallback(),
			callbacks.ErrorAsResultAfterToolCallback(),
		},
	})
}
