package agents

// Agent and tool names as the models see them.
const (
	OrchestratorName = "research_orchestrator"
	ResearcherName   = "researcher"

	ToolWebSearch = "web_search"
	ToolFetchPage = "fetch_page"
	ToolDecline   = "decline_request"
)

// AgentConfig captures the settings of one agent in the research graph.
type AgentConfig struct {
	Name        string
	Description string
	// InstructionTemplate is a prompt template ID in pkg/templates.
	InstructionTemplate string
	Tools               []string
	MaxSteps            int
	// BudgetFallback is the answer given once MaxSteps model calls are spent.
	BudgetFallback string
}

// Limits are the step bounds of one research run.
type Limits struct {
	OrchestratorMaxSteps int
	ResearcherMaxSteps   int
	RecencyYears         int
	// SearchMaxResults bounds hits per query, SearchParallel the queries in flight.
	SearchMaxResults int
	SearchParallel   int
	// MaxQueriesPerCall bounds the queries a single web_search call may run.
	MaxQueriesPerCall int
}

// DefaultLimits mirror the defaults of config.AgentsConfig.
var DefaultLimits = Limits{
	OrchestratorMaxSteps: 12,
	ResearcherMaxSteps:   20,
	RecencyYears:         2,
	SearchMaxResults:     5,
	SearchParallel:       3,
	MaxQueriesPerCall:    5,
}

func (l Limits) withDefaults() Limits {
	if l.OrchestratorMaxSteps <= 0 {
		l.OrchestratorMaxSteps = DefaultLimits.OrchestratorMaxSteps
	}
	if l.ResearcherMaxSteps <= 0 {
		l.ResearcherMaxSteps = DefaultLimits.ResearcherMaxSteps
	}
	if l.RecencyYears <= 0 {
		l.RecencyYears = DefaultLimits.RecencyYears
	}
	if l.SearchMaxResults <= 0 {
		l.SearchMaxResults = DefaultLimits.SearchMaxResults
	}
	if l.SearchParallel <= 0 {
		l.SearchParallel = DefaultLimits.SearchParallel
	}
	if l.MaxQueriesPerCall <= 0 {
		l.MaxQueriesPerCall = DefaultLimits.MaxQueriesPerCall
	}
	return l
}

const researcherFallback = "NO FINDINGS: the step budget ran out before the task was answered."

func researcherConfig(l Limits) AgentConfig {
	return AgentConfig{
		Name: ResearcherName,
		Description: "A team member that searches the web and reads pages to answer one research task. " +
			"Give it a full sentence stating what to find, for which market and timeframe, not a list of keywords.",
		InstructionTemplate: "prompts/researcher_instruction",
		Tools:               []string{ToolWebSearch, ToolFetchPage},
		MaxSteps:            l.ResearcherMaxSteps,
		BudgetFallback:      researcherFallback,
	}
}

func orchestratorConfig(l Limits) AgentConfig {
	return AgentConfig{
		Name:                OrchestratorName,
		Description:         "Plans market research, delegates lookups and delivers the structured analysis.",
		InstructionTemplate: "prompts/orchestrator_instruction",
		Tools:               []string{ResearcherName, ToolWebSearch, ToolDecline},
		MaxSteps:            l.OrchestratorMaxSteps,
		BudgetFallback:      "Step budget exhausted.",
	}
}
