package bootstrap

import (
	"context"
	"sync"

	"google.golang.org/adk/model"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/adapters/ai"
	"deckforge/internal/adapters/config"
	"deckforge/internal/adapters/kafka"
	redisclient "deckforge/internal/adapters/redis"
	"deckforge/internal/adapters/search"
	"deckforge/internal/agents"
	"deckforge/internal/api"
	"deckforge/internal/api/health"
	"deckforge/internal/api/mcp"
	"deckforge/internal/events"
	"deckforge/internal/observability"
	"deckforge/internal/services/pipeline"
	"deckforge/internal/services/presentation"
	"deckforge/internal/services/synthesis"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
	"deckforge/pkg/templates"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker
	Tracing      *observability.TracerProvider

	// Infrastructure Layer (optional)
	Redis *redisclient.Client

	// External Adapters
	Adapters *Adapters

	// Business Logic
	Business *Business

	// Application Layer
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	Publisher     events.Publisher

	RateLimiters *ai.RateLimiterFactory
	Costs        *ai.CostTracker
	LLM          model.LLM
	Completer    adk.Completer

	Search *search.Stack
}

// Business groups business logic components
type Business struct {
	AgentFactory *agents.Factory
	Orchestrator *agents.Orchestrator
	Synthesizer  *synthesis.Synthesizer
	Generator    *presentation.Generator
	Editor       *presentation.Editor
	Pipeline     *pipeline.Pipeline
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	MCPServer     *mcp.Server
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes everything the HTTP service needs.
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitPipeline()
	c.MustInitApplication()
}

// MustInitPipeline initializes the components shared by every entry point:
// the HTTP service, the MCP server and the one-shot CLI commands.
func (c *Container) MustInitPipeline() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitAdapters()
	c.MustInitBusiness()
}

// Start starts the HTTP server in the background
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Application.HTTPServer == nil {
		return errors.Wrap(errors.ErrInvalidInput, "http server not initialized")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Infow("Initiating graceful shutdown...", "totals", c.GetMetrics())

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Adapters.KafkaProducer,
		c.Tracing,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// GetMetrics returns metrics for observability
func (c *Container) GetMetrics() map[string]interface{} {
	out := map[string]interface{}{
		"templates": len(templates.Get().List()),
	}
	if c.Adapters.Costs != nil {
		out["model_cost_usd"] = c.Adapters.Costs.TotalCost().StringFixed(6)
	}
	if c.Adapters.Search != nil && c.Adapters.Search.Memory != nil {
		out["search_cache_entries"] = c.Adapters.Search.Memory.Len()
	}
	return out
}
