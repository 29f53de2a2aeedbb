package bootstrap

import (
	"strings"

	"github.com/redis/go-redis/v9"

	"deckforge/internal/adapters/adk"
	"deckforge/internal/adapters/ai"
	"deckforge/internal/adapters/config"
	errnoop "deckforge/internal/adapters/errors/noop"
	"deckforge/internal/adapters/errors/sentry"
	"deckforge/internal/adapters/kafka"
	redisclient "deckforge/internal/adapters/redis"
	"deckforge/internal/adapters/search"
	"deckforge/internal/agents"
	"deckforge/internal/api"
	"deckforge/internal/api/health"
	"deckforge/internal/api/mcp"
	"deckforge/internal/domain/research"
	"deckforge/internal/events"
	"deckforge/internal/metrics"
	"deckforge/internal/observability"
	"deckforge/internal/services/pipeline"
	"deckforge/internal/services/presentation"
	"deckforge/internal/services/synthesis"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
	"deckforge/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger, error
// tracking, metrics and tracing
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()

	c.Tracing, err = observability.NewTracerProvider(c.Context, cfg.Tracing, cfg.App)
	if err != nil {
		c.Log.Warnf("Tracing disabled: %v", err)
	} else if cfg.Tracing.Enabled {
		c.Log.Infow("✓ Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects optional data stores. Redis backs the
// search cache and the shared model rate limit when enabled.
func (c *Container) MustInitInfrastructure() {
	if !c.Config.Redis.Enabled {
		c.Log.Info("Redis disabled, using in-process cache and limiter")
		return
	}

	c.Log.Info("Connecting to Redis...")
	client, err := redisclient.NewClient(c.Context, c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Redis = client
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: External Adapters
// ========================================

// MustInitAdapters initializes Kafka, the model and the search stack
func (c *Container) MustInitAdapters() {
	c.Adapters.KafkaProducer, c.Adapters.Publisher = providePublisher(c.Config.Kafka, c.Log)

	var rdb *redis.Client
	if c.Redis != nil {
		rdb = c.Redis.Client()
	}

	c.Adapters.RateLimiters = ai.NewRateLimiterFactory(rdb)
	c.Adapters.Costs = ai.NewCostTracker()

	llm, err := adk.NewLLM(c.Context, c.Config.AI, c.Adapters.RateLimiters, c.Adapters.Costs)
	if err != nil {
		c.Log.Fatalf("failed to create model: %v", err)
	}
	c.Adapters.LLM = llm
	c.Adapters.Completer = adk.NewCompleter(llm)
	c.Log.Infow("✓ Model ready", "provider", c.Config.AI.Provider, "model", c.Config.AI.Model)

	c.Adapters.Search, err = search.NewStack(c.Config.Search, rdb)
	if err != nil {
		c.Log.Fatalf("failed to create search stack: %v", err)
	}
	c.Log.Infow("✓ Search ready", "provider", c.Config.Search.Provider, "shared_cache", rdb != nil)

	collector := metrics.NewCustomCollector(c.Adapters.Costs, cacheSizer(c.Adapters.Search))
	if err := metrics.RegisterCustomCollector(collector); err != nil {
		c.Log.Warnf("custom collector not registered: %v", err)
	}
}

// ========================================
// Phase 4: Business Logic
// ========================================

// MustInitBusiness builds the agent graph factory and the pipeline stages
func (c *Container) MustInitBusiness() {
	cfg := c.Config
	tmpl := templates.Get()

	factory, err := agents.NewFactory(agents.FactoryDeps{
		LLM:       c.Adapters.LLM,
		Search:    c.Adapters.Search.Provider,
		Fetcher:   c.Adapters.Search.Fetcher,
		Templates: tmpl,
		Limits:    provideLimits(cfg),
	})
	if err != nil {
		c.Log.Fatalf("failed to create agent factory: %v", err)
	}
	c.Business.AgentFactory = factory
	c.Business.Orchestrator = agents.NewOrchestrator(factory)

	deckCfg := presentation.Config{
		MaxBulletsPerSlide: cfg.Deck.MaxBulletsPerSlide,
		MaxTokens:          cfg.Deck.MaxTokens,
		Theme:              cfg.Deck.Theme,
		MaxDeckBytes:       cfg.Pipeline.MaxDeckBytes,
	}
	c.Business.Synthesizer = synthesis.NewSynthesizer(c.Adapters.Completer, tmpl, cfg.AI.MaxTokens)
	c.Business.Generator = presentation.NewGenerator(c.Adapters.Completer, tmpl, deckCfg)
	c.Business.Editor = presentation.NewEditor(c.Adapters.Completer, tmpl, deckCfg)

	c.Business.Pipeline, err = pipeline.New(pipeline.Deps{
		Researcher:   c.Business.Orchestrator,
		Synthesizer:  c.Business.Synthesizer,
		Generator:    c.Business.Generator,
		Editor:       c.Business.Editor,
		Publisher:    c.Adapters.Publisher,
		Config:       cfg.Pipeline,
		SourcePolicy: research.SourcePolicy(strings.ToLower(cfg.Agents.SourcePolicy)),
	})
	if err != nil {
		c.Log.Fatalf("failed to create pipeline: %v", err)
	}

	c.Log.Infow("✓ Pipeline ready",
		"source_policy", cfg.Agents.SourcePolicy,
		"orchestrator_max_steps", cfg.Agents.OrchestratorMaxSteps,
		"researcher_max_steps", cfg.Agents.ResearcherMaxSteps,
	)
}

// ========================================
// Phase 5: Application Layer
// ========================================

// MustInitApplication builds the HTTP server and its probes
func (c *Container) MustInitApplication() {
	cfg := c.Config

	c.Application.HealthHandler = health.New(c.Log, c.healthChecks(), cfg.App.Name, cfg.App.Version)
	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:         cfg.HTTP.Port,
		ServiceName:  cfg.App.Name,
		Version:      cfg.App.Version,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	}, c.Business.Pipeline, c.Application.HealthHandler, c.Log)
}

// MustInitMCP builds the MCP server over the pipeline
func (c *Container) MustInitMCP() {
	c.Application.MCPServer = mcp.NewServer(c.Business.Pipeline, c.Config.App.Name, c.Config.App.Version)
}

func (c *Container) healthChecks() map[string]health.CheckFunc {
	checks := map[string]health.CheckFunc{}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Health
	}
	if c.Adapters.KafkaProducer != nil {
		checks["kafka"] = c.Adapters.KafkaProducer.Health
	}
	return checks
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func providePublisher(cfg config.KafkaConfig, log *logger.Logger) (*kafka.Producer, events.Publisher) {
	if !cfg.Enabled {
		log.Info("Kafka disabled, pipeline events are dropped")
		return nil, events.NoopPublisher{}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Brokers})
	log.Infow("✓ Kafka publisher ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return producer, events.NewKafkaPublisher(producer, cfg.Topic)
}

func provideLimits(cfg *config.Config) agents.Limits {
	return agents.Limits{
		OrchestratorMaxSteps: cfg.Agents.OrchestratorMaxSteps,
		ResearcherMaxSteps:   cfg.Agents.ResearcherMaxSteps,
		RecencyYears:         cfg.Agents.RecencyYears,
		SearchMaxResults:     cfg.Search.MaxResults,
		SearchParallel:       cfg.Search.MaxParallel,
	}
}

// cacheSizer avoids handing the collector a typed nil.
func cacheSizer(stack *search.Stack) metrics.CacheSizer {
	if stack == nil || stack.Memory == nil {
		return nil
	}
	return stack.Memory
}

// Ensure interfaces are satisfied.
var (
	_ pipeline.Researcher = (*agents.Orchestrator)(nil)
	_ api.Service         = (*pipeline.Pipeline)(nil)
)
