package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LLM metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_llm_calls_total",
			Help: "Total number of language model calls",
		},
		[]string{"model", "status"}, // status: success|error|rate_limited
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckforge_llm_latency_seconds",
			Help:    "Language model call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_llm_tokens_total",
			Help: "Total tokens used by language model calls",
		},
		[]string{"model", "type"}, // type: input|output
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_llm_cost_usd",
			Help: "Total language model cost in USD",
		},
		[]string{"model"},
	)

	// Agent metrics
	AgentSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckforge_agent_steps",
			Help:    "Model calls consumed by one agent run",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 20, 30},
		},
		[]string{"agent"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckforge_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	SearchCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_search_cache_total",
			Help: "Web search cache lookups",
		},
		[]string{"backend", "result"}, // result: hit|miss
	)

	// Pipeline metrics
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"operation", "outcome"}, // operation: research|edit
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckforge_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage", "status"},
	)

	PipelineFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_pipeline_failures_total",
			Help: "Pipeline failures by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_fallbacks_total",
			Help: "Deterministic fallbacks taken after model output was rejected",
		},
		[]string{"component", "reason"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_kafka_messages_total",
			Help: "Total Kafka messages published",
		},
		[]string{"topic", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckforge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 600},
		},
		[]string{"method", "route"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(LLMCalls)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(LLMTokens)
		prometheus.MustRegister(LLMCost)

		prometheus.MustRegister(AgentSteps)

		prometheus.MustRegister(ToolExecutions)
		prometheus.MustRegister(ToolLatency)
		prometheus.MustRegister(SearchCache)

		prometheus.MustRegister(PipelineRuns)
		prometheus.MustRegister(PipelineStageDuration)
		prometheus.MustRegister(PipelineFailures)
		prometheus.MustRegister(Fallbacks)

		prometheus.MustRegister(KafkaMessages)
		prometheus.MustRegister(HTTPRequests)
		prometheus.MustRegister(HTTPLatency)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordLLMCall records one model call
func RecordLLMCall(model string, latency time.Duration, inputTokens, outputTokens int, cost float64, err error) {
	LLMCalls.WithLabelValues(model, status(err)).Inc()
	LLMLatency.WithLabelValues(model).Observe(latency.Seconds())

	if inputTokens > 0 {
		LLMTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
	if cost > 0 {
		LLMCost.WithLabelValues(model).Add(cost)
	}
}

// RecordRateLimited counts a model call rejected by the limiter
func RecordRateLimited(model string) {
	LLMCalls.WithLabelValues(model, "rate_limited").Inc()
}

// RecordAgentSteps records how many model calls an agent run took
func RecordAgentSteps(agent string, steps int) {
	AgentSteps.WithLabelValues(agent).Observe(float64(steps))
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	ToolExecutions.WithLabelValues(tool, status(err)).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordCacheLookup records a search cache hit or miss
func RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SearchCache.WithLabelValues(backend, result).Inc()
}

// RecordPipelineRun records the outcome of a research or edit run
func RecordPipelineRun(operation, outcome string) {
	PipelineRuns.WithLabelValues(operation, outcome).Inc()
}

// RecordStage records the duration of a pipeline stage
func RecordStage(stage string, duration time.Duration, err error) {
	PipelineStageDuration.WithLabelValues(stage, status(err)).Observe(duration.Seconds())
}

// RecordPipelineFailure records a failed stage
func RecordPipelineFailure(stage, reason string) {
	PipelineFailures.WithLabelValues(stage, reason).Inc()
}

// RecordFallback records a deterministic fallback
func RecordFallback(component, reason string) {
	Fallbacks.WithLabelValues(component, reason).Inc()
}

// RecordKafkaMessage records a published event
func RecordKafkaMessage(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Inc()
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, route string, code int, latency time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}
