package adk

import (
	"context"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/adk/model"

	"deckforge/internal/adapters/ai"
	"deckforge/internal/metrics"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

// InstrumentedLLM decorates any model.LLM with rate limiting, cost
// accounting, metrics and tracing. It holds no per-request state, so one
// instance is shared by every concurrent pipeline run.
type InstrumentedLLM struct {
	inner   model.LLM
	limiter ai.RateLimiter
	costs   *ai.CostTracker
	log     *logger.Logger
}

// Instrument wraps inner. A nil limiter means unlimited, a nil tracker gets
// a private one.
func Instrument(inner model.LLM, limiter ai.RateLimiter, costs *ai.CostTracker) *InstrumentedLLM {
	if limiter == nil {
		limiter = ai.NewNoOpLimiter()
	}
	if costs == nil {
		costs = ai.NewCostTracker()
	}
	return &InstrumentedLLM{
		inner:   inner,
		limiter: limiter,
		costs:   costs,
		log:     logger.Get().With("component", "llm", "model", inner.Name()),
	}
}

// Name returns the wrapped model name.
func (m *InstrumentedLLM) Name() string {
	return m.inner.Name()
}

// GenerateContent implements model.LLM.
func (m *InstrumentedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		ctx, span := otel.Tracer("deckforge/llm").Start(ctx, "llm.generate")
		span.SetAttributes(attribute.String("llm.model", m.inner.Name()))
		defer span.End()

		if err := m.limiter.Wait(ctx); err != nil {
			metrics.RecordRateLimited(m.inner.Name())
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			yield(nil, errors.Wrap(err, "waiting for model rate limit"))
			return
		}

		start := time.Now()
		var (
			inTokens, outTokens int
			callErr             error
		)

		for resp, err := range m.inner.GenerateContent(ctx, req, stream) {
			if err != nil {
				callErr = err
			}
			if resp != nil && resp.UsageMetadata != nil && !resp.Partial {
				inTokens += int(resp.UsageMetadata.PromptTokenCount)
				outTokens += int(resp.UsageMetadata.CandidatesTokenCount)
			}
			if !yield(resp, err) {
				break
			}
		}

		cost, _ := m.costs.RecordUsage(ctx, m.inner.Name(), inTokens, outTokens).Float64()

		latency := time.Since(start)
		metrics.RecordLLMCall(m.inner.Name(), latency, inTokens, outTokens, cost, callErr)

		span.SetAttributes(
			attribute.Int("llm.input_tokens", inTokens),
			attribute.Int("llm.output_tokens", outTokens),
		)
		if callErr != nil {
			span.RecordError(callErr)
			span.SetStatus(codes.Error, callErr.Error())
			m.log.WithContext(ctx).Warnw("model call failed", "latency", latency, "error", callErr)
			return
		}

		m.log.WithContext(ctx).Debugw("model call",
			"latency", latency,
			"input_tokens", inTokens,
			"output_tokens", outTokens,
		)
	}
}

var _ model.LLM = (*InstrumentedLLM)(nil)
