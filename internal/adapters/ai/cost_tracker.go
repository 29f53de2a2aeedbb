package ai

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// CalculateCost prices one call from the catalog entry of the model.
func CalculateCost(model ModelInfo, inputTokens, outputTokens int) decimal.Decimal {
	in := model.InputCostPer1K.Mul(decimal.NewFromInt(int64(inputTokens))).Div(thousand)
	out := model.OutputCostPer1K.Mul(decimal.NewFromInt(int64(outputTokens))).Div(thousand)
	return in.Add(out)
}

// ModelCost accumulates usage for one model.
type ModelCost struct {
	Model        string
	Calls        int64
	InputTokens  int64
	OutputTokens int64
	CostUSD      decimal.Decimal
}

// CostTracker tracks process-wide model usage costs.
type CostTracker struct {
	mu    sync.RWMutex
	costs map[string]*ModelCost
}

// NewCostTracker creates a new cost tracker
func NewCostTracker() *CostTracker {
	return &CostTracker{costs: make(map[string]*ModelCost)}
}

// RecordUsage records token usage for a model and returns the cost of this call.
// The call is also added to the request-scoped Usage carried by ctx, if any.
func (ct *CostTracker) RecordUsage(ctx context.Context, modelName string, inputTokens, outputTokens int) decimal.Decimal {
	info, _ := LookupModel(modelName)
	cost := CalculateCost(info, inputTokens, outputTokens)

	ct.mu.Lock()
	mc, ok := ct.costs[modelName]
	if !ok {
		mc = &ModelCost{Model: modelName, CostUSD: decimal.Zero}
		ct.costs[modelName] = mc
	}
	mc.Calls++
	mc.InputTokens += int64(inputTokens)
	mc.OutputTokens += int64(outputTokens)
	mc.CostUSD = mc.CostUSD.Add(cost)
	ct.mu.Unlock()

	if u := UsageFromContext(ctx); u != nil {
		u.add(inputTokens, outputTokens, cost)
	}

	return cost
}

// Snapshot returns a copy of the per-model totals.
func (ct *CostTracker) Snapshot() map[string]ModelCost {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	out := make(map[string]ModelCost, len(ct.costs))
	for k, v := range ct.costs {
		out[k] = *v
	}
	return out
}

// TotalCost sums the cost over every model.
func (ct *CostTracker) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, mc := range ct.Snapshot() {
		total = total.Add(mc.CostUSD)
	}
	return total
}

// RequestUsage accumulates the model usage of a single pipeline request.
// Agent runs fan out over goroutines, so it is safe for concurrent use.
type RequestUsage struct {
	mu           sync.Mutex
	calls        int
	inputTokens  int
	outputTokens int
	cost         decimal.Decimal
}

// UsageSummary is an immutable view of RequestUsage.
type UsageSummary struct {
	Calls        int             `json:"llm_calls"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
}

func (u *RequestUsage) add(in, out int, cost decimal.Decimal) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.inputTokens += in
	u.outputTokens += out
	u.cost = u.cost.Add(cost)
}

// Summary returns the totals recorded so far.
func (u *RequestUsage) Summary() UsageSummary {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageSummary{
		Calls:        u.calls,
		InputTokens:  u.inputTokens,
		OutputTokens: u.outputTokens,
		CostUSD:      u.cost,
	}
}

type usageKey struct{}

// ContextWithUsage attaches a fresh RequestUsage to ctx.
func ContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{cost: decimal.Zero}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the RequestUsage attached by ContextWithUsage.
func UsageFromContext(ctx context.Context) *RequestUsage {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(usageKey{}).(*RequestUsage)
	return u
}
