package search

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// QueryOutcome is the result of one query of a batch.
type QueryOutcome struct {
	Query   string   `json:"query"`
	Results []Result `json:"results,omitempty"`
	Err     error    `json:"-"`
}

// SearchAll runs queries with at most parallel in flight. A failing query
// does not cancel the others; its error is kept in the outcome.
func SearchAll(ctx context.Context, p Provider, queries []string, maxResults, parallel int) []QueryOutcome {
	if parallel <= 0 {
		parallel = 1
	}

	outcomes := make([]QueryOutcome, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, q := range queries {
		outcomes[i].Query = q
		if strings.TrimSpace(q) == "" {
			continue
		}
		g.Go(func() error {
			results, err := p.Search(gctx, q, maxResults)
			outcomes[i].Results = results
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Dedupe drops results whose URL already appeared, keeping the first.
func Dedupe(outcomes []QueryOutcome) []Result {
	seen := make(map[string]bool)
	var out []Result
	for _, o := range outcomes {
		for _, r := range o.Results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			out = append(out, r)
		}
	}
	return out
}
