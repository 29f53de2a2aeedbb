package agents

import (
	"strings"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"deckforge/internal/adapters/search"
	"deckforge/pkg/errors"
)

type webSearchArgs struct {
	Query   string   `json:"query,omitempty" jsonschema:"a single search query"`
	Queries []string `json:"queries,omitempty" jsonschema:"several search queries run in parallel"`
}

// list merges query and queries, dropping blanks and duplicates.
func (a webSearchArgs) list(max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range append([]string{a.Query}, a.Queries...) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

type failedQuery struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

type webSearchResult struct {
	Results []search.Result `json:"results"`
	Failed  []failedQuery   `json:"failed,omitempty"`
	Note    string          `json:"note,omitempty"`
}

func newWebSearchTool(rs *runState, provider search.Provider, l Limits) (tool.Tool, error) {
	return functiontool.New(
		functiontool.Config{
			Name: ToolWebSearch,
			Description: "Search the web. Pass one query in `query` or several in `queries`; " +
				"they run in parallel. Returns titles, URLs and snippets.",
		},
		func(ctx tool.Context, args webSearchArgs) (webSearchResult, error) {
			queries := args.list(l.MaxQueriesPerCall)
			if len(queries) == 0 {
				return webSearchResult{}, errors.Wrap(errors.ErrInvalidInput, "query or queries is required")
			}

			outcomes := search.SearchAll(ctx, provider, queries, l.SearchMaxResults, l.SearchParallel)

			res := webSearchResult{Results: search.Dedupe(outcomes)}
			for _, o := range outcomes {
				rs.recordLookup(o.Err)
				if o.Err != nil {
					res.Failed = append(res.Failed, failedQuery{Query: o.Query, Error: o.Err.Error()})
				}
			}
			for _, r := range res.Results {
				rs.ledger.Record(r.URL)
			}

			switch {
			case len(res.Failed) == len(queries):
				res.Note = "search is failing, try again with a different query"
			case len(res.Results) == 0:
				res.Note = "no results"
			}
			return res, nil
		},
	)
}

type fetchPageArgs struct {
	URL string `json:"url" jsonschema:"absolute http or https URL of the page to read"`
}

func newFetchPageTool(rs *runState, fetcher search.Fetcher) (tool.Tool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        ToolFetchPage,
			Description: "Download a web page and return its readable text. Use it when a search snippet is not enough.",
		},
		func(ctx tool.Context, args fetchPageArgs) (search.Page, error) {
			page, err := fetcher.Fetch(ctx, args.URL)
			if errors.Is(err, errors.ErrInvalidInput) {
				return search.Page{}, err
			}
			rs.recordLookup(err)
			if err != nil {
				return search.Page{}, err
			}
			rs.ledger.Record(args.URL, page.URL)
			return page, nil
		},
	)
}

type declineArgs struct {
	Reason string `json:"reason" jsonschema:"why the request cannot be researched"`
}

type declineResult struct {
	Declined bool `json:"declined"`
}

func newDeclineTool(rs *runState) (tool.Tool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        ToolDecline,
			Description: "Decline the request when it does not name a concrete industry or market to research.",
		},
		func(ctx tool.Context, args declineArgs) (declineResult, error) {
			reason := strings.TrimSpace(args.Reason)
			if reason == "" {
				reason = "the request does not name an industry or market"
			}
			rs.refuse(reason)
			ctx.Actions().SkipSummarization = true
			return declineResult{Declined: true}, nil
		},
	)
}
