package research

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"deckforge/pkg/errors"
)

var urlPattern = regexp.MustCompile("https?://[^\\s<>\"'`\\]\\[(){}|\\\\^]+")

// ExtractURLs walks v (strings, maps, slices) and returns every distinct URL
// found, in order of first appearance. Map keys are visited in sorted order.
func ExtractURLs(v any) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			for _, m := range urlPattern.FindAllString(x, -1) {
				m = strings.TrimRight(m, ".,;:!?*")
				if m == "" || seen[m] {
					continue
				}
				seen[m] = true
				out = append(out, m)
			}
		case map[string]any:
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(x[k])
			}
		case []any:
			for _, it := range x {
				walk(it)
			}
		case []string:
			for _, it := range x {
				walk(it)
			}
		}
	}
	walk(v)
	return out
}

// CanonicalURL reduces a URL to the form used for ledger lookups: scheme and
// "www." are ignored, the host is lowercased, the fragment and a trailing
// slash are dropped.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// SourceLedger records the URLs the research tools actually returned during
// one request. Safe for concurrent use.
type SourceLedger struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	order []string
}

// NewSourceLedger creates an empty ledger.
func NewSourceLedger() *SourceLedger {
	return &SourceLedger{seen: make(map[string]struct{})}
}

// Record adds URLs to the ledger.
func (l *SourceLedger) Record(urls ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		key := CanonicalURL(u)
		if _, ok := l.seen[key]; ok {
			continue
		}
		l.seen[key] = struct{}{}
		l.order = append(l.order, u)
	}
}

// Contains reports whether u, or an equivalent form of it, was recorded.
func (l *SourceLedger) Contains(u string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[CanonicalURL(u)]
	return ok
}

// URLs returns the recorded URLs in insertion order.
func (l *SourceLedger) URLs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Len returns the number of distinct recorded URLs.
func (l *SourceLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// SourcePolicy decides what VerifySources does with untraceable entries.
type SourcePolicy string

const (
	// PolicyStrict rejects the analysis when any entry cites an unseen URL.
	PolicyStrict SourcePolicy = "strict"
	// PolicyPrune drops such entries and rejects only when none remain.
	PolicyPrune SourcePolicy = "prune"
)

// ParseSourcePolicy accepts "strict", "prune" or empty (strict).
func ParseSourcePolicy(s string) (SourcePolicy, error) {
	switch SourcePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyPrune:
		return PolicyPrune, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown source policy %q", s)
	}
}

// VerifySources checks that every URL cited by a data_collected entry was
// seen by the research tools. It returns the (possibly pruned) analysis and
// the topics that were dropped. The input is never modified.
func VerifySources(a Analysis, ledger *SourceLedger, policy SourcePolicy) (Analysis, []string, error) {
	if ledger == nil {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "source ledger is required")
	}

	var untraceable []string
	for _, f := range a.Findings() {
		for _, u := range f.Sources {
			if !ledger.Contains(u) {
				untraceable = append(untraceable, f.Topic)
				break
			}
		}
	}
	if len(untraceable) == 0 {
		return a, nil, nil
	}

	if policy != PolicyPrune {
		return nil, nil, &NormalizationError{
			Reason: ReasonUntraceableSource,
			Detail: "entries cite URLs that no research tool returned",
			Fields: untraceable,
		}
	}

	out := a.Clone()
	data := out[KeyDataCollected].(map[string]any)
	for _, topic := range untraceable {
		delete(data, topic)
	}
	if len(data) == 0 {
		return nil, untraceable, &NormalizationError{
			Reason: ReasonUntraceableSource,
			Detail: fmt.Sprintf("all %d entries cite URLs that no research tool returned", len(untraceable)),
			Fields: untraceable,
		}
	}
	return out, untraceable, nil
}
