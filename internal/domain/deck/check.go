package deck

import (
	"fmt"
	"strings"

	"deckforge/internal/domain/research"
)

// Rule names a deck check.
type Rule string

const (
	RuleNoSlides      Rule = "no_slides"
	RulePinnedRuntime Rule = "pinned_runtime_missing"
	RuleForeignAsset  Rule = "foreign_asset"
	RuleNotStarted    Rule = "reveal_not_initialized"
	RuleUnknownURL    Rule = "unknown_url"
	RuleDenseSlide    Rule = "dense_slide"
)

// Violation is one failed check.
type Violation struct {
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	return string(v.Rule) + ": " + v.Detail
}

// Policy configures Check.
type Policy struct {
	// AllowedURLs are the only URLs a deck may cite. Nil skips the check.
	AllowedURLs []string
	// MaxBullets bounds list items per slide. Zero disables the bound.
	MaxBullets int
}

// Check runs every rule against an inspected deck.
func Check(ins Inspection, p Policy) []Violation {
	var out []Violation

	if len(ins.Slides) == 0 {
		out = append(out, Violation{RuleNoSlides, "no .reveal .slides section"})
	}

	hasJS, hasCSS := false, false
	for _, src := range ins.Scripts {
		if !strings.HasPrefix(src, RevealBase) {
			out = append(out, Violation{RuleForeignAsset, "script " + src})
			continue
		}
		if strings.HasSuffix(src, "reveal.js") {
			hasJS = true
		}
	}
	for _, href := range ins.Stylesheets {
		if !strings.HasPrefix(href, RevealBase) {
			out = append(out, Violation{RuleForeignAsset, "stylesheet " + href})
			continue
		}
		if strings.HasSuffix(href, "reveal.css") {
			hasCSS = true
		}
	}
	if !hasJS || !hasCSS {
		out = append(out, Violation{RulePinnedRuntime, "reveal.js and reveal.css must load from " + RevealBase})
	}
	if !ins.Initialized {
		out = append(out, Violation{RuleNotStarted, "no Reveal.initialize call"})
	}

	if p.AllowedURLs != nil {
		allowed := make(map[string]bool, len(p.AllowedURLs))
		for _, u := range p.AllowedURLs {
			allowed[research.CanonicalURL(u)] = true
		}
		for _, u := range ins.CitedURLs() {
			if strings.HasPrefix(u, RevealBase) {
				continue
			}
			if !allowed[research.CanonicalURL(u)] {
				out = append(out, Violation{RuleUnknownURL, u})
			}
		}
	}

	if p.MaxBullets > 0 {
		for i, s := range ins.Slides {
			if s.Bullets > p.MaxBullets {
				out = append(out, Violation{RuleDenseSlide, fmt.Sprintf("slide %d has %d items", i+1, s.Bullets)})
			}
		}
	}

	return out
}
