package deck

// RevealBase is the pinned reveal.js distribution every deck loads from.
const RevealBase = "https://cdn.jsdelivr.net/npm/reveal.js@4.6.0/dist/"

const (
	RevealCSS   = RevealBase + "reveal.css"
	RevealTheme = RevealBase + "theme/white.css"
	RevealJS    = RevealBase + "reveal.js"
)

// Artifact is a self-contained reveal.js HTML document.
type Artifact struct {
	HTML string `json:"html"`
}

// String returns the document markup.
func (a Artifact) String() string { return a.HTML }
